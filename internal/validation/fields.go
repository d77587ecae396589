// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package validation

import (
	"bytes"
	"errors"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// Raw JSON values are type-checked here so that a wrong-typed field is
// reported with its own reason instead of failing the whole decode.

// absent reports whether a raw value is missing or an explicit null.
func absent(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// StringField decodes an optional JSON string. Missing and null yield "".
func StringField(field string, raw []byte) (string, *RequestValidationError) {
	if absent(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", NewFieldError(field, "string", field+" must be a string", string(raw))
	}
	return s, nil
}

// IntegerField decodes a JSON number that must hold an integer. Integral
// floats such as 3.0 or 1e3 are accepted. present is false when the value
// is missing or null; a required field reports that as an error.
func IntegerField(field string, raw []byte, required bool) (value int64, present bool, verr *RequestValidationError) {
	if absent(raw) {
		if required {
			return 0, false, NewFieldError(field, "number", field+" is required and must be a number", nil)
		}
		return 0, false, nil
	}

	text := string(bytes.TrimSpace(raw))
	if c := text[0]; c != '-' && (c < '0' || c > '9') {
		return 0, false, NewFieldError(field, "number", field+" must be a number", text)
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, true, nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false, NewFieldError(field, "number", field+" must be a number", text)
	}
	if f != math.Trunc(f) {
		return 0, false, NewFieldError(field, "integer", field+" must be an integer", text)
	}
	if math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false, NewFieldError(field, "range", field+" is out of range", text)
	}
	return int64(f), true, nil
}

// Join merges field errors in order. A field reported by an earlier error
// is not repeated by later ones. It returns nil when nothing failed.
func Join(errs ...*RequestValidationError) *RequestValidationError {
	var merged []ValidationError
	seen := make(map[string]bool)
	for _, ve := range errs {
		if ve == nil {
			continue
		}
		for _, e := range ve.errors {
			if seen[e.field] {
				continue
			}
			seen[e.field] = true
			merged = append(merged, e)
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return &RequestValidationError{errors: merged}
}
