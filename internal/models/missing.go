// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package models

import (
	"fmt"
	"strings"
)

// missingTrimSet is the whitespace stripped before the literal checks.
// MissingPredicateSQL must strip exactly the same characters.
const missingTrimSet = " \t\r\n\v\f"

// IsMissing classifies the stored text of a repairable field (genres).
//
// A value is missing when it is nil, when its trimmed form is "", "[]" or
// "null", or when it contains no ASCII letter at all. Everything else is
// present. The same rule is rendered as SQL by MissingPredicateSQL and the
// two must agree for every input.
func IsMissing(v *string) bool {
	if v == nil {
		return true
	}
	switch strings.Trim(*v, missingTrimSet) {
	case "", "[]", "null":
		return true
	}
	return !containsASCIILetter(*v)
}

func containsASCIILetter(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
			return true
		}
	}
	return false
}

// MissingPredicateSQL returns a DuckDB boolean expression equivalent to
// IsMissing applied to column. The column name is interpolated as-is and
// must be a trusted identifier.
func MissingPredicateSQL(column string) string {
	return fmt.Sprintf(
		"(%[1]s IS NULL OR trim(%[1]s, ' ' || chr(9) || chr(13) || chr(10) || chr(11) || chr(12)) IN ('', '[]', 'null') OR NOT regexp_matches(%[1]s, '[A-Za-z]'))",
		column,
	)
}
