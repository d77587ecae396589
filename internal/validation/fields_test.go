// ReelSync - TMDB Catalog Mirror and Watchlist Counter Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package validation

import (
	"strings"
	"testing"
)

func TestIntegerField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		raw         string
		required    bool
		want        int64
		wantPresent bool
		wantTag     string
		wantMessage string
	}{
		{name: "integer", raw: "42", required: true, want: 42, wantPresent: true},
		{name: "zero", raw: "0", required: true, want: 0, wantPresent: true},
		{name: "negative passes through", raw: "-3", required: true, want: -3, wantPresent: true},
		{name: "integral float", raw: "3.0", required: true, want: 3, wantPresent: true},
		{name: "exponent", raw: "1e3", required: true, want: 1000, wantPresent: true},
		{name: "surrounding space", raw: " 7 ", required: true, want: 7, wantPresent: true},
		{name: "missing required", raw: "", required: true, wantTag: "number", wantMessage: "count is required and must be a number"},
		{name: "null required", raw: "null", required: true, wantTag: "number", wantMessage: "count is required and must be a number"},
		{name: "missing optional", raw: "", required: false},
		{name: "null optional", raw: "null", required: false},
		{name: "string", raw: `"3"`, required: true, wantTag: "number", wantMessage: "count must be a number"},
		{name: "bool", raw: "true", required: true, wantTag: "number", wantMessage: "count must be a number"},
		{name: "object", raw: `{"n":1}`, required: true, wantTag: "number", wantMessage: "count must be a number"},
		{name: "fraction", raw: "3.5", required: true, wantTag: "integer", wantMessage: "count must be an integer"},
		{name: "small fraction", raw: "-0.25", required: true, wantTag: "integer", wantMessage: "count must be an integer"},
		{name: "too large", raw: "1e30", required: true, wantTag: "range", wantMessage: "count is out of range"},
		{name: "overflow", raw: "1e400", required: true, wantTag: "range", wantMessage: "count is out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, present, verr := IntegerField("count", []byte(tt.raw), tt.required)
			if tt.wantTag == "" {
				if verr != nil {
					t.Fatalf("unexpected error: %v", verr)
				}
				if got != tt.want || present != tt.wantPresent {
					t.Errorf("got (%d, %v), want (%d, %v)", got, present, tt.want, tt.wantPresent)
				}
				return
			}

			if verr == nil {
				t.Fatalf("expected %s error, got value %d", tt.wantTag, got)
			}
			e := verr.Errors()[0]
			if e.Field() != "count" || e.Tag() != tt.wantTag || e.Error() != tt.wantMessage {
				t.Errorf("error = %s/%s %q, want count/%s %q", e.Field(), e.Tag(), e.Error(), tt.wantTag, tt.wantMessage)
			}
		})
	}
}

func TestStringField(t *testing.T) {
	t.Parallel()

	if s, verr := StringField("subject", []byte(`"alice"`)); verr != nil || s != "alice" {
		t.Errorf("string = %q, %v", s, verr)
	}
	if s, verr := StringField("subject", nil); verr != nil || s != "" {
		t.Errorf("missing = %q, %v", s, verr)
	}
	if s, verr := StringField("subject", []byte("null")); verr != nil || s != "" {
		t.Errorf("null = %q, %v", s, verr)
	}
	_, verr := StringField("subject", []byte("5"))
	if verr == nil || verr.Errors()[0].Tag() != "string" {
		t.Fatalf("number should fail with tag string, got %v", verr)
	}
	if !strings.Contains(verr.Error(), "subject must be a string") {
		t.Errorf("message = %q", verr.Error())
	}
}

func TestJoin(t *testing.T) {
	t.Parallel()

	if Join(nil, nil) != nil {
		t.Error("Join of nothing should be nil")
	}

	typeErr := NewFieldError("count", "number", "count must be a number", `"x"`)
	structErr := ValidateStruct(&counterRequest{Subject: "al ice!"})
	if structErr == nil {
		t.Fatal("expected struct errors")
	}

	joined := Join(typeErr, structErr)
	fields := map[string]string{}
	for _, e := range joined.Errors() {
		if _, dup := fields[e.Field()]; dup {
			t.Errorf("field %s reported twice", e.Field())
		}
		fields[e.Field()] = e.Tag()
	}
	if fields["count"] != "number" {
		t.Errorf("count tag = %q, want the first reported reason", fields["count"])
	}
	if fields["subject"] != "subject" {
		t.Errorf("subject tag = %q", fields["subject"])
	}
}
