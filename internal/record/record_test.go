package record

import (
	"errors"
	"testing"
)

const validRecordJSON = `{
	"title": "Использовать Postgres",
	"tags": ["Database", "Infrastructure"],
	"status": "Accepted",
	"context": "We need a relational store.",
	"decision": "Use Postgres.",
	"drivers": ["cost", "maturity"],
	"alternatives_considered": [
		{"option": "MySQL", "decision": "rejected", "reasoning": "weaker JSON support"}
	],
	"consequences": ["operational maturity", "managed offerings everywhere"]
}`

func TestParse_Valid(t *testing.T) {
	rec, err := Parse([]byte(validRecordJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Title != "Использовать Postgres" {
		t.Errorf("unexpected title: %q", rec.Title)
	}
	if len(rec.Tags) != 2 || rec.Tags[0] != "Database" {
		t.Errorf("unexpected tags: %v", rec.Tags)
	}
	if rec.Status != "Accepted" {
		t.Errorf("unexpected status: %q", rec.Status)
	}
	if _, ok := rec.Body.Get("alternatives_considered"); !ok {
		t.Error("expected alternatives_considered in body")
	}
}

func TestParse_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{
			"no title",
			`{"tags":["x"],"context":"c","decision":"d","consequences":["q"]}`,
			"title",
		},
		{
			"empty title",
			`{"title":"  ","tags":["x"],"context":"c","decision":"d","consequences":["q"]}`,
			"title",
		},
		{
			"no context",
			`{"title":"t","tags":["x"],"decision":"d","consequences":["q"]}`,
			"context",
		},
		{
			"no decision",
			`{"title":"t","tags":["x"],"context":"c","consequences":["q"]}`,
			"decision",
		},
		{
			"no consequences",
			`{"title":"t","tags":["x"],"context":"c","decision":"d"}`,
			"consequences",
		},
		{
			"empty tags",
			`{"title":"t","tags":[],"context":"c","decision":"d","consequences":["q"]}`,
			"tags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.payload))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("expected missing field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestParse_NotAnObject(t *testing.T) {
	if _, err := Parse([]byte(`["just","a","list"]`)); err == nil {
		t.Error("expected error for non-object record")
	}
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestDecodeValue_PreservesKeyOrder(t *testing.T) {
	v, err := DecodeValue([]byte(`{"zeta":"1","alpha":"2","mid":{"b":"3","a":"4"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys := make([]string, 0, len(v.Entries))
	for _, e := range v.Entries {
		keys = append(keys, e.Key)
	}
	want := []string{"zeta", "alpha", "mid"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key order = %v, want %v", keys, want)
		}
	}

	mid, _ := v.Get("mid")
	if mid.Entries[0].Key != "b" || mid.Entries[1].Key != "a" {
		t.Errorf("nested key order not preserved: %+v", mid.Entries)
	}
}

func TestDecodeValue_ScalarCoercion(t *testing.T) {
	v, err := DecodeValue([]byte(`{"n": 42, "f": 0.5, "b": true, "nil": null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := map[string]string{"n": "42", "f": "0.5", "b": "true", "nil": ""}
	for key, want := range checks {
		got, ok := v.Get(key)
		if !ok || got.Scalar != want {
			t.Errorf("%s = %q, want %q", key, got.Scalar, want)
		}
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"**bold** text", "bold text"},
		{"snake_case_words", "snakecasewords"},
		{"plain text", "plain text"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHumanizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alternatives_considered", "Alternatives considered"},
		{"manualFallbackText", "Manual fallback text"},
		{"context", "Context"},
		{"drivers", "Drivers"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := HumanizeKey(tt.in); got != tt.want {
			t.Errorf("HumanizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
