// Package record holds the typed decision-record model produced by AI
// generation and reconstructed during recovery, plus the text normalisation
// rules shared by everything that renders it.
package record

import (
	"fmt"
	"strings"
	"unicode"
)

// Property-level keys. These become page metadata rather than body content and
// are skipped when the body is rendered.
const (
	KeyTitle          = "title"
	KeyTags           = "tags"
	KeyStatus         = "status"
	KeyManualFallback = "manual_fallback_text"
)

// RequiredKeys are the fields a generated record must carry to be usable.
var RequiredKeys = []string{"title", "tags", "context", "decision", "consequences"}

// DecisionRecord is one structured decision extracted from a thread.
// Body keeps the full ordered field tree (context, decision, drivers,
// alternatives_considered, consequences, ...) for rendering.
type DecisionRecord struct {
	Title          string
	Tags           []string
	Status         string
	ManualFallback string
	Body           Value
}

// ValidationError names the required field a generated record is missing.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record is missing required field %q", e.Field)
}

// Parse decodes generation output into a DecisionRecord, rejecting anything
// structurally incomplete.
func Parse(data []byte) (*DecisionRecord, error) {
	body, err := DecodeValue(data)
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if body.Kind != KindObject {
		return nil, fmt.Errorf("record is not a JSON object")
	}

	for _, key := range RequiredKeys {
		v, ok := body.Get(key)
		if !ok || isEmpty(v) {
			return nil, &ValidationError{Field: key}
		}
	}

	rec := &DecisionRecord{Body: body}

	if v, ok := body.Get(KeyTitle); ok {
		rec.Title = v.Scalar
	}
	if v, ok := body.Get(KeyStatus); ok {
		rec.Status = v.Scalar
	}
	if v, ok := body.Get(KeyManualFallback); ok {
		rec.ManualFallback = v.Scalar
	}
	if v, ok := body.Get(KeyTags); ok {
		for _, item := range v.Items {
			if item.Kind == KindScalar && item.Scalar != "" {
				rec.Tags = append(rec.Tags, item.Scalar)
			}
		}
	}
	if len(rec.Tags) == 0 {
		return nil, &ValidationError{Field: KeyTags}
	}

	return rec, nil
}

func isEmpty(v Value) bool {
	switch v.Kind {
	case KindScalar:
		return strings.TrimSpace(v.Scalar) == ""
	case KindList:
		return len(v.Items) == 0
	case KindObject:
		return len(v.Entries) == 0
	}
	return true
}

// Sanitize strips inline emphasis markers. Generation is instructed to avoid
// them but is not trusted to comply.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	return strings.ReplaceAll(s, "_", "")
}

// HumanizeKey turns a snake_case or camelCase field name into heading text:
// separators become spaces, camel boundaries split, sentence case.
func HumanizeKey(key string) string {
	spaced := strings.ReplaceAll(key, "_", " ")

	var b strings.Builder
	runes := []rune(spaced)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}

	out := strings.ToLower(b.String())
	if out == "" {
		return out
	}
	return strings.ToUpper(out[:1]) + out[1:]
}
