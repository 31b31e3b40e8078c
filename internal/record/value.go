package record

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind discriminates the closed set of shapes a record body can hold.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindObject
)

// Value is one node of a decoded record body. Exactly one of Scalar, Items or
// Entries is meaningful, selected by Kind.
type Value struct {
	Kind    Kind
	Scalar  string
	Items   []Value
	Entries []Entry
}

// Entry is a keyed child of an object value. Entries keep the key order of the
// JSON they were decoded from, which fixes the block order of rendered pages.
type Entry struct {
	Key   string
	Value Value
}

// Get returns the child value for key, if present.
func (v Value) Get(key string) (Value, bool) {
	for _, e := range v.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// DecodeValue parses arbitrary JSON into a Value tree. Object key order is
// preserved, which json.Unmarshal into a map would destroy.
func DecodeValue(data []byte) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if dec.More() {
		return Value{}, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("read token: %w", err)
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return Value{Kind: KindScalar, Scalar: t}, nil
	case json.Number:
		return Value{Kind: KindScalar, Scalar: t.String()}, nil
	case bool:
		return Value{Kind: KindScalar, Scalar: fmt.Sprintf("%t", t)}, nil
	case nil:
		return Value{Kind: KindScalar, Scalar: ""}, nil
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder) (Value, error) {
	v := Value{Kind: KindObject}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Value{}, fmt.Errorf("read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key is not a string: %v", keyTok)
		}
		child, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		v.Entries = append(v.Entries, Entry{Key: key, Value: child})
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return Value{}, fmt.Errorf("close object: %w", err)
	}
	return v, nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	v := Value{Kind: KindList}
	for dec.More() {
		child, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		v.Items = append(v.Items, child)
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return Value{}, fmt.Errorf("close array: %w", err)
	}
	return v, nil
}
