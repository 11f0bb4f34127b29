// Package ingestion defines the row types shared by corpus sources, the
// index builders, the row store and the query engine.
package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RowID is the 0-based ordinal of a row in corpus traversal order. The
// inverted index and the row store assign identical ids to the same row.
type RowID uint32

// Field is one named cell of a row. Value is a string, a json.Number, a bool
// or nil.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered field-name to value mapping. Its JSON form keeps the
// field order so a row read back from the row store matches what was written.
type Record []Field

// Get returns the value stored under name.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Text returns the value under name when it is a string. Numbers and
// missing columns report false.
func (r Record) Text(name string) (string, bool) {
	v, ok := r.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Set replaces the value of an existing field in place or appends a new one.
func (r *Record) Set(name string, value any) {
	for i := range *r {
		if (*r)[i].Name == name {
			(*r)[i].Value = value
			return
		}
	}
	*r = append(*r, Field{Name: name, Value: value})
}

// MarshalJSON encodes the record as a JSON object in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, fmt.Errorf("encoding field name %q: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding field %q: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order and decoding
// numbers as json.Number so they re-encode verbatim.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading record: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("reading record: expected object, got %v", tok)
	}
	out := make(Record, 0, 8)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("reading record key: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("reading record key: unexpected %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("reading record field %q: %w", name, err)
		}
		out.Set(name, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("reading record end: %w", err)
	}
	*r = out
	return nil
}
