package core

// persist.go defines the persisted form of the active collection: a JSON
// array of flat objects whose keys follow the schema's column order. Go maps
// do not keep insertion order, so both directions work on the token stream
// instead of going through map[string]string.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// StorageKey is the single key the active collection is stored under.
const StorageKey = "dashboardData"

// Persister stores opaque values under string keys. Save fully overwrites
// any previous value. Load returns ErrNotFound when the key was never saved.
type Persister interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}

// jsonArrayWriter writes an array of objects with a fixed key order.
// Its zero value is ready to use.
type jsonArrayWriter struct {
	bytes.Buffer
	err     error
	objects int
}

func (w *jsonArrayWriter) writeString(s string) {
	if w.err != nil {
		return
	}
	b, err := json.Marshal(s)
	if err != nil {
		w.err = fmt.Errorf("encode %q: %w", s, err)
		return
	}
	w.Write(b)
}

func (w *jsonArrayWriter) object(keys []string, rec Record) {
	if w.objects > 0 {
		w.WriteByte(',')
	}
	w.objects++

	w.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			w.WriteByte(',')
		}
		w.writeString(k)
		w.WriteByte(':')
		w.writeString(rec[k])
	}
	w.WriteByte('}')
}

// MarshalCollection encodes c as a JSON array of flat string objects.
func MarshalCollection(c RecordCollection) ([]byte, error) {
	keys := c.Schema.Columns()

	var w jsonArrayWriter
	w.WriteByte('[')
	for _, rec := range c.Records {
		w.object(keys, rec)
	}
	w.WriteByte(']')

	if w.err != nil {
		return nil, w.err
	}
	return w.Bytes(), nil
}

// UnmarshalCollection decodes the persisted form. The first object's keys,
// in document order, become the schema; every other object must carry the
// same key set. Numbers, booleans and null are kept as their string form
// (null becomes ""). Nested values are rejected.
func UnmarshalCollection(data []byte) (RecordCollection, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return RecordCollection{}, err
	}

	var c RecordCollection
	for dec.More() {
		keys, rec, err := decodeObject(dec)
		if err != nil {
			return RecordCollection{}, fmt.Errorf("record %d: %w", len(c.Records), err)
		}
		if c.Schema == nil {
			c.Schema = keys
		}
		c.Records = append(c.Records, rec)
	}

	if err := expectDelim(dec, ']'); err != nil {
		return RecordCollection{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return RecordCollection{}, fmt.Errorf("decode collection: trailing data after array")
	}

	if err := c.Validate(); err != nil {
		return RecordCollection{}, err
	}
	return c, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode collection: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("decode collection: expected %q, got %v", want, tok)
	}
	return nil
}

func decodeObject(dec *json.Decoder) (Schema, Record, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, nil, err
	}

	var keys Schema
	rec := make(Record)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("decode key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("decode key: unexpected %v", tok)
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("decode %q: %w", key, err)
		}
		value, err := scalarString(tok)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: field %q: %w", ErrSchemaMismatch, key, err)
		}

		if _, dup := rec[key]; !dup {
			keys = append(keys, key)
		}
		rec[key] = value
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, nil, err
	}
	return keys, rec, nil
}

func scalarString(tok json.Token) (string, error) {
	switch v := tok.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		if v {
			return "true", nil
		}
		return "false", nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("nested value %v", v)
	}
}

// EncodeCSV renders c as delimited text that Parse reads back: a header line
// and one line per record, values joined by commas without quoting.
func EncodeCSV(c RecordCollection) string {
	var b strings.Builder
	b.WriteString(strings.Join(c.Schema.Columns(), fieldSeparator))
	b.WriteString(lineSeparator)
	for i := range c.Records {
		b.WriteString(strings.Join(c.Row(i), fieldSeparator))
		b.WriteString(lineSeparator)
	}
	return b.String()
}
