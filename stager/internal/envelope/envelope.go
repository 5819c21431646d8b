// Package envelope decodes Debezium-style change events (schema + payload)
// into the after-image of the changed row and its field schemas.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spyzhov/ajson"
)

var (
	// ErrMalformed is returned when the message body is not a JSON envelope.
	ErrMalformed = errors.New("malformed envelope")

	// ErrMissingAfter is returned when payload.after is null, absent or not an
	// object. Deletes and tombstones land here.
	ErrMissingAfter = errors.New("envelope has no after image")
)

// SchemaField describes one column of the after-image.
type SchemaField struct {
	// Field is the column name.
	Field string
	// Name is the semantic type tag, e.g. "io.debezium.time.Date".
	Name string
	// Type is the physical connect type, e.g. "int32" or "bytes".
	Type       string
	Optional   bool
	Parameters map[string]string
}

// Source carries payload.source metadata.
type Source struct {
	Connector string `json:"connector,omitempty"`
	DB        string `json:"db,omitempty"`
	Schema    string `json:"schema,omitempty"`
	Table     string `json:"table,omitempty"`
	TsMs      int64  `json:"ts_ms,omitempty"`
}

// Envelope is a decoded change event.
type Envelope struct {
	Op     string
	Source Source
	// After maps column names to raw values. Numbers are json.Number so that
	// integers survive exactly.
	After  map[string]any
	Fields []SchemaField
}

// Decode parses a message body. A body that is itself a JSON string holding
// the envelope is unwrapped once.
func Decode(body []byte) (*Envelope, error) {
	root, err := ajson.Unmarshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if root.IsString() {
		inner, err := root.GetString()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if root, err = ajson.Unmarshal([]byte(inner)); err != nil {
			return nil, fmt.Errorf("%w: double-encoded body: %v", ErrMalformed, err)
		}
	}

	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformed)
	}

	payload := child(root, "payload")
	if payload == nil || payload.IsNull() {
		return nil, ErrMissingAfter
	}
	if !payload.IsObject() {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformed)
	}

	afterNode := child(payload, "after")
	if afterNode == nil || !afterNode.IsObject() {
		return nil, ErrMissingAfter
	}
	after, err := unpackObject(afterNode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(after) == 0 {
		return nil, ErrMissingAfter
	}

	env := &Envelope{
		Op:     stringValue(child(payload, "op")),
		Source: decodeSource(child(payload, "source")),
		After:  after,
		Fields: afterFields(child(root, "schema")),
	}
	return env, nil
}

// afterFields finds the schema entry whose field is "after" and returns its
// nested field list. Any other shape yields nil.
func afterFields(schema *ajson.Node) []SchemaField {
	if schema == nil || !schema.IsObject() {
		return nil
	}
	fields := child(schema, "fields")
	if fields == nil || !fields.IsArray() {
		return nil
	}
	entries, err := fields.GetArray()
	if err != nil {
		return nil
	}

	for _, entry := range entries {
		if !entry.IsObject() || stringValue(child(entry, "field")) != "after" {
			continue
		}
		nested := child(entry, "fields")
		if nested == nil || !nested.IsArray() {
			return nil
		}
		items, err := nested.GetArray()
		if err != nil {
			return nil
		}

		out := make([]SchemaField, 0, len(items))
		for _, item := range items {
			if !item.IsObject() {
				continue
			}
			sf := SchemaField{
				Field:      stringValue(child(item, "field")),
				Name:       stringValue(child(item, "name")),
				Type:       stringValue(child(item, "type")),
				Parameters: parameters(child(item, "parameters")),
			}
			if opt := child(item, "optional"); opt != nil && opt.IsBool() {
				sf.Optional, _ = opt.GetBool()
			}
			if sf.Field == "" {
				continue
			}
			out = append(out, sf)
		}
		return out
	}
	return nil
}

func decodeSource(n *ajson.Node) Source {
	if n == nil || !n.IsObject() {
		return Source{}
	}
	src := Source{
		Connector: stringValue(child(n, "connector")),
		DB:        stringValue(child(n, "db")),
		Schema:    stringValue(child(n, "schema")),
		Table:     stringValue(child(n, "table")),
	}
	if ts := child(n, "ts_ms"); ts != nil && ts.IsNumeric() {
		if v, err := json.Number(ts.Source()).Int64(); err == nil {
			src.TsMs = v
		}
	}
	return src
}

func parameters(n *ajson.Node) map[string]string {
	if n == nil || !n.IsObject() {
		return nil
	}
	obj, err := n.GetObject()
	if err != nil || len(obj) == 0 {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		if v.IsString() {
			out[k], _ = v.GetString()
			continue
		}
		out[k] = string(v.Source())
	}
	return out
}

func child(n *ajson.Node, key string) *ajson.Node {
	if !n.HasKey(key) {
		return nil
	}
	c, err := n.GetKey(key)
	if err != nil {
		return nil
	}
	return c
}

func stringValue(n *ajson.Node) string {
	if n == nil || !n.IsString() {
		return ""
	}
	s, _ := n.GetString()
	return s
}

func unpackObject(n *ajson.Node) (map[string]any, error) {
	obj, err := n.GetObject()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		val, err := unpack(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func unpack(n *ajson.Node) (any, error) {
	switch {
	case n.IsNull():
		return nil, nil
	case n.IsBool():
		return n.GetBool()
	case n.IsString():
		return n.GetString()
	case n.IsNumeric():
		return json.Number(n.Source()), nil
	case n.IsArray():
		items, err := n.GetArray()
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			v, err := unpack(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case n.IsObject():
		return unpackObject(n)
	}
	return nil, fmt.Errorf("unsupported node type %v", n.Type())
}
