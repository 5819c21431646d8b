// Package convert turns broker-native column encodings into canonical values.
package convert

import (
	"strconv"
	"strings"

	"github.com/telhawk-systems/telhawk-cdc/stager/internal/envelope"
)

// Kind classifies how a column is converted.
type Kind uint8

const (
	KindPassthrough Kind = iota
	KindDate
	KindTimestamp
	KindDecimal
)

func (k Kind) String() string {
	switch k {
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	case KindDecimal:
		return "decimal"
	default:
		return "passthrough"
	}
}

// FieldKind is the resolved conversion for one column. Scale is only
// meaningful for KindDecimal.
type FieldKind struct {
	Kind  Kind
	Scale int
}

// Passthrough is the kind of any column the schema does not describe.
var Passthrough = FieldKind{Kind: KindPassthrough}

// Options controls decimal scale resolution.
type Options struct {
	// DefaultScale applies to every decimal column without a usable schema scale.
	DefaultScale int
	// ScaleFromSchema lets parameters.scale override DefaultScale.
	ScaleFromSchema bool
}

// DefaultOptions matches connectors that emit money columns as NUMERIC(p,2).
func DefaultOptions() Options {
	return Options{DefaultScale: 2, ScaleFromSchema: true}
}

// Kinds maps column names to their resolved kind.
type Kinds map[string]FieldKind

// Of returns the kind for field, Passthrough when unknown.
func (k Kinds) Of(field string) FieldKind {
	if fk, ok := k[field]; ok {
		return fk
	}
	return Passthrough
}

// ResolveKinds classifies every schema field once per message.
func ResolveKinds(fields []envelope.SchemaField, opts Options) Kinds {
	kinds := make(Kinds, len(fields))
	for _, f := range fields {
		kinds[f.Field] = ResolveKind(f, opts)
	}
	return kinds
}

// ResolveKind classifies a field by its semantic type tag. Tags are matched
// case-insensitively by substring, in the order date, timestamp, decimal.
func ResolveKind(f envelope.SchemaField, opts Options) FieldKind {
	tag := strings.ToLower(f.Name)
	switch {
	case strings.Contains(tag, "date"):
		return FieldKind{Kind: KindDate}
	case strings.Contains(tag, "timestamp"):
		return FieldKind{Kind: KindTimestamp}
	case strings.Contains(tag, "decimal"):
		return FieldKind{Kind: KindDecimal, Scale: decimalScale(f, opts)}
	}
	return Passthrough
}

func decimalScale(f envelope.SchemaField, opts Options) int {
	if !opts.ScaleFromSchema {
		return opts.DefaultScale
	}
	raw, ok := f.Parameters["scale"]
	if !ok {
		return opts.DefaultScale
	}
	scale, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return opts.DefaultScale
	}
	return scale
}
