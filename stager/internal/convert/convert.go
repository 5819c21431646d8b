package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrConversion marks a column that could not be converted. The column is
// emitted as null.
var ErrConversion = errors.New("conversion failed")

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

var epoch = time.Unix(0, 0).UTC()

// Record is a converted row ready for staging.
type Record map[string]any

// Result is the outcome of converting a single value.
type Result struct {
	Value any
	Err   error
}

// Ok reports whether the conversion succeeded.
func (r Result) Ok() bool { return r.Err == nil }

// ConversionError describes a failed column.
type ConversionError struct {
	Field string
	Kind  Kind
	Value any
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s field %q: %v", e.Kind, e.Field, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// Convert applies kinds to every column of after. Failed columns are set to
// null and reported in errs; the record is always returned.
func Convert(after map[string]any, kinds Kinds) (Record, []error) {
	rec := make(Record, len(after))
	var errs []error
	for name, raw := range after {
		res := Field(name, raw, kinds.Of(name))
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
		rec[name] = res.Value
	}
	return rec, errs
}

// Field converts one column.
func Field(name string, v any, kind FieldKind) Result {
	var res Result
	switch kind.Kind {
	case KindDate:
		res = Date(v)
	case KindTimestamp:
		res = Timestamp(v)
	case KindDecimal:
		res = Decimal(v, kind.Scale)
	default:
		return Result{Value: v}
	}
	if res.Err != nil {
		return Result{Err: &ConversionError{Field: name, Kind: kind.Kind, Value: v, Err: res.Err}}
	}
	return res
}

// Date converts days since 1970-01-01 to YYYY-MM-DD. Non-integer values are
// returned unchanged.
func Date(v any) Result {
	if v == nil {
		return Result{}
	}
	days, ok := asInt64(v)
	if !ok {
		return Result{Value: v}
	}
	const maxDays = 2932896 // 9999-12-31
	const minDays = -719162 // 0001-01-01
	if days > maxDays || days < minDays {
		return Result{Err: fmt.Errorf("epoch day %d out of range", days)}
	}
	return Result{Value: epoch.AddDate(0, 0, int(days)).Format(dateLayout)}
}

// Timestamp converts microseconds since the epoch to a UTC
// "YYYY-MM-DD HH:MM:SS" string. Non-integer values are returned unchanged.
func Timestamp(v any) Result {
	if v == nil {
		return Result{}
	}
	micros, ok := asInt64(v)
	if !ok {
		return Result{Value: v}
	}
	t := time.UnixMicro(micros).UTC()
	if t.Year() < 1 || t.Year() > 9999 {
		return Result{Err: fmt.Errorf("epoch microseconds %d out of range", micros)}
	}
	return Result{Value: t.Format(dateTimeLayout)}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
