package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestStringFields(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want string
	}{
		{"service", Service("stager"), FieldService, "stager"},
		{"table", Table("doctors"), FieldTable, "doctors"},
		{"topic", Topic("postgres-source.public.doctors"), FieldTopic, "postgres-source.public.doctors"},
		{"field", Field("hire_date"), FieldField, "hire_date"},
		{"object", Object("file:///staging/debezium/doctors/x.json"), FieldObject, "file:///staging/debezium/doctors/x.json"},
		{"reason", Reason("missing_after"), FieldReason, "missing_after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.key {
				t.Errorf("expected key %q, got %q", tt.key, tt.attr.Key)
			}
			if tt.attr.Value.String() != tt.want {
				t.Errorf("expected value %q, got %q", tt.want, tt.attr.Value.String())
			}
		})
	}
}

func TestNumericFields(t *testing.T) {
	if attr := Partition(3); attr.Key != FieldPartition || attr.Value.Int64() != 3 {
		t.Errorf("Partition(3) = %v", attr)
	}
	if attr := Offset(42); attr.Key != FieldOffset || attr.Value.Int64() != 42 {
		t.Errorf("Offset(42) = %v", attr)
	}
	if attr := Records(10); attr.Key != FieldRecords || attr.Value.Int64() != 10 {
		t.Errorf("Records(10) = %v", attr)
	}
	if attr := Duration(1500 * time.Millisecond); attr.Key != FieldDuration || attr.Value.Int64() != 1500 {
		t.Errorf("Duration(1.5s) = %v", attr)
	}
}

func TestError(t *testing.T) {
	attr := Error(errors.New("boom"))
	if attr.Key != FieldError {
		t.Errorf("expected key %q, got %q", FieldError, attr.Key)
	}
	if attr.Value.String() != "boom" {
		t.Errorf("expected value %q, got %q", "boom", attr.Value.String())
	}

	if nilAttr := Error(nil); nilAttr.Value.String() != "" {
		t.Errorf("Error(nil) = %q, want empty", nilAttr.Value.String())
	}
}
