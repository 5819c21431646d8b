package contract

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/convert"
)

func TestDefault(t *testing.T) {
	c := Default()
	for _, table := range []string{"doctors", "patients", "medicines", "visits", "billing_payments", "prescriptions"} {
		assert.True(t, c.Has("postgres-source.public."+table), table)
	}
	assert.False(t, c.Has("postgres-source.public.audit_log"))
}

func TestCheck(t *testing.T) {
	c := Default()
	tests := []struct {
		name  string
		table string
		rec   convert.Record
		want  []Violation
	}{
		{
			name:  "valid visit",
			table: "postgres-source.public.visits",
			rec: convert.Record{
				"visit_id":   json.Number("1"),
				"patient_id": json.Number("2"),
				"doctor_id":  nil,
				"visit_date": "2024-02-29",
				"diagnosis":  "flu",
				"total_cost": 125.5,
			},
		},
		{
			name:  "missing required",
			table: "postgres-source.public.doctors",
			rec:   convert.Record{"name": "Dr. Grey"},
			want:  []Violation{{Column: "doctor_id", Reason: "required column is null"}},
		},
		{
			name:  "wrong types",
			table: "postgres-source.public.patients",
			rec: convert.Record{
				"patient_id":    json.Number("1.5"),
				"date_of_birth": json.Number("19000"),
			},
			want: []Violation{
				{Column: "patient_id", Reason: "expected INTEGER, got number 1.5"},
				{Column: "date_of_birth", Reason: "expected DATE, got number 19000"},
			},
		},
		{
			name:  "extra columns",
			table: "postgres-source.public.medicines",
			rec:   convert.Record{"medicine_id": 1, "price": json.Number("4"), "z_col": 1, "a_col": 2},
			want: []Violation{
				{Column: "a_col", Reason: "column not in contract"},
				{Column: "z_col", Reason: "column not in contract"},
			},
		},
		{
			name:  "unknown table",
			table: "postgres-source.public.audit_log",
			rec:   convert.Record{"anything": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Check(tt.table, tt.rec))
		})
	}
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
tables:
  events:
    allow_extra: true
    columns:
      - {name: id, type: integer, required: true}
      - {name: seen_at, type: TIMESTAMP}
      - {name: active, type: BOOLEAN}
`))
	require.NoError(t, err)

	rec := convert.Record{"id": 1, "seen_at": "2024-01-01 10:00:00", "active": true, "extra": "x"}
	assert.Empty(t, c.Check("events", rec))

	rec["seen_at"] = "2024-01-01T10:00:00Z"
	assert.Empty(t, c.Check("events", rec))

	rec["active"] = "yes"
	assert.Len(t, c.Check("events", rec), 1)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("tables: ["))
	assert.Error(t, err)

	_, err = Parse([]byte("tables:\n  t:\n    columns:\n      - {name: a, type: GEOGRAPHY}\n"))
	assert.ErrorContains(t, err, "unknown type")

	_, err = Parse([]byte("tables:\n  t:\n"))
	assert.ErrorContains(t, err, "no columns")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contract.yaml")
	require.NoError(t, os.WriteFile(path, hospitalContract, 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Tables, 6)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
