package seeder

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/telhawk-cdc/stager/internal/convert"
)

// Debezium logical type names used by the generated schemas.
const (
	logicalDate      = "io.debezium.time.Date"
	logicalTimestamp = "io.debezium.time.MicroTimestamp"
	logicalDecimal   = "org.apache.kafka.connect.data.Decimal"
)

// Column is one generated column and its Connect schema.
type Column struct {
	Field      string
	Type       string
	Name       string
	Parameters map[string]string
	Optional   bool
	gen        func(f *gofakeit.Faker, id int) interface{}
}

// Table is a hospital source table.
type Table struct {
	Name    string
	Key     string
	Columns []Column
}

func intCol(field string, gen func(f *gofakeit.Faker, id int) interface{}) Column {
	return Column{Field: field, Type: "int32", gen: gen}
}

func strCol(field string, gen func(f *gofakeit.Faker) string) Column {
	return Column{Field: field, Type: "string", Optional: true, gen: func(f *gofakeit.Faker, _ int) interface{} { return gen(f) }}
}

func keyCol(field string) Column {
	return intCol(field, func(_ *gofakeit.Faker, id int) interface{} { return id })
}

func refCol(field string, max int) Column {
	c := intCol(field, func(f *gofakeit.Faker, _ int) interface{} { return f.Number(1, max) })
	c.Optional = true
	return c
}

// dateCol emits days since the epoch between from and to.
func dateCol(field string, from, to time.Time) Column {
	return Column{
		Field:    field,
		Type:     "int32",
		Name:     logicalDate,
		Optional: true,
		gen: func(f *gofakeit.Faker, _ int) interface{} {
			return int32(f.DateRange(from, to).Unix() / 86400)
		},
	}
}

// timestampCol emits microseconds since the epoch in the last year.
func timestampCol(field string) Column {
	return Column{
		Field:    field,
		Type:     "int64",
		Name:     logicalTimestamp,
		Optional: true,
		gen: func(f *gofakeit.Faker, _ int) interface{} {
			now := time.Now().UTC()
			return f.DateRange(now.AddDate(-1, 0, 0), now).UnixMicro()
		},
	}
}

// decimalCol emits a base64 two's complement unscaled value at scale 2.
func decimalCol(field string, min, max float64) Column {
	return Column{
		Field:      field,
		Type:       "bytes",
		Name:       logicalDecimal,
		Parameters: map[string]string{"scale": "2", "connect.decimal.precision": "10"},
		Optional:   true,
		gen: func(f *gofakeit.Faker, _ int) interface{} {
			cents := int64(f.Price(min, max) * 100)
			return convert.EncodeUnscaled(big.NewInt(cents))
		},
	}
}

func pick(values ...string) func(f *gofakeit.Faker) string {
	return func(f *gofakeit.Faker) string { return f.RandomString(values) }
}

var (
	epoch1940 = time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC)
	epoch2015 = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	epoch2020 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	epoch2025 = time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Tables are the hospital source tables, keyed by short name.
var Tables = map[string]Table{
	"doctors": {
		Name: "doctors",
		Key:  "doctor_id",
		Columns: []Column{
			keyCol("doctor_id"),
			strCol("name", func(f *gofakeit.Faker) string { return "Dr. " + f.Name() }),
			strCol("specialization", pick("Cardiology", "Neurology", "Pediatrics", "Oncology", "Orthopedics", "General Medicine")),
			intCol("experience_years", func(f *gofakeit.Faker, _ int) interface{} { return f.Number(1, 40) }),
			strCol("contact_info", func(f *gofakeit.Faker) string { return f.Phone() }),
		},
	},
	"patients": {
		Name: "patients",
		Key:  "patient_id",
		Columns: []Column{
			keyCol("patient_id"),
			strCol("full_name", func(f *gofakeit.Faker) string { return f.Name() }),
			dateCol("date_of_birth", epoch1940, epoch2020),
			strCol("gender", pick("Male", "Female")),
			strCol("blood_type", pick("A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-")),
			strCol("contact_info", func(f *gofakeit.Faker) string { return f.Email() }),
			strCol("insurance_id", func(f *gofakeit.Faker) string { return f.Regex("INS-[0-9]{8}") }),
		},
	},
	"medicines": {
		Name: "medicines",
		Key:  "medicine_id",
		Columns: []Column{
			keyCol("medicine_id"),
			strCol("name", pick("Aspirin", "Ibuprofen", "Amoxicillin", "Metformin", "Lisinopril", "Atorvastatin", "Omeprazole")),
			strCol("category", pick("Analgesic", "Antibiotic", "Antidiabetic", "Antihypertensive", "Statin")),
			strCol("manufacturer", func(f *gofakeit.Faker) string { return f.Company() }),
			decimalCol("price", 1, 250),
		},
	},
	"visits": {
		Name: "visits",
		Key:  "visit_id",
		Columns: []Column{
			keyCol("visit_id"),
			refCol("patient_id", 1000),
			refCol("doctor_id", 100),
			dateCol("visit_date", epoch2015, epoch2025),
			strCol("diagnosis", pick("Hypertension", "Diabetes", "Influenza", "Fracture", "Migraine", "Asthma")),
			decimalCol("total_cost", 50, 5000),
		},
	},
	"billing_payments": {
		Name: "billing_payments",
		Key:  "billing_id",
		Columns: []Column{
			keyCol("billing_id"),
			refCol("patient_id", 1000),
			refCol("visit_id", 5000),
			dateCol("billing_date", epoch2015, epoch2025),
			decimalCol("total_amount", 50, 5000),
			strCol("payment_status", pick("Paid", "Pending", "Overdue")),
			timestampCol("updated_at"),
		},
	},
	"prescriptions": {
		Name: "prescriptions",
		Key:  "prescription_id",
		Columns: []Column{
			keyCol("prescription_id"),
			refCol("patient_id", 1000),
			refCol("doctor_id", 100),
			refCol("medicine_id", 200),
			strCol("dosage", pick("250mg", "500mg", "10mg", "20mg", "1 tablet")),
			strCol("duration", pick("5 days", "7 days", "14 days", "30 days")),
		},
	},
}

// TableNames returns the known table names, sorted.
func TableNames() []string {
	names := make([]string, 0, len(Tables))
	for name := range Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the table named name.
func Lookup(name string) (Table, error) {
	t, ok := Tables[name]
	if !ok {
		return Table{}, fmt.Errorf("unknown table %q (known: %v)", name, TableNames())
	}
	return t, nil
}
