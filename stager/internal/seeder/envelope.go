package seeder

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Generator builds Debezium change envelopes with fake row data.
type Generator struct {
	faker     *gofakeit.Faker
	connector string
	database  string
	schema    string
	now       func() time.Time
}

// NewGenerator creates a Generator. A zero seed uses a random one.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		faker:     gofakeit.New(seed),
		connector: "postgresql",
		database:  "hospital",
		schema:    "public",
		now:       time.Now,
	}
}

// Row generates the after image for row id of t.
func (g *Generator) Row(t Table, id int) map[string]interface{} {
	row := make(map[string]interface{}, len(t.Columns))
	for _, c := range t.Columns {
		row[c.Field] = c.gen(g.faker, id)
	}
	return row
}

// Envelope renders a create event for row id of t, schema included.
func (g *Generator) Envelope(t Table, id int) ([]byte, error) {
	ts := g.now().UnixMilli()

	after := make([]map[string]interface{}, 0, len(t.Columns))
	for _, c := range t.Columns {
		field := map[string]interface{}{
			"field":    c.Field,
			"type":     c.Type,
			"optional": c.Optional,
		}
		if c.Name != "" {
			field["name"] = c.Name
			field["version"] = 1
		}
		if len(c.Parameters) > 0 {
			field["parameters"] = c.Parameters
		}
		after = append(after, field)
	}

	valueName := fmt.Sprintf("postgres-source.%s.%s.Value", g.schema, t.Name)
	env := map[string]interface{}{
		"schema": map[string]interface{}{
			"type": "struct",
			"name": fmt.Sprintf("postgres-source.%s.%s.Envelope", g.schema, t.Name),
			"fields": []map[string]interface{}{
				{"field": "before", "type": "struct", "optional": true, "name": valueName, "fields": after},
				{"field": "after", "type": "struct", "optional": true, "name": valueName, "fields": after},
				{"field": "source", "type": "struct", "optional": false, "name": "io.debezium.connector.postgresql.Source"},
				{"field": "op", "type": "string", "optional": false},
				{"field": "ts_ms", "type": "int64", "optional": true},
			},
		},
		"payload": map[string]interface{}{
			"before": nil,
			"after":  g.Row(t, id),
			"source": map[string]interface{}{
				"connector": g.connector,
				"db":        g.database,
				"schema":    g.schema,
				"table":     t.Name,
				"ts_ms":     ts,
			},
			"op":    "c",
			"ts_ms": ts,
		},
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Key renders the Debezium message key for row id of t.
func Key(t Table, id int) []byte {
	return []byte(fmt.Sprintf(`{"%s":%d}`, t.Key, id))
}

// Malformed returns a truncated envelope that no decoder accepts.
func (g *Generator) Malformed(t Table, id int) []byte {
	return []byte(fmt.Sprintf(`{"payload":{"after":{"%s":%d,`, t.Key, id))
}
