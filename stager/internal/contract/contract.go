// Package contract checks staged records against the column types the
// warehouse load jobs declare.
package contract

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/telhawk-cdc/stager/internal/convert"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/sink"
)

//go:embed hospital.yaml
var hospitalContract []byte

// Column types understood by the loader.
const (
	TypeInteger   = "INTEGER"
	TypeFloat     = "FLOAT"
	TypeString    = "STRING"
	TypeDate      = "DATE"
	TypeTimestamp = "TIMESTAMP"
	TypeBoolean   = "BOOLEAN"
)

// Column declares one loader column and its type.
type Column struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
}

// Table is the contract for one source table, keyed by its short name.
type Table struct {
	Columns []Column `yaml:"columns"`
	// AllowExtra accepts columns the contract does not list.
	AllowExtra bool `yaml:"allow_extra"`

	byName map[string]Column
}

// Contract maps short table names to their column declarations.
type Contract struct {
	Tables map[string]*Table `yaml:"tables"`
}

// Violation is one mismatch between a record and its table contract.
type Violation struct {
	Column string `json:"column"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return v.Column + ": " + v.Reason
}

// Default returns the built-in hospital contract.
func Default() *Contract {
	c, err := Parse(hospitalContract)
	if err != nil {
		panic(fmt.Sprintf("built-in contract: %v", err))
	}
	return c
}

// Load reads a contract file.
func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML contract.
func Parse(data []byte) (*Contract, error) {
	var c Contract
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse contract: %w", err)
	}
	for name, t := range c.Tables {
		if t == nil {
			return nil, fmt.Errorf("table %q has no columns", name)
		}
		t.byName = make(map[string]Column, len(t.Columns))
		for i := range t.Columns {
			t.Columns[i].Type = strings.ToUpper(t.Columns[i].Type)
			col := t.Columns[i]
			switch col.Type {
			case TypeInteger, TypeFloat, TypeString, TypeDate, TypeTimestamp, TypeBoolean:
			default:
				return nil, fmt.Errorf("table %q column %q: unknown type %q", name, col.Name, col.Type)
			}
			t.byName[col.Name] = col
		}
	}
	return &c, nil
}

// Has reports whether table is covered by the contract.
func (c *Contract) Has(table string) bool {
	_, ok := c.Tables[sink.ShortName(table)]
	return ok
}

// Check returns the violations of rec. Tables the contract does not cover
// never violate it.
func (c *Contract) Check(table string, rec convert.Record) []Violation {
	t, ok := c.Tables[sink.ShortName(table)]
	if !ok {
		return nil
	}

	var out []Violation
	for _, col := range t.Columns {
		v, present := rec[col.Name]
		if !present || v == nil {
			if col.Required {
				out = append(out, Violation{Column: col.Name, Reason: "required column is null"})
			}
			continue
		}
		if !matches(col.Type, v) {
			out = append(out, Violation{Column: col.Name, Reason: fmt.Sprintf("expected %s, got %s", col.Type, describe(v))})
		}
	}

	if !t.AllowExtra {
		var extra []string
		for name := range rec {
			if _, ok := t.byName[name]; !ok {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		for _, name := range extra {
			out = append(out, Violation{Column: name, Reason: "column not in contract"})
		}
	}
	return out
}

func matches(typ string, v any) bool {
	switch typ {
	case TypeInteger:
		switch n := v.(type) {
		case json.Number:
			_, err := n.Int64()
			return err == nil
		case int, int32, int64:
			return true
		case float64:
			return n == math.Trunc(n)
		}
	case TypeFloat:
		switch n := v.(type) {
		case json.Number:
			_, err := n.Float64()
			return err == nil
		case int, int32, int64, float32, float64:
			return true
		}
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeDate:
		s, ok := v.(string)
		if !ok {
			return false
		}
		_, err := time.Parse("2006-01-02", s)
		return err == nil
	case TypeTimestamp:
		s, ok := v.(string)
		if !ok {
			return false
		}
		if _, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
			return true
		}
		_, err := time.Parse(time.RFC3339Nano, s)
		return err == nil
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	}
	return false
}

func describe(v any) string {
	switch x := v.(type) {
	case json.Number:
		return "number " + string(x)
	case string:
		return fmt.Sprintf("string %q", v)
	default:
		return fmt.Sprintf("%T", v)
	}
}
