// Package output renders cdcctl results for humans and scripts.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	// Stdout and Stderr are swapped in tests.
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr

	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	headerColor  = color.New(color.FgWhite, color.Bold)
)

// DisableColor turns off escapes for every writer. Color is already off
// when stdout is not a terminal or NO_COLOR is set.
func DisableColor() {
	color.NoColor = true
}

func Success(format string, a ...interface{}) {
	fmt.Fprintln(Stdout, successColor.Sprintf("✓ "+format, a...))
}

func Error(format string, a ...interface{}) {
	fmt.Fprintln(Stderr, errorColor.Sprintf("✗ "+format, a...))
}

func Info(format string, a ...interface{}) {
	fmt.Fprintln(Stdout, infoColor.Sprintf(format, a...))
}

func Warn(format string, a ...interface{}) {
	fmt.Fprintln(Stdout, warnColor.Sprintf("⚠ "+format, a...))
}

// JSON writes v indented to w.
func JSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Table renders aligned columns. Trailing blanks are trimmed so empty
// cells at the end of a row leave no padding behind.
type Table struct {
	headers []string
	rows    [][]string
}

func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow appends a row. Missing cells render empty; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

func (t *Table) Len() int { return len(t.rows) }

func (t *Table) Render(w io.Writer) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.headers, "\t"))
	for _, row := range t.rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " ")
		if i == 0 {
			line = headerColor.Sprint(line)
		}
		fmt.Fprintln(w, line)
	}
}
