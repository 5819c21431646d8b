package sink

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// DefaultPrefix is the key prefix staged objects are written under.
const DefaultPrefix = "debezium"

// ShortName returns the last dotted segment of a table identifier:
// "postgres-source.public.doctors" becomes "doctors".
func ShortName(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		return table[i+1:]
	}
	return table
}

// Namer derives object keys of the form
// {prefix}/{table}/{table}_{YYYYMMDD_HHMMSS_ffffff}.json. Keys for the same
// table are strictly increasing even when the clock stalls or steps back.
type Namer struct {
	prefix string
	now    func() time.Time
	last   map[string]time.Time
}

// NewNamer creates a Namer. A nil clock uses time.Now.
func NewNamer(prefix string, now func() time.Time) *Namer {
	if now == nil {
		now = time.Now
	}
	return &Namer{
		prefix: strings.Trim(prefix, "/"),
		now:    now,
		last:   make(map[string]time.Time),
	}
}

// Next returns a fresh key for table.
func (n *Namer) Next(table string) string {
	short := ShortName(table)

	ts := n.now().UTC().Truncate(time.Microsecond)
	if last, ok := n.last[short]; ok && !ts.After(last) {
		ts = last.Add(time.Microsecond)
	}
	n.last[short] = ts

	file := fmt.Sprintf("%s_%s_%06d.json", short, ts.Format("20060102_150405"), ts.Nanosecond()/1000)
	return path.Join(n.prefix, short, file)
}
