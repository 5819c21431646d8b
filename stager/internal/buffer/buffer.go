// Package buffer holds converted records per table until they are staged.
//
// A Set is owned by a single goroutine and is not safe for concurrent use.
package buffer

import (
	"sort"

	"github.com/telhawk-systems/telhawk-cdc/common/messaging"
	"github.com/telhawk-systems/telhawk-cdc/stager/internal/convert"
)

// DefaultThreshold is the record count that makes a table ready to flush.
const DefaultThreshold = 10

// Buffer is the pending batch of one table.
type Buffer struct {
	records []convert.Record
	// pending is the highest consumed offset per partition routed to this
	// table since the last clear, including messages that were dropped.
	pending map[messaging.PartitionKey]int64
}

func (b *Buffer) track(cp messaging.Checkpoint) {
	if b.pending == nil {
		b.pending = make(map[messaging.PartitionKey]int64)
	}
	key := cp.Key()
	if cur, ok := b.pending[key]; !ok || cp.Offset > cur {
		b.pending[key] = cp.Offset
	}
}

// TableStats is a point-in-time view of one table buffer.
type TableStats struct {
	Table       string                 `json:"table"`
	Records     int                    `json:"records"`
	Checkpoints []messaging.Checkpoint `json:"checkpoints,omitempty"`
}

// Set keeps one Buffer per table.
type Set struct {
	threshold int
	buffers   map[string]*Buffer
}

// NewSet creates a Set that reports a table ready once it holds threshold
// records. Values below 1 fall back to DefaultThreshold.
func NewSet(threshold int) *Set {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Set{
		threshold: threshold,
		buffers:   make(map[string]*Buffer),
	}
}

// Threshold returns the configured flush threshold.
func (s *Set) Threshold() int { return s.threshold }

func (s *Set) get(table string) *Buffer {
	b, ok := s.buffers[table]
	if !ok {
		b = &Buffer{}
		s.buffers[table] = b
	}
	return b
}

// Append adds rec to the table buffer, records cp as consumed and returns
// the new buffer length.
func (s *Set) Append(table string, rec convert.Record, cp messaging.Checkpoint) int {
	b := s.get(table)
	b.records = append(b.records, rec)
	b.track(cp)
	return len(b.records)
}

// Track records cp as consumed without adding a record. The position is
// committed with the table's next successful flush.
func (s *Set) Track(table string, cp messaging.Checkpoint) {
	s.get(table).track(cp)
}

// Ready reports whether the table buffer reached the threshold.
func (s *Set) Ready(table string) bool {
	return s.Len(table) >= s.threshold
}

// Len returns the number of buffered records for table.
func (s *Set) Len(table string) int {
	if b, ok := s.buffers[table]; ok {
		return len(b.records)
	}
	return 0
}

// Snapshot returns a copy of the buffered records in arrival order.
func (s *Set) Snapshot(table string) []convert.Record {
	b, ok := s.buffers[table]
	if !ok || len(b.records) == 0 {
		return nil
	}
	out := make([]convert.Record, len(b.records))
	copy(out, b.records)
	return out
}

// Checkpoints returns the pending positions of table sorted by topic and
// partition.
func (s *Set) Checkpoints(table string) []messaging.Checkpoint {
	b, ok := s.buffers[table]
	if !ok || len(b.pending) == 0 {
		return nil
	}
	out := make([]messaging.Checkpoint, 0, len(b.pending))
	for key, off := range b.pending {
		out = append(out, messaging.Checkpoint{Topic: key.Topic, Partition: key.Partition, Offset: off})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Partition < out[j].Partition
	})
	return out
}

// Clear drops the records and pending positions of table.
func (s *Set) Clear(table string) {
	delete(s.buffers, table)
}

// Tables returns every table with records or pending positions, sorted.
func (s *Set) Tables() []string {
	out := make([]string, 0, len(s.buffers))
	for t := range s.buffers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NonEmpty returns the sorted tables that hold at least one record.
func (s *Set) NonEmpty() []string {
	var out []string
	for _, t := range s.Tables() {
		if len(s.buffers[t].records) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Total returns the number of buffered records across all tables.
func (s *Set) Total() int {
	n := 0
	for _, b := range s.buffers {
		n += len(b.records)
	}
	return n
}

// Stats returns a sorted view of every table.
func (s *Set) Stats() []TableStats {
	tables := s.Tables()
	out := make([]TableStats, 0, len(tables))
	for _, t := range tables {
		out = append(out, TableStats{
			Table:       t,
			Records:     len(s.buffers[t].records),
			Checkpoints: s.Checkpoints(t),
		})
	}
	return out
}
