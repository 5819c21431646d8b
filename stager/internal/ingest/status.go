package ingest

import (
	"time"

	"github.com/telhawk-systems/telhawk-cdc/stager/internal/buffer"
)

// State is the loop's position in its cycle.
type State string

const (
	StateIdle       State = "IDLE"
	StatePolling    State = "POLLING"
	StateDecoding   State = "DECODING"
	StateBuffering  State = "BUFFERING"
	StateFlushing   State = "FLUSHING"
	StateCommitting State = "COMMITTING"
	StateDraining   State = "DRAINING"
	StateStopped    State = "STOPPED"
)

// Status is a snapshot of the loop for the ops endpoints.
type Status struct {
	State         State               `json:"state"`
	Running       bool                `json:"running"`
	StartedAt     time.Time           `json:"started_at,omitempty"`
	Threshold     int                 `json:"threshold"`
	Consumed      uint64              `json:"consumed"`
	Dropped       uint64              `json:"dropped"`
	Batches       uint64              `json:"batches"`
	RecordsStaged uint64              `json:"records_staged"`
	FlushFailures uint64              `json:"flush_failures"`
	LastStagedAt  *time.Time          `json:"last_staged_at,omitempty"`
	LastObject    string              `json:"last_object,omitempty"`
	LastError     string              `json:"last_error,omitempty"`
	Buffers       []buffer.TableStats `json:"buffers"`
}

// Status returns a copy of the current status.
func (l *Loop) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := l.status
	s.Buffers = append([]buffer.TableStats(nil), l.status.Buffers...)
	if l.status.LastStagedAt != nil {
		t := *l.status.LastStagedAt
		s.LastStagedAt = &t
	}
	return s
}

// Running reports whether Run is consuming.
func (l *Loop) Running() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status.Running
}

func (l *Loop) markStarted() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.Running = true
	l.status.StartedAt = time.Now().UTC()
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.status.State = s
	if s == StateDraining || s == StateStopped {
		l.status.Running = false
	}
}

func (l *Loop) countConsumed() {
	l.mu.Lock()
	l.status.Consumed++
	l.mu.Unlock()
}

func (l *Loop) countDropped() {
	l.mu.Lock()
	l.status.Dropped++
	l.mu.Unlock()
}

func (l *Loop) countFlushFailure(err error) {
	l.mu.Lock()
	l.status.FlushFailures++
	l.status.LastError = err.Error()
	l.mu.Unlock()
}

func (l *Loop) countStaged(b *staged) {
	now := time.Now().UTC()
	l.mu.Lock()
	l.status.Batches++
	l.status.RecordsStaged += uint64(b.location.Records)
	l.status.LastStagedAt = &now
	l.status.LastObject = b.location.URI
	l.mu.Unlock()
}

func (l *Loop) recordError(err error) {
	l.mu.Lock()
	l.status.LastError = err.Error()
	l.mu.Unlock()
}

// refreshBuffers publishes the buffer view. Called from the loop goroutine.
func (l *Loop) refreshBuffers() {
	stats := l.buffers.Stats()
	l.mu.Lock()
	l.status.Buffers = stats
	l.mu.Unlock()
}
