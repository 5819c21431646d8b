// Package database bounds round trips to the stores the stager writes to.
package database

import (
	"context"
	"time"
)

const (
	DefaultQueryTimeout = 5 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// Timeouts caps single reads and writes. A zero duration leaves the parent
// deadline alone.
type Timeouts struct {
	Query time.Duration
	Write time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{Query: DefaultQueryTimeout, Write: DefaultWriteTimeout}
}

// QueryContext derives a context for a read.
func (t Timeouts) QueryContext(parent context.Context) (context.Context, context.CancelFunc) {
	return bound(parent, t.Query)
}

// WriteContext derives a context for an insert or pipeline exec.
func (t Timeouts) WriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	return bound(parent, t.Write)
}

func bound(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
