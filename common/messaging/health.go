package messaging

import (
	"context"
	"errors"
	"time"
)

// HealthChecker is implemented by broker, sink and side-channel clients that
// the readiness probe should consult.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthStatus is one probe result as reported by /readyz.
type HealthStatus struct {
	Connected bool    `json:"connected"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

var errNoChecker = errors.New("health checker is nil")

// CheckHealth probes checker, giving up after timeout.
func CheckHealth(ctx context.Context, checker HealthChecker, timeout time.Duration) HealthStatus {
	if checker == nil {
		return HealthStatus{Error: errNoChecker.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := checker.CheckHealth(ctx)
	st := HealthStatus{
		Connected: err == nil,
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}
