package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessLog(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		level     slog.Level
		wantLevel string
		wantLog   bool
	}{
		{"ok at debug", http.StatusOK, slog.LevelDebug, "DEBUG", true},
		{"ok hidden at info", http.StatusOK, slog.LevelInfo, "", false},
		{"not ready hidden at info", http.StatusServiceUnavailable, slog.LevelInfo, "", false},
		{"server error at warn", http.StatusInternalServerError, slog.LevelInfo, "WARN", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: tt.level}))

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			w := httptest.NewRecorder()
			RequestID(AccessLog(logger)(handler)).ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))

			assert.Equal(t, tt.status, w.Code)
			if !tt.wantLog {
				assert.Empty(t, buf.String())
				return
			}
			out := buf.String()
			assert.Contains(t, out, "level="+tt.wantLevel)
			assert.Contains(t, out, "path=/readyz")
			assert.Contains(t, out, "request_id="+w.Header().Get(RequestIDHeader))
		})
	}
}
