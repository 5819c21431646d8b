package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name              string
		existingRequestID string
		expectNewID       bool
	}{
		{
			name:        "generates new request ID when not present",
			expectNewID: true,
		},
		{
			name:              "propagates existing request ID",
			existingRequestID: "existing-req-123",
		},
		{
			name:              "replaces request ID with spaces",
			existingRequestID: "two words",
			expectNewID:       true,
		},
		{
			name:              "replaces oversized request ID",
			existingRequestID: strings.Repeat("a", 200),
			expectNewID:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/status", nil)
			if tt.existingRequestID != "" {
				req.Header.Set(RequestIDHeader, tt.existingRequestID)
			}
			w := httptest.NewRecorder()
			RequestID(handler).ServeHTTP(w, req)

			header := w.Header().Get(RequestIDHeader)
			require.NotEmpty(t, header)
			assert.Equal(t, header, captured)

			if tt.expectNewID {
				_, err := uuid.Parse(captured)
				assert.NoError(t, err)
			} else {
				assert.Equal(t, tt.existingRequestID, captured)
			}
		})
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestRequestID_UniqueIDs(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	seen := make(map[string]bool)

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		RequestID(handler).ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
		id := w.Header().Get(RequestIDHeader)
		assert.False(t, seen[id], "duplicate request ID %s", id)
		seen[id] = true
	}
}
