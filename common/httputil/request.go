package httputil

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// GetClientIP returns the address the request came from: the first
// X-Forwarded-For hop, then X-Real-IP, then the host part of RemoteAddr.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ParseLimit reads ?limit=. Missing, malformed or non-positive values give
// defaultLimit; larger values are capped at maxLimit.
func ParseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	switch {
	case err != nil, limit < 1:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	}
	return limit
}
