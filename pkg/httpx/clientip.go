package httpx

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the best-effort client network origin for the request.
// Forwarding headers are checked first so the service still sees the real
// client behind a reverse proxy; the first entry of a comma-separated list
// is the originating address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
