package common

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ClientIP attempts to determine the real client IP address from the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); ip != "" {
		parts := strings.Split(ip, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
		return strings.TrimSpace(ip)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// TerminalID resolves the POS terminal identifier for the request. Falls back
// to the client IP so single-terminal deployments work without the header.
func TerminalID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Terminal-ID")); id != "" {
		return id
	}
	return ClientIP(r)
}

// ParseLimit extracts a positive limit query parameter, bounded by max.
func ParseLimit(r *http.Request, fallback, max int) int {
	limit := fallback
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if max > 0 && limit > max {
		limit = max
	}
	return limit
}
