package obs

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type ctxKeyRoute struct{}

// WithRoutePattern stamps the matched chi pattern on the context so later
// middleware labels by template, not by concrete path.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, ctxKeyRoute{}, pattern)
}

// RoutePatternFromContext returns the stamped pattern, or "".
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	pattern, _ := ctx.Value(ctxKeyRoute{}).(string)
	return pattern
}

// routeOf resolves the route label for a request: the stamped pattern first,
// the live chi match second, then the fallback.
func routeOf(r *http.Request, fallback string) string {
	if pattern := RoutePatternFromContext(r.Context()); pattern != "" {
		return pattern
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return fallback
}

// terminalOf resolves the register a request came from. Requests without the
// header share the "default" bucket, matching the session registry.
func terminalOf(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get("X-Terminal-ID")); t != "" {
		return t
	}
	return "default"
}
