package middleware

import (
	"net/http"
	"time"

	"rodinstudio/internal/metrics"

	"github.com/go-chi/chi/v5"
)

// Metrics records request counts and latency per chi route pattern, keeping
// label cardinality bounded by the route table.
func Metrics(c *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if c == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			c.ObserveHTTP(r.Method, route, rw.status, time.Since(start))
		})
	}
}
