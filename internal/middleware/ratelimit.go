package middleware

import (
	"net/http"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const maxTrackedClients = 10000

// RateLimit allows each client IP `limit` requests per `per`, refilled
// continuously, with bursts up to limit. The least recently seen clients are
// forgotten once maxTrackedClients is exceeded.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 || per <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiters, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	every := rate.Every(per / time.Duration(limit))
	retryAfter := strconv.Itoa(int((per/time.Duration(limit)).Seconds()) + 1)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			lim, ok := limiters.Get(ip)
			if !ok {
				lim = rate.NewLimiter(every, limit)
				if prev, found, _ := limiters.PeekOrAdd(ip, lim); found {
					lim = prev
				}
			}
			if !lim.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
