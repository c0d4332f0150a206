package router

import (
	"net"
	"net/http"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/forgeline/keel/httperr"
	"github.com/forgeline/keel/httpx"
)

// limiterCacheSize bounds the number of distinct callers tracked at once.
// Least recently seen callers are evicted and start with a fresh burst.
const limiterCacheSize = 4096

// RateLimit enforces a per-caller token bucket sized from the configured
// window and maximum. Callers are keyed by client IP (RealIP runs earlier
// in the chain). The exempt path is never limited so probes stay cheap.
func RateLimit(cfg *RateLimitConfig, responder *httpx.Responder, exemptPath string) func(http.Handler) http.Handler {
	limiters, _ := lru.New[string, *rate.Limiter](limiterCacheSize)
	limit := rate.Limit(float64(cfg.Max) / cfg.Window.Seconds())
	retryAfter := strconv.Itoa(int(cfg.Window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == exemptPath {
				next.ServeHTTP(w, r)
				return
			}

			key := clientKey(r)
			limiter, ok := limiters.Get(key)
			if !ok {
				limiter = rate.NewLimiter(limit, cfg.Max)
				limiters.Add(key, limiter)
			}

			if !limiter.Allow() {
				w.Header().Set("Retry-After", retryAfter)
				responder.Error(w, r, httperr.RateLimited(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
