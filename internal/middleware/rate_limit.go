package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/baharkarakas/wallet-engine/internal/api/httpx"
)

// RateLimit allows rps requests per second per client, bursting to rps.
// The client is the authenticated user when known, the remote IP otherwise.
func RateLimit(rps int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	// idle limiters are dropped after ten minutes
	limiters := cache.New(10*time.Minute, time.Minute)
	limiter := func(key string) *rate.Limiter {
		if v, ok := limiters.Get(key); ok {
			return v.(*rate.Limiter)
		}
		l := rate.NewLimiter(rate.Limit(rps), rps)
		if err := limiters.Add(key, l, cache.DefaultExpiration); err != nil {
			// lost the race; use the winner
			if v, ok := limiters.Get(key); ok {
				return v.(*rate.Limiter)
			}
		}
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter(clientKey(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if u, ok := FromCtx(r.Context()); ok {
		return "user:" + u.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
