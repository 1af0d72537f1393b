package server

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/bgwastu/parsley"
	"github.com/bgwastu/parsley/internal/config"
)

// clientLimiter keeps a token bucket per client address. Demo traffic draws
// from a separate, stricter bucket so free usage cannot starve paying
// users of their own quota.
type clientLimiter struct {
	cfg config.RateLimitConfig

	mu      sync.Mutex
	regular map[string]*rate.Limiter
	demo    map[string]*rate.Limiter
}

func newClientLimiter(cfg config.RateLimitConfig) *clientLimiter {
	return &clientLimiter{
		cfg:     cfg,
		regular: map[string]*rate.Limiter{},
		demo:    map[string]*rate.Limiter{},
	}
}

func (c *clientLimiter) allow(clientIP string, demo bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket := c.regular
	perMinute, burst := c.cfg.PerMinute, c.cfg.Burst
	if demo {
		bucket = c.demo
		perMinute, burst = c.cfg.DemoPerMinute, c.cfg.DemoBurst
	}
	if perMinute <= 0 {
		return true
	}

	lim, ok := bucket[clientIP]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
		bucket[clientIP] = lim
	}
	return lim.Allow()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimited wraps a handler with the per-client budget check.
func (s *Server) rateLimited(next http.HandlerFunc, demo bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r), demo) {
			message := "Rate limit exceeded. Please try again later."
			if demo {
				message = "Rate limit exceeded for the demo provider. Consider using your own API key for unlimited access."
			}
			writeError(w, parsley.NewError(parsley.KindRateLimit, "%s", message))
			return
		}
		next(w, r)
	}
}
