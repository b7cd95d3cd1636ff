package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"reelgate/pkg/config"
	"reelgate/pkg/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused per-key limiter is kept.
const idleLimiterTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiterStore stores per-key (for example, per IP) rate limiters.
type rateLimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rate      rate.Limit
	burstSize int
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiterStore(r rate.Limit, burst int) *rateLimiterStore {
	return &rateLimiterStore{
		limiters:  make(map[string]*limiterEntry),
		rate:      r,
		burstSize: burst,
		now:       time.Now,
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > idleLimiterTTL {
		for k, e := range s.limiters {
			if now.Sub(e.lastSeen) > idleLimiterTTL {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	entry, exists := s.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.rate, s.burstSize)}
		s.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (s *rateLimiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// clientIP extracts the IP part from the request's remote address.
func clientIP(r *http.Request) string {
	// Try X-Forwarded-For first (behind proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func limit(store *rateLimiterStore, retryAfter time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !store.getLimiter(clientIP(c.Request)).Allow() {
			RespondError(c, errors.NewRateLimitError().WithDetail("retry_after_seconds", int(retryAfter.Seconds())))
			return
		}
		c.Next()
	}
}

// NewHTTPRateLimitMiddleware returns Gin middleware that applies simple IP-based rate limiting.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	store := newRateLimiterStore(rate.Limit(cfg.RateLimiting.HTTP.RequestsPerSecond), cfg.RateLimiting.HTTP.Burst)
	limited := limit(store, time.Second)

	var globalSem chan struct{}
	if cfg.RateLimiting.HTTP.MaxConcurrent > 0 {
		globalSem = make(chan struct{}, cfg.RateLimiting.HTTP.MaxConcurrent)
	}

	return func(c *gin.Context) {
		// Global concurrent requests throttling
		if globalSem != nil {
			select {
			case globalSem <- struct{}{}:
				defer func() { <-globalSem }()
			default:
				RespondError(c, errors.NewServiceUnavailableError("too many concurrent requests"))
				return
			}
		}
		limited(c)
	}
}

// NewAdminVerifyRateLimitMiddleware throttles admin password guesses per
// client IP. It applies even when general rate limiting is disabled.
func NewAdminVerifyRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	perMinute := cfg.RateLimiting.AdminVerify.AttemptsPerMinute
	store := newRateLimiterStore(rate.Every(time.Minute/time.Duration(perMinute)), cfg.RateLimiting.AdminVerify.Burst)
	return limit(store, time.Minute/time.Duration(perMinute))
}
