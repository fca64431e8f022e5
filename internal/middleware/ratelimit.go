package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/promptcraft/internal/auth"
)

// RateLimiterConfig holds the per-user chat submission limit.
type RateLimiterConfig struct {
	PerMinute       int           // sustained submissions per minute
	Burst           int           // submissions allowed back to back
	CleanupInterval time.Duration // how often idle limiters are pruned

	// Reject writes the 429 response. Defaults to a plain-text body.
	Reject func(w http.ResponseWriter, r *http.Request)
}

// userLimiter pairs a token bucket with the last time it was used.
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter limits chat submissions per user.
//
// Each user ID gets its own token bucket. Buckets idle for more than two
// cleanup intervals are dropped by a background goroutine; call Stop on
// shutdown to end it.
type RateLimiter struct {
	perMinute int
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	reject    func(w http.ResponseWriter, r *http.Request)
	logger    *slog.Logger

	mu       sync.Mutex
	limiters map[string]*userLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter creates a RateLimiter and starts its cleanup loop.
func NewRateLimiter(cfg RateLimiterConfig, logger *slog.Logger) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		perMinute: cfg.PerMinute,
		limit:     rate.Limit(float64(cfg.PerMinute) / 60.0),
		burst:     cfg.Burst,
		ttl:       2 * cfg.CleanupInterval,
		reject:    cfg.Reject,
		logger:    logger,
		limiters:  make(map[string]*userLimiter),
		stopCh:    make(chan struct{}),
	}
	if rl.reject == nil {
		rl.reject = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		}
	}

	go rl.cleanupLoop(cfg.CleanupInterval)

	return rl
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects requests beyond the user's budget with 429.
// It must run inside auth.RequireSession; requests without a session pass
// through untouched.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.allow(session.UserID) {
			rl.logger.Warn("rate limit exceeded", slog.String("userID", session.UserID))
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfterSeconds()))
			rl.reject(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Len returns the number of tracked users. Used by tests.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) allow(userID string) bool {
	rl.mu.Lock()
	ul, ok := rl.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[userID] = ul
	}
	ul.lastAccess = time.Now()
	rl.mu.Unlock()

	return ul.limiter.Allow()
}

// retryAfterSeconds is the time for one token to refill, rounded up.
func (rl *RateLimiter) retryAfterSeconds() int {
	if rl.perMinute <= 0 {
		return 60
	}
	return max(1, (60+rl.perMinute-1)/rl.perMinute)
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for userID, ul := range rl.limiters {
		if now.Sub(ul.lastAccess) > rl.ttl {
			delete(rl.limiters, userID)
		}
	}
}
