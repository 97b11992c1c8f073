package middleware

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/holelung/Face-recognition-attendance-check/internal/constants"
)

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	bucket    map[string]*rate.Limiter
	rate      rate.Limit
	burstSize int
	mu        sync.Mutex
}

// NewRateLimiter creates a limiter allowing perSecond events with the given burst per key.
// Non-positive values fall back to the capture defaults.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if perSecond <= 0 {
		perSecond = constants.DefaultCaptureRate
	}
	if burst <= 0 {
		burst = constants.DefaultCaptureBurst
	}
	return &RateLimiter{
		bucket:    make(map[string]*rate.Limiter),
		rate:      rate.Limit(perSecond),
		burstSize: burst,
	}
}

// limiterFor returns the bucket for key, creating it on first use.
func (l *RateLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.bucket[key]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burstSize)
		l.bucket[key] = lim
	}
	return lim
}

// Allow reports whether one more event for key fits in its bucket.
func (l *RateLimiter) Allow(key string) bool {
	return l.limiterFor(key).Allow()
}

// Forget drops the bucket for key, e.g. when a session ends.
func (l *RateLimiter) Forget(key string) {
	l.mu.Lock()
	delete(l.bucket, key)
	l.mu.Unlock()
}

// Len returns the number of tracked keys.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bucket)
}

// LimitByURLParam rejects requests with 429 once the bucket for the named
// chi URL parameter is empty. Mount it with r.With so the parameter is resolved.
func LimitByURLParam(l *RateLimiter, param string, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := chi.URLParam(r, param)
			if !l.Allow(key) {
				log.WithField(param, key).Warn("too many requests")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
