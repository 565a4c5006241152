package guard

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Rate limit scopes reported on denial.
const (
	ScopeIP      = "ip"
	ScopeSession = "session"
)

// RateLimitConfig bounds request admission per key over a trailing window.
type RateLimitConfig struct {
	Window     time.Duration
	PerIP      int
	PerSession int
}

// RateLimiter enforces independent sliding-window counters per IP and per
// session. Buckets are pruned lazily on each check; there are no background
// timers.
type RateLimiter struct {
	mu             sync.Mutex
	cfg            RateLimitConfig
	ipBuckets      map[string][]time.Time
	sessionBuckets map[string][]time.Time
	now            func() time.Time
}

// NewRateLimiter creates a limiter with the given per-key limits.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:            cfg,
		ipBuckets:      make(map[string][]time.Time),
		sessionBuckets: make(map[string][]time.Time),
		now:            time.Now,
	}
}

// RateLimitResult reports one admission decision.
type RateLimitResult struct {
	Allowed           bool
	Scope             string
	Remaining         int
	RetryAfterSeconds int
	windowSeconds     int
}

// ApplyHeaders attaches the rate-limit feedback headers, including
// Retry-After when the request was denied.
func (res RateLimitResult) ApplyHeaders(h http.Header) {
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Window-Seconds", strconv.Itoa(res.windowSeconds))
	if res.RetryAfterSeconds > 0 {
		h.Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds))
	}
}

// Check consumes one request slot for ip and sessionID, in that order. The
// IP window is checked first so an abusive address is rejected before its
// sessions are considered.
func (l *RateLimiter) Check(ip, sessionID string) RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowSeconds := int((l.cfg.Window + time.Second - 1) / time.Second)

	ipRemaining, ipRetry, ipOK := l.consume(l.ipBuckets, ip, l.cfg.PerIP, now)
	if !ipOK {
		return RateLimitResult{
			Scope:             ScopeIP,
			RetryAfterSeconds: ipRetry,
			windowSeconds:     windowSeconds,
		}
	}

	sessRemaining, sessRetry, sessOK := l.consume(l.sessionBuckets, sessionID, l.cfg.PerSession, now)
	if !sessOK {
		return RateLimitResult{
			Scope:             ScopeSession,
			RetryAfterSeconds: sessRetry,
			windowSeconds:     windowSeconds,
		}
	}

	return RateLimitResult{
		Allowed:       true,
		Remaining:     min(ipRemaining, sessRemaining),
		windowSeconds: windowSeconds,
	}
}

// consume prunes the bucket, then either records now and reports remaining
// quota, or denies with the time until the oldest surviving timestamp leaves
// the window (at least one second).
func (l *RateLimiter) consume(buckets map[string][]time.Time, key string, limit int, now time.Time) (remaining, retryAfter int, ok bool) {
	threshold := now.Add(-l.cfg.Window)
	bucket := buckets[key]

	kept := bucket[:0]
	for _, ts := range bucket {
		if ts.After(threshold) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		buckets[key] = kept
		retry := l.cfg.Window - now.Sub(kept[0])
		if retry < time.Second {
			retry = time.Second
		}
		return 0, int((retry + time.Second - 1) / time.Second), false
	}

	kept = append(kept, now)
	buckets[key] = kept
	return limit - len(kept), 0, true
}
