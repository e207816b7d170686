package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Rate limit buckets used by the gateway.
const (
	BucketAuthFailure = "auth_failure"
	BucketCreate      = "create"
	BucketWebhook     = "webhook"
)

// RateLimitConfig holds per-minute limits. Zero means the default, a
// negative value disables the bucket.
type RateLimitConfig struct {
	AuthFailuresPerMin int `yaml:"auth_failures_per_min"`
	CreatesPerMin      int `yaml:"creates_per_min"`
	WebhooksPerMin     int `yaml:"webhooks_per_min"`
}

func rateLimitConfigDefaults() RateLimitConfig {
	return RateLimitConfig{
		AuthFailuresPerMin: 60,
		CreatesPerMin:      600,
		WebhooksPerMin:     600,
	}
}

// sweepThreshold is the number of tracked buckets above which idle
// per-client buckets are dropped.
const sweepThreshold = 4096

// RateLimiter implements sliding window rate limiting. A bucket kind may be
// shared (Allow) or split per client key (AllowKey), so one noisy client
// cannot exhaust the budget of the others.
type RateLimiter struct {
	mu      sync.Mutex
	limits  map[string]int
	buckets map[string]*bucket
	window  time.Duration
	now     func() time.Time
}

type bucket struct {
	events []time.Time
}

// NewRateLimiter creates a rate limiter with the given config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	defaults := rateLimitConfigDefaults()
	limits := map[string]int{
		BucketAuthFailure: pick(cfg.AuthFailuresPerMin, defaults.AuthFailuresPerMin),
		BucketCreate:      pick(cfg.CreatesPerMin, defaults.CreatesPerMin),
		BucketWebhook:     pick(cfg.WebhooksPerMin, defaults.WebhooksPerMin),
	}
	for name, limit := range limits {
		if limit <= 0 {
			delete(limits, name)
		}
	}
	return &RateLimiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
		window:  time.Minute,
		now:     time.Now,
	}
}

func pick(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Allow records an event in the shared bucket kind and reports whether it
// fits the limit. Unknown or disabled buckets always allow.
func (rl *RateLimiter) Allow(kind string) error {
	return rl.AllowKey(kind, "")
}

// AllowKey is Allow for the bucket of kind owned by client key.
func (rl *RateLimiter) AllowKey(kind, key string) error {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limit, ok := rl.limits[kind]
	if !ok {
		return nil
	}
	now := rl.now()
	b := rl.bucket(kind, key, now)
	if len(b.events) >= limit {
		return ErrRateLimited
	}
	b.events = append(b.events, now)
	return nil
}

// Exhausted reports whether the shared bucket kind is currently full
// without recording an event.
func (rl *RateLimiter) Exhausted(kind string) bool {
	return rl.ExhaustedKey(kind, "")
}

// ExhaustedKey is Exhausted for the bucket of kind owned by client key.
func (rl *RateLimiter) ExhaustedKey(kind, key string) bool {
	if rl == nil {
		return false
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limit, ok := rl.limits[kind]
	if !ok {
		return false
	}
	b, ok := rl.buckets[bucketID(kind, key)]
	if !ok {
		return false
	}
	b.evict(rl.now(), rl.window)
	return len(b.events) >= limit
}

// Tracked returns the number of live buckets.
func (rl *RateLimiter) Tracked() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// bucket returns the evicted bucket for kind and key, creating it. Caller
// holds mu.
func (rl *RateLimiter) bucket(kind, key string, now time.Time) *bucket {
	id := bucketID(kind, key)
	b, ok := rl.buckets[id]
	if !ok {
		if len(rl.buckets) >= sweepThreshold {
			rl.sweep(now)
		}
		b = &bucket{}
		rl.buckets[id] = b
	}
	b.evict(now, rl.window)
	return b
}

// sweep drops buckets with no events left in the window.
func (rl *RateLimiter) sweep(now time.Time) {
	for id, b := range rl.buckets {
		b.evict(now, rl.window)
		if len(b.events) == 0 {
			delete(rl.buckets, id)
		}
	}
}

func bucketID(kind, key string) string {
	if key == "" {
		return kind
	}
	return kind + "\x00" + key
}

// evict removes events outside the sliding window.
func (b *bucket) evict(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
