// Package ratelimit implements fixed-window request counting keyed by
// (identifier, endpoint, window start).
//
// Policy: increment-then-allow. The counter is incremented atomically
// first and the request is allowed iff the post-increment count is at
// or under the limit, so each window admits exactly `limit` requests
// and the counter keeps growing for rejected ones. If the counting
// store is unavailable the limiter fails open: availability wins over
// strictness, the error is logged and the request passes.
package ratelimit

import (
	"context"
	"time"

	"esawitku.app/internal/obs"
)

// Rule bounds one endpoint's quota.
type Rule struct {
	Limit  int
	Window time.Duration
}

// DefaultRule applies to endpoints without an override.
var DefaultRule = Rule{Limit: 100, Window: 15 * time.Minute}

// Decision reports one check outcome.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// CounterStore atomically increments the counter for the active window
// and returns the post-increment count. Implementations: Redis
// INCR+EXPIRE, Postgres upsert, in-memory map.
type CounterStore interface {
	Incr(ctx context.Context, identifier, endpoint string, windowStart time.Time, window time.Duration) (int64, error)
}

// Limiter decides whether a request fits its endpoint quota.
type Limiter struct {
	store CounterStore
	rules map[string]Rule
	now   func() time.Time
}

// Option configures the Limiter.
type Option func(*Limiter)

// WithRule overrides the quota for a named endpoint.
func WithRule(endpoint string, rule Rule) Option {
	return func(l *Limiter) { l.rules[endpoint] = rule }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// New constructs a Limiter over the given counter store.
func New(store CounterStore, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		rules: make(map[string]Rule),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Rule returns the effective quota for an endpoint.
func (l *Limiter) Rule(endpoint string) Rule {
	if r, ok := l.rules[endpoint]; ok && r.Limit > 0 && r.Window > 0 {
		return r
	}
	return DefaultRule
}

// Check records the attempt and decides whether it is within quota.
func (l *Limiter) Check(ctx context.Context, identifier, endpoint string) Decision {
	rule := l.Rule(endpoint)
	now := l.now().UTC()
	windowStart := now.Truncate(rule.Window)
	windowEnd := windowStart.Add(rule.Window)

	count, err := l.store.Incr(ctx, identifier, endpoint, windowStart, rule.Window)
	if err != nil {
		obs.Event("warn", "rate limit store unavailable, failing open", map[string]any{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		return Decision{Allowed: true, Remaining: rule.Limit}
	}

	remaining := rule.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	if count > int64(rule.Limit) {
		return Decision{Allowed: false, Remaining: 0, RetryAfter: windowEnd.Sub(now)}
	}
	return Decision{Allowed: true, Remaining: remaining}
}
