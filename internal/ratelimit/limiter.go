// Package ratelimit gates public mutation endpoints with a per-client-IP,
// per-operation cooldown and daily cap.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"regdesk/internal/apperr"
	"regdesk/internal/metrics"
)

// Op names a guarded operation. The op is the key prefix, so each operation
// gets its own counter per client.
type Op string

const (
	OpRecoverEmail Op = "recover_email"
	OpCodeLookup   Op = "code_lookup"
	OpSubmit       Op = "submit"
)

// Rule configures one operation's limits.
type Rule struct {
	MaxPerDay int
	Cooldown  time.Duration
}

// Decision is the store's verdict on one request. The store computes it
// atomically so concurrent requests cannot all pass the same check.
type Decision struct {
	Allowed     bool
	WaitSeconds int  // set when rejected by cooldown
	DailyLimit  bool // set when rejected by the daily cap
}

// CounterStore holds per-key counters and applies the admission algorithm
// as a single conditional update.
type CounterStore interface {
	Admit(ctx context.Context, key string, rule Rule, now, dayStart time.Time) (Decision, error)
}

// Limiter checks requests against configured rules.
type Limiter struct {
	store  CounterStore
	rules  map[Op]Rule
	logger *zap.SugaredLogger
	now    func() time.Time
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source; tests use it to roll days forward.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New builds a limiter. Operations without a rule are always allowed.
func New(store CounterStore, rules map[Op]Rule, logger *zap.SugaredLogger, opts ...Option) *Limiter {
	l := &Limiter{store: store, rules: rules, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check admits or rejects one request. A rejection is a RateLimited error
// carrying the retry-after hint; store failures surface as Storage errors.
func (l *Limiter) Check(ctx context.Context, op Op, clientIP string) error {
	rule, ok := l.rules[op]
	if !ok {
		return nil
	}
	if clientIP == "" {
		clientIP = "unknown"
	}
	now := l.now().UTC()
	dayStart := now.Truncate(24 * time.Hour)

	decision, err := l.store.Admit(ctx, string(op)+":"+clientIP, rule, now, dayStart)
	if err != nil {
		return apperr.Wrap(err, apperr.KindStorage, "rate limit check failed")
	}
	if decision.Allowed {
		return nil
	}

	metrics.RateLimited.WithLabelValues(string(op)).Inc()
	if l.logger != nil {
		l.logger.Infow("request rate limited", "operation", op, "client_ip", clientIP,
			"daily_limit", decision.DailyLimit)
	}
	if decision.DailyLimit {
		return apperr.RateLimited("daily limit reached", 0)
	}
	return apperr.RateLimited("too many requests, retry later", decision.WaitSeconds)
}
