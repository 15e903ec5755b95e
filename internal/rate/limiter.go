package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Scope names a gated operation.
type Scope string

const (
	ScopeLogin   Scope = "login"
	ScopeRefresh Scope = "refresh"
	ScopePredict Scope = "predict"
)

// Decision is the outcome reported to an Observer.
type Decision string

const (
	DecisionAllowed  Decision = "allowed"
	DecisionRejected Decision = "rejected"
	DecisionFailOpen Decision = "fail_open"
)

// Rule is a fixed-window budget: at most Limit calls per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Config holds rate limiter tuning parameters.
type Config struct {
	Rules     map[Scope]Rule
	KeyPrefix string
	// OpTimeout bounds every Redis round trip. Zero means one second.
	OpTimeout time.Duration
}

// DefaultRules returns login 5/60s, refresh 10/300s, predict 50/60s.
func DefaultRules() map[Scope]Rule {
	return map[Scope]Rule{
		ScopeLogin:   {Limit: 5, Window: 60 * time.Second},
		ScopeRefresh: {Limit: 10, Window: 300 * time.Second},
		ScopePredict: {Limit: 50, Window: 60 * time.Second},
	}
}

// Observer receives one callback per Allow decision.
type Observer func(scope Scope, decision Decision)

// Limiter enforces per-scope fixed-window limits using Redis counters.
type Limiter struct {
	redis    redis.UniversalClient
	config   Config
	logger   *zap.Logger
	observer Observer
}

// New creates a rate [Limiter] backed by the given Redis client. A nil logger
// is replaced with a no-op logger.
func New(redisClient redis.UniversalClient, cfg Config, logger *zap.Logger, observer Observer) *Limiter {
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rate"
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		redis:    redisClient,
		config:   cfg,
		logger:   logger,
		observer: observer,
	}
}

// Validate checks that every configured rule is usable.
func (c Config) Validate() error {
	for scope, rule := range c.Rules {
		if rule.Limit <= 0 {
			return fmt.Errorf("rate rule %s: limit must be > 0", scope)
		}
		if rule.Window <= 0 {
			return fmt.Errorf("rate rule %s: window must be > 0", scope)
		}
	}
	return nil
}

// Allow admits or rejects one call for identity under scope. Rejections are
// *LimitError values matching ErrRateLimited; Redis failures are logged and
// treated as allow.
func (l *Limiter) Allow(ctx context.Context, scope Scope, identity string) error {
	rule, ok := l.config.Rules[scope]
	if !ok || identity == "" {
		l.logger.Warn("rate limit skipped",
			zap.String("scope", string(scope)),
			zap.Bool("known_scope", ok),
			zap.Bool("has_identity", identity != ""),
		)
		return nil
	}

	key := l.key(scope, identity)
	opCtx, cancel := context.WithTimeout(ctx, l.config.OpTimeout)
	defer cancel()

	allowed, retryAfter, err := l.hit(opCtx, key, rule)
	if err != nil {
		l.failOpen(scope, err)
		return nil
	}
	if !allowed {
		l.report(scope, DecisionRejected)
		return &LimitError{Scope: scope, RetryAfter: retryAfter}
	}

	l.report(scope, DecisionAllowed)
	return nil
}

func (l *Limiter) hit(ctx context.Context, key string, rule Rule) (bool, time.Duration, error) {
	raw, err := l.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		if err := l.redis.Set(ctx, key, 1, rule.Window).Err(); err != nil {
			return false, 0, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
		}
		return true, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}

	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, 0, fmt.Errorf("%w: corrupt counter %q", ErrRedisUnavailable, raw)
	}

	if count >= int64(rule.Limit) {
		ttl, err := l.redis.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			// The rejection stands even if the hint cannot be read.
			ttl = 0
		}
		return false, ttl, nil
	}

	if err := l.redis.Incr(ctx, key).Err(); err != nil {
		return false, 0, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return true, 0, nil
}

func (l *Limiter) failOpen(scope Scope, err error) {
	l.logger.Error("rate limiter unavailable, allowing request",
		zap.String("severity", "critical"),
		zap.String("scope", string(scope)),
		zap.Error(err),
	)
	l.report(scope, DecisionFailOpen)
}

func (l *Limiter) report(scope Scope, decision Decision) {
	if l.observer != nil {
		l.observer(scope, decision)
	}
}

func (l *Limiter) key(scope Scope, identity string) string {
	return l.config.KeyPrefix + ":" + string(scope) + ":" + identity
}
