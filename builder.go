package irisauth

import (
	"errors"
	"time"

	"github.com/AvanindraBose/irisauth/internal/flows"
	"github.com/AvanindraBose/irisauth/internal/rate"
	"github.com/AvanindraBose/irisauth/jwt"
	"github.com/AvanindraBose/irisauth/password"
	"github.com/AvanindraBose/irisauth/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine from its collaborators.
//
// Builder instances are single use: Build may succeed at most once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  session.Store
	creds  CredentialSource
	logger *zap.Logger
	reg    prometheus.Registerer
	now    func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the rate limiter and the health check.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore sets the durable session store.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithCredentials sets the password-credentials lookup used by Login.
func (b *Builder) WithCredentials(src CredentialSource) *Builder {
	b.creds = src
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetrics registers the Engine's collectors with reg.
func (b *Builder) WithMetrics(reg prometheus.Registerer) *Builder {
	b.reg = reg
	return b
}

// WithClock overrides the wall clock for token issuance and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration and collaborators and fails if any
// required one is missing.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("session store required")
	}
	if b.creds == nil {
		return nil, errors.New("credential source required")
	}
	if cfg.RateLimit.Enabled && b.redis == nil {
		return nil, errors.New("redis client required when rate limiting is enabled")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	metrics, err := NewMetrics(b.reg)
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Cost:          cfg.Password.Cost,
		MaxConcurrent: cfg.Password.MaxConcurrent,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:  cfg,
		jwt:     jm,
		hasher:  hasher,
		store:   instrumentedStore{inner: b.store, metrics: metrics},
		redis:   b.redis,
		creds:   b.creds,
		logger:  logger,
		metrics: metrics,
		now:     now,
	}

	if cfg.RateLimit.Enabled {
		engine.limiter = rate.New(b.redis, rate.Config{
			Rules:     cfg.RateLimit.rules(),
			KeyPrefix: cfg.RateLimit.KeyPrefix,
			OpTimeout: cfg.RateLimit.RedisTimeout,
		}, logger.Named("rate"), metrics.rateDecision)
	}

	engine.flows = flows.Deps{
		Login: flows.LoginDeps{
			LookupCredentials: engine.lookupCredentials,
			NotFound:          ErrPrincipalNotFound,
			VerifyPassword:    hasher.Verify,
			BurnDummy:         hasher.BurnDummy,
			Mint:              engine.mintPair,
			Fingerprint:       password.Fingerprint,
			Now:               now,
			SessionStore:      engine.store,
		},
		Refresh: flows.RefreshDeps{
			VerifyRefresh:     engine.verifyRefreshSubject,
			VerifyFingerprint: password.VerifyFingerprint,
			Fingerprint:       password.Fingerprint,
			Mint:              engine.mintPair,
			Now:               now,
			SessionStore:      engine.store,
		},
		Logout: flows.LogoutDeps{
			VerifyRefresh: jm.RefreshSubject,
			SessionStore:  engine.store,
		},
	}

	b.built = true

	return engine, nil
}
