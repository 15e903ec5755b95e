package irisauth

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/AvanindraBose/irisauth/internal/rate"
	"github.com/AvanindraBose/irisauth/jwt"
	"github.com/AvanindraBose/irisauth/session"
	"golang.org/x/crypto/bcrypt"
)

// Config is the full Engine configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	JWT       JWTConfig
	Password  PasswordConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Cookie    CookieConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the two signing secrets and token lifetimes.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig tunes bcrypt.
type PasswordConfig struct {
	Cost          int
	MaxConcurrent int64
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig bounds session store calls.
type SessionConfig struct {
	// OpTimeout caps every store call, lock wait included.
	OpTimeout time.Duration
	// LockTimeout caps how long a rotation waits for a concurrent one.
	LockTimeout time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateRule is a fixed-window budget.
type RateRule struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig holds one rule per gated scope.
type RateLimitConfig struct {
	Enabled      bool
	Login        RateRule
	Refresh      RateRule
	Predict      RateRule
	KeyPrefix    string
	RedisTimeout time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig shapes the refresh-token cookie.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a Config with every default filled in except the
// signing secrets, which callers must always supply.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  jwt.DefaultAccessTTL,
			RefreshTTL: jwt.DefaultRefreshTTL,
		},
		Password: PasswordConfig{
			Cost:          bcrypt.DefaultCost,
			MaxConcurrent: 4,
		},
		Session: SessionConfig{
			OpTimeout:   session.DefaultOpTimeout,
			LockTimeout: session.DefaultLockTimeout,
		},
		RateLimit: RateLimitConfig{
			Enabled:      true,
			Login:        RateRule{Limit: 5, Window: 60 * time.Second},
			Refresh:      RateRule{Limit: 10, Window: 300 * time.Second},
			Predict:      RateRule{Limit: 50, Window: 60 * time.Second},
			KeyPrefix:    "rate",
			RedisTimeout: time.Second,
		},
		Cookie: CookieConfig{
			Name:     "refresh_token",
			Path:     "/auth",
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c RateLimitConfig) rules() map[rate.Scope]rate.Rule {
	return map[rate.Scope]rate.Rule{
		rate.ScopeLogin:   {Limit: c.Login.Limit, Window: c.Login.Window},
		rate.ScopeRefresh: {Limit: c.Refresh.Limit, Window: c.Refresh.Window},
		rate.ScopePredict: {Limit: c.Predict.Limit, Window: c.Predict.Window},
	}
}

/*
====================================
VALIDATION
====================================
*/

// minSecretBytes matches the HS256 output size.
const minSecretBytes = 32

// Validate describes the validate operation and its observable behavior.
//
// Validate returns the first configuration problem found, or nil.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) < minSecretBytes {
		return errors.New("JWT AccessSecret must be at least 32 bytes")
	}
	if len(c.JWT.RefreshSecret) < minSecretBytes {
		return errors.New("JWT RefreshSecret must be at least 32 bytes")
	}
	if bytes.Equal(c.JWT.AccessSecret, c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must exceed AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Password
	if c.Password.Cost < bcrypt.MinCost || c.Password.Cost > bcrypt.MaxCost {
		return errors.New("Password Cost out of bcrypt range")
	}
	if c.Password.MaxConcurrent <= 0 {
		return errors.New("Password MaxConcurrent must be > 0")
	}

	// Session
	if c.Session.OpTimeout <= 0 {
		return errors.New("Session OpTimeout must be > 0")
	}
	if c.Session.LockTimeout <= 0 || c.Session.LockTimeout > c.Session.OpTimeout {
		return errors.New("Session LockTimeout must be in (0, OpTimeout]")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if err := (rate.Config{Rules: c.RateLimit.rules()}).Validate(); err != nil {
			return err
		}
		if c.RateLimit.RedisTimeout <= 0 {
			return errors.New("RateLimit RedisTimeout must be > 0")
		}
		if strings.ContainsAny(c.RateLimit.KeyPrefix, " \t\r\n") {
			return errors.New("RateLimit KeyPrefix must not contain whitespace")
		}
	}

	// Cookie
	if strings.TrimSpace(c.Cookie.Name) == "" {
		return errors.New("Cookie Name must be set")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	return nil
}
