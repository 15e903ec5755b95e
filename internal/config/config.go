// Package config loads the irisauthd process configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/AvanindraBose/irisauth"
)

// ErrConfig is wrapped by every error Load returns.
var ErrConfig = errors.New("invalid configuration")

// Config is the irisauthd process configuration.
type Config struct {
	AppEnv   string
	HTTPAddr string

	DatabaseURL string
	RedisURL    string

	APIKey             string
	PredictUpstreamURL string
	TrustProxy         bool

	AccessSecret  string
	RefreshSecret string

	LoginRate   irisauth.RateRule
	RefreshRate irisauth.RateRule
	PredictRate irisauth.RateRule

	CookieSecure bool
	StoreTimeout time.Duration
	BcryptCost   int
}

// Production reports whether APP_ENV names a production deployment.
func (c Config) Production() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

// FromEnv loads configuration from the process environment.
func FromEnv() (Config, error) {
	return Load(environMap(os.Environ()))
}

// Load reads configuration from environ.
//
// Required:
//   - JWT_ACCESS_SECRET_KEY
//   - JWT_REFRESH_SECRET_KEY
//   - DATABASE_URL
//   - API_KEY
//
// Optional: REDIS_URL (default redis://localhost:6379), HTTP_ADDR, APP_ENV,
// PREDICT_UPSTREAM_URL, TRUST_PROXY, COOKIE_SECURE, STORE_TIMEOUT,
// BCRYPT_COST and the LOGIN_/REFRESH_/PREDICT_ RATE_LIMIT and RATE_WINDOW
// pairs. Windows are whole seconds; STORE_TIMEOUT accepts a Go duration
// or whole seconds. Values are trimmed and a blank value counts as unset.
func Load(environ map[string]string) (Config, error) {
	vars := make(map[string]string, len(environ))
	for k, v := range environ {
		if v = strings.TrimSpace(v); v != "" {
			vars[k] = v
		}
	}

	def := irisauth.DefaultConfig()
	raw := variables{
		AppEnv:       "development",
		HTTPAddr:     ":8000",
		RedisURL:     "redis://localhost:6379",
		LoginRate:    rateVariables{Limit: positive(def.RateLimit.Login.Limit), Window: seconds(def.RateLimit.Login.Window)},
		RefreshRate:  rateVariables{Limit: positive(def.RateLimit.Refresh.Limit), Window: seconds(def.RateLimit.Refresh.Window)},
		PredictRate:  rateVariables{Limit: positive(def.RateLimit.Predict.Limit), Window: seconds(def.RateLimit.Predict.Window)},
		StoreTimeout: timeout(def.Session.OpTimeout),
		BcryptCost:   positive(def.Password.Cost),
	}
	if err := env.ParseWithOptions(&raw, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	cfg := Config{
		AppEnv:             raw.AppEnv,
		HTTPAddr:           raw.HTTPAddr,
		DatabaseURL:        raw.DatabaseURL,
		RedisURL:           raw.RedisURL,
		APIKey:             raw.APIKey,
		PredictUpstreamURL: raw.PredictUpstreamURL,
		TrustProxy:         raw.TrustProxy,
		AccessSecret:       raw.AccessSecret,
		RefreshSecret:      raw.RefreshSecret,
		LoginRate:          raw.LoginRate.rule(),
		RefreshRate:        raw.RefreshRate.rule(),
		PredictRate:        raw.PredictRate.rule(),
		CookieSecure:       raw.CookieSecure,
		StoreTimeout:       time.Duration(raw.StoreTimeout),
		BcryptCost:         int(raw.BcryptCost),
	}
	if _, set := vars["COOKIE_SECURE"]; !set {
		cfg.CookieSecure = cfg.Production()
	}

	if cfg.PredictUpstreamURL != "" {
		u, err := url.Parse(cfg.PredictUpstreamURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return Config{}, fmt.Errorf("%w: PREDICT_UPSTREAM_URL must be an absolute URL", ErrConfig)
		}
	}

	return cfg, nil
}

// Engine maps the process configuration onto an irisauth.Config.
func (c Config) Engine() irisauth.Config {
	cfg := irisauth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(c.AccessSecret)
	cfg.JWT.RefreshSecret = []byte(c.RefreshSecret)
	cfg.JWT.Issuer = "irisauth"
	cfg.Password.Cost = c.BcryptCost
	cfg.RateLimit.Login = c.LoginRate
	cfg.RateLimit.Refresh = c.RefreshRate
	cfg.RateLimit.Predict = c.PredictRate
	cfg.Cookie.Secure = c.CookieSecure

	cfg.Session.OpTimeout = c.StoreTimeout
	if cfg.Session.LockTimeout > c.StoreTimeout {
		cfg.Session.LockTimeout = c.StoreTimeout
	}
	return cfg
}

// variables is the tagged shape env fills. Fields left unset keep the values
// Load seeds them with.
type variables struct {
	AppEnv   string `env:"APP_ENV"`
	HTTPAddr string `env:"HTTP_ADDR"`

	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`

	APIKey             string `env:"API_KEY,required"`
	PredictUpstreamURL string `env:"PREDICT_UPSTREAM_URL"`
	TrustProxy         bool   `env:"TRUST_PROXY"`

	AccessSecret  string `env:"JWT_ACCESS_SECRET_KEY,required"`
	RefreshSecret string `env:"JWT_REFRESH_SECRET_KEY,required"`

	LoginRate   rateVariables `envPrefix:"LOGIN_"`
	RefreshRate rateVariables `envPrefix:"REFRESH_"`
	PredictRate rateVariables `envPrefix:"PREDICT_"`

	CookieSecure bool     `env:"COOKIE_SECURE"`
	StoreTimeout timeout  `env:"STORE_TIMEOUT"`
	BcryptCost   positive `env:"BCRYPT_COST"`
}

type rateVariables struct {
	Limit  positive `env:"RATE_LIMIT"`
	Window seconds  `env:"RATE_WINDOW"`
}

func (r rateVariables) rule() irisauth.RateRule {
	return irisauth.RateRule{Limit: int(r.Limit), Window: time.Duration(r.Window)}
}

// positive is an integer greater than zero.
type positive int

func (p *positive) UnmarshalText(text []byte) error {
	n, err := strconv.Atoi(string(text))
	if err != nil || n <= 0 {
		return fmt.Errorf("%q is not a positive integer", text)
	}
	*p = positive(n)
	return nil
}

// seconds is a window given in whole seconds.
type seconds time.Duration

func (s *seconds) UnmarshalText(text []byte) error {
	n, err := strconv.Atoi(string(text))
	if err != nil || n <= 0 {
		return fmt.Errorf("%q is not a positive number of seconds", text)
	}
	*s = seconds(time.Duration(n) * time.Second)
	return nil
}

// timeout accepts whole seconds or a Go duration.
type timeout time.Duration

func (d *timeout) UnmarshalText(text []byte) error {
	if n, err := strconv.Atoi(string(text)); err == nil && n > 0 {
		*d = timeout(time.Duration(n) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil || v <= 0 {
		return fmt.Errorf("%q is not a positive duration", text)
	}
	*d = timeout(v)
	return nil
}

func environMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
