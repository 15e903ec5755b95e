package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind tags a token with the purpose it was minted for.
type Kind string

const (
	// KindAccess marks short-lived bearer tokens presented on API calls.
	KindAccess Kind = "access"
	// KindRefresh marks long-lived tokens exchanged for a new token pair.
	KindRefresh Kind = "refresh"
)

const (
	// DefaultAccessTTL is the access token lifetime.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL is the refresh token lifetime at mint time.
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// ErrInvalidToken is the only error verification reports.
var ErrInvalidToken = errors.New("invalid token")

// Config holds signing secrets and token lifetimes.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration

	// Now overrides the wall clock. Nil means time.Now.
	Now func() time.Time
}

// Claims is the claim set carried by both token kinds.
type Claims struct {
	Kind Kind `json:"token_type"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access and refresh tokens.
//
// Manager is stateless after construction and safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, errors.New("access secret required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("refresh secret required")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{config: cfg, now: now}, nil
}

// MintAccess signs an access token for userID and returns it with its expiry.
func (m *Manager) MintAccess(userID string) (string, time.Time, error) {
	return m.mint(userID, KindAccess, m.config.AccessTTL, m.config.AccessSecret)
}

// MintRefresh signs a refresh token for userID and returns it with its expiry.
func (m *Manager) MintRefresh(userID string) (string, time.Time, error) {
	return m.mint(userID, KindRefresh, m.config.RefreshTTL, m.config.RefreshSecret)
}

// VerifyAccess checks signature, expiry and kind of an access token.
func (m *Manager) VerifyAccess(token string) (*Claims, error) {
	return m.verify(token, KindAccess, m.config.AccessSecret)
}

// VerifyRefresh checks signature, expiry and kind of a refresh token.
func (m *Manager) VerifyRefresh(token string) (*Claims, error) {
	return m.verify(token, KindRefresh, m.config.RefreshSecret)
}

// RefreshSubject returns the subject of a refresh token whose signature and
// kind are valid, ignoring expiry. It identifies whose session a logout ends
// and whose budget a refresh attempt spends.
func (m *Manager) RefreshSubject(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	).ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return m.config.RefreshSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Kind != KindRefresh || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	if m.config.Issuer != "" && claims.Issuer != m.config.Issuer {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

// IsExpired reports whether a verification error was caused by expiry.
// Callers must not surface the distinction outside the process.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

func (m *Manager) mint(userID string, kind Kind, ttl time.Duration, secret []byte) (string, time.Time, error) {
	if strings.TrimSpace(userID) == "" {
		return "", time.Time{}, errors.New("subject required")
	}

	now := m.now()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			// jti keeps two tokens minted within the same second distinct.
			ID: uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, claims.ExpiresAt.Time, nil
}

func (m *Manager) verify(tokenStr string, kind Kind, secret []byte) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Kind != kind || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
