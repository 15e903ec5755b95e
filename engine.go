package irisauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AvanindraBose/irisauth/internal/flows"
	"github.com/AvanindraBose/irisauth/internal/rate"
	"github.com/AvanindraBose/irisauth/jwt"
	"github.com/AvanindraBose/irisauth/password"
	"github.com/AvanindraBose/irisauth/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateScope names a rate-limited operation.
type RateScope = rate.Scope

const (
	// ScopeLogin is keyed by client IP.
	ScopeLogin = rate.ScopeLogin
	// ScopeRefresh is keyed by the refresh token's subject.
	ScopeRefresh = rate.ScopeRefresh
	// ScopePredict is keyed by the authenticated user id.
	ScopePredict = rate.ScopePredict
)

// Engine issues, rotates and revokes sessions.
//
// Engine instances are intended to be configured during initialization and
// then treated as immutable. All methods are safe for concurrent use.
type Engine struct {
	config  Config
	jwt     *jwt.Manager
	hasher  *password.Hasher
	store   instrumentedStore
	limiter *rate.Limiter
	redis   redis.UniversalClient
	creds   CredentialSource
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
	flows   flows.Deps
}

// Login describes the login operation and its observable behavior.
//
// Login returns ErrInvalidCredentials for an unknown email, a wrong password or
// an inactive principal, without distinguishing them. A successful login
// replaces whatever session the principal had.
func (e *Engine) Login(ctx context.Context, email, password string) (*Tokens, error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}

	result := flows.RunLogin(ctx, normalizeEmail(email), password, e.flows.Login)
	switch result.Failure {
	case flows.LoginFailureNone:
		e.metrics.loginResult("success")
		e.logger.Info("login succeeded", zap.String("user_id", result.UserID))
		return tokensFrom(result.Pair), nil

	case flows.LoginFailureUnknownPrincipal, flows.LoginFailureBadPassword, flows.LoginFailureInactive:
		e.metrics.loginResult("invalid_credentials")
		e.logger.Info("login rejected",
			zap.String("user_id", result.UserID),
			zap.String("reason", loginReason(result.Failure)),
		)
		return nil, ErrInvalidCredentials

	case flows.LoginFailureHasher:
		if ctx.Err() != nil || errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
			e.metrics.loginResult("unavailable")
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, result.Err)
		}
		// A stored hash bcrypt cannot parse. The caller still sees a plain
		// credential failure.
		e.metrics.loginResult("invalid_credentials")
		e.logger.Error("stored password hash unusable",
			zap.String("user_id", result.UserID),
			zap.Error(result.Err),
		)
		return nil, ErrInvalidCredentials

	case flows.LoginFailureLookup, flows.LoginFailureStore:
		e.metrics.loginResult("unavailable")
		e.logger.Error("login storage failure",
			zap.String("user_id", result.UserID),
			zap.Error(result.Err),
		)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, result.Err)

	default:
		e.metrics.loginResult("error")
		e.logger.Error("login failed", zap.String("user_id", result.UserID), zap.Error(result.Err))
		return nil, fmt.Errorf("issue tokens: %w", result.Err)
	}
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh exchanges a refresh token for a new pair and invalidates the
// presented one. Of several concurrent calls with the same token exactly one
// succeeds; the others fail with ErrTokenReuseDetected.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}

	result := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	switch result.Failure {
	case flows.RefreshFailureNone:
		e.metrics.refreshResult("success")
		e.logger.Debug("refresh rotated", zap.String("user_id", result.UserID))
		return tokensFrom(result.Pair), nil

	case flows.RefreshFailureVerify:
		if jwt.IsExpired(result.Err) {
			e.metrics.refreshResult("expired")
			return nil, ErrExpiredToken
		}
		e.metrics.refreshResult("invalid")
		return nil, ErrInvalidToken

	case flows.RefreshFailureSessionNotFound:
		e.metrics.refreshResult("session_not_found")
		e.logger.Info("refresh without session", zap.String("user_id", result.UserID))
		return nil, ErrSessionNotFound

	case flows.RefreshFailureReuse:
		e.metrics.refreshResult("reuse_detected")
		e.logger.Warn("refresh token reuse detected", zap.String("user_id", result.UserID))
		return nil, ErrTokenReuseDetected

	case flows.RefreshFailureExpired:
		e.metrics.refreshResult("expired")
		return nil, ErrExpiredToken

	case flows.RefreshFailureRotate:
		e.metrics.refreshResult("unavailable")
		e.logger.Error("refresh storage failure", zap.String("user_id", result.UserID), zap.Error(result.Err))
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, result.Err)

	default:
		e.metrics.refreshResult("error")
		e.logger.Error("refresh failed", zap.String("user_id", result.UserID), zap.Error(result.Err))
		return nil, fmt.Errorf("issue tokens: %w", result.Err)
	}
}

// Logout ends the session named by refreshToken. It always returns nil: a
// malformed token leaves nothing to do and store failures are only logged.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.jwt == nil {
		return nil
	}

	result := flows.RunLogout(ctx, refreshToken, e.flows.Logout)
	switch {
	case result.Skipped:
		e.metrics.logoutResult("skipped")
	case result.Err != nil:
		e.metrics.logoutResult("error")
		e.logger.Error("logout delete failed", zap.String("user_id", result.UserID), zap.Error(result.Err))
	default:
		e.metrics.logoutResult("success")
		e.logger.Info("logout", zap.String("user_id", result.UserID))
	}
	return nil
}

// Authenticate verifies an access token without touching storage. Every
// failure is ErrInvalidToken or ErrExpiredToken.
func (e *Engine) Authenticate(_ context.Context, accessToken string) (*Principal, error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwt.VerifyAccess(accessToken)
	if err != nil {
		if jwt.IsExpired(err) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	p := &Principal{UserID: claims.Subject}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// RefreshSubject returns the user id a refresh token was minted for, ignoring
// expiry. It keys the refresh rate limit before the token is fully checked.
func (e *Engine) RefreshSubject(refreshToken string) (string, error) {
	if e == nil || e.jwt == nil {
		return "", ErrEngineNotReady
	}
	sub, err := e.jwt.RefreshSubject(refreshToken)
	if err != nil {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// CheckRateLimit describes the checkratelimit operation and its observable behavior.
//
// CheckRateLimit spends one unit of identity's budget for scope. It returns an
// error matching ErrRateLimited when the budget is exhausted. Limiter backend
// failures allow the call.
func (e *Engine) CheckRateLimit(ctx context.Context, scope RateScope, identity string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.limiter == nil {
		return nil
	}

	err := e.limiter.Allow(ctx, scope, identity)
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrRateLimited) {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return err
}

// AccessTTL is the lifetime of a freshly minted access token.
func (e *Engine) AccessTTL() time.Duration {
	return e.config.JWT.AccessTTL
}

// RetryAfter extracts the wait hint from an error returned by CheckRateLimit.
func RetryAfter(err error) (time.Duration, bool) {
	var le *rate.LimitError
	if errors.As(err, &le) {
		return le.RetryAfter, true
	}
	return 0, false
}

// Health pings the session store and, when configured, Redis.
func (e *Engine) Health(ctx context.Context) error {
	if e == nil || e.jwt == nil {
		return ErrEngineNotReady
	}

	var errs []error
	if err := e.store.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("session store: %w", err))
	}
	if e.redis != nil {
		if err := e.redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) lookupCredentials(ctx context.Context, email string) (flows.LoginCredentials, error) {
	creds, err := e.creds.CredentialsByEmail(ctx, email)
	if err != nil {
		return flows.LoginCredentials{}, err
	}
	return flows.LoginCredentials{
		UserID:       creds.UserID,
		PasswordHash: creds.PasswordHash,
		Active:       creds.Active,
	}, nil
}

func (e *Engine) verifyRefreshSubject(token string) (string, error) {
	claims, err := e.jwt.VerifyRefresh(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (e *Engine) mintPair(userID string) (flows.TokenPair, error) {
	access, accessExp, err := e.jwt.MintAccess(userID)
	if err != nil {
		return flows.TokenPair{}, err
	}
	refresh, refreshExp, err := e.jwt.MintRefresh(userID)
	if err != nil {
		return flows.TokenPair{}, err
	}
	return flows.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func tokensFrom(pair flows.TokenPair) *Tokens {
	return &Tokens{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		TokenType:        TokenTypeBearer,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func loginReason(kind flows.LoginFailureKind) string {
	switch kind {
	case flows.LoginFailureUnknownPrincipal:
		return "unknown_principal"
	case flows.LoginFailureInactive:
		return "inactive"
	default:
		return "bad_password"
	}
}

var _ session.Store = instrumentedStore{}
