package middleware

import (
	"context"
	"net/http"

	"github.com/AvanindraBose/irisauth"
)

// RateChecker spends rate budget. *irisauth.Engine implements it.
type RateChecker interface {
	CheckRateLimit(ctx context.Context, scope irisauth.RateScope, identity string) error
}

// IdentityFunc picks the key a request is counted under. An empty result
// skips the check.
type IdentityFunc func(r *http.Request) string

// RateLimit spends one unit of scope's budget for the identity of each
// request and answers 429 once it is exhausted.
func RateLimit(limiter RateChecker, scope irisauth.RateScope, identity IdentityFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := limiter.CheckRateLimit(r.Context(), scope, identity(r)); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByClientIP keys on the address stored by ClientIP.
func ByClientIP(r *http.Request) string {
	return irisauth.ClientIPFromContext(r.Context())
}

// ByPrincipal keys on the user id stored by Guard.
func ByPrincipal(r *http.Request) string {
	p, ok := irisauth.PrincipalFromContext(r.Context())
	if !ok {
		return ""
	}
	return p.UserID
}

// SubjectResolver extracts the owner of a refresh token without a full check.
// *irisauth.Engine implements it.
type SubjectResolver interface {
	RefreshSubject(refreshToken string) (string, error)
}

// ByRefreshSubject keys on the subject of the refresh cookie, so a client
// cannot dodge the budget by rotating IPs.
func ByRefreshSubject(resolver SubjectResolver, cookieName string) IdentityFunc {
	return func(r *http.Request) string {
		c, err := r.Cookie(cookieName)
		if err != nil || c.Value == "" {
			return ""
		}
		sub, err := resolver.RefreshSubject(c.Value)
		if err != nil {
			return ""
		}
		return sub
	}
}
