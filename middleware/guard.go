package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/AvanindraBose/irisauth"
)

// Authenticator verifies access tokens. *irisauth.Engine implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*irisauth.Principal, error)
}

// Guard rejects requests without a valid bearer access token and stores the
// authenticated Principal in the request context for the next handler.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				WriteError(w, irisauth.ErrInvalidToken)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, irisauth.ErrInvalidToken)
				return
			}

			p, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(irisauth.WithPrincipal(r.Context(), p)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}
