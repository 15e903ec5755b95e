package middleware

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader carries the static inference key.
const APIKeyHeader = "api-key"

// RequireAPIKey answers 403 unless the api-key header equals key.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	want := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(APIKeyHeader))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				WriteJSON(w, http.StatusForbidden, errorBody{Detail: detailBadAPIKey})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
