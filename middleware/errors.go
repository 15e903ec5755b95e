package middleware

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/AvanindraBose/irisauth"
)

const (
	detailUnauthorized = "unauthorized, please re-authenticate"
	detailRateLimited  = "too many requests"
	detailUnavailable  = "temporarily unavailable, try again"
	detailInternal     = "Internal Server Error"
	detailBadAPIKey    = "Invalid API Key"
)

type errorBody struct {
	Detail string `json:"detail"`
}

// WriteError renders err as a JSON error response. Every authentication
// failure maps to the same 401 body regardless of its cause.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case irisauth.IsUnauthorized(err):
		WriteJSON(w, http.StatusUnauthorized, errorBody{Detail: detailUnauthorized})
	case errors.Is(err, irisauth.ErrRateLimited):
		if retry, ok := irisauth.RetryAfter(err); ok && retry > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
		}
		WriteJSON(w, http.StatusTooManyRequests, errorBody{Detail: detailRateLimited})
	case errors.Is(err, irisauth.ErrStoreUnavailable):
		WriteJSON(w, http.StatusServiceUnavailable, errorBody{Detail: detailUnavailable})
	default:
		WriteJSON(w, http.StatusInternalServerError, errorBody{Detail: detailInternal})
	}
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
