// Package httpapi mounts the irisauth Engine on an http.ServeMux.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AvanindraBose/irisauth"
	"github.com/AvanindraBose/irisauth/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Options configures NewHandler. Engine is required.
type Options struct {
	Engine *irisauth.Engine
	Logger *zap.Logger

	// APIKey guards the predict route.
	APIKey string
	// Predict serves POST /predict/predict. Nil leaves the route unmounted.
	Predict http.Handler
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
}

// NewHandler returns the full route tree wrapped in recovery, access logging
// and client-IP extraction.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Engine == nil {
		return nil, errors.New("httpapi: engine required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := opts.Engine
	h := &handlers{engine: e, logger: logger}
	guard := middleware.Guard(e)

	mux := http.NewServeMux()
	mux.Handle("POST /auth/login",
		middleware.RateLimit(e, irisauth.ScopeLogin, middleware.ByClientIP)(http.HandlerFunc(h.login)))
	mux.Handle("POST /auth/refresh",
		middleware.RateLimit(e, irisauth.ScopeRefresh, middleware.ByRefreshSubject(e, e.RefreshCookieName()))(http.HandlerFunc(h.refresh)))
	mux.HandleFunc("POST /auth/logout", h.logout)
	mux.Handle("GET /protected", guard(http.HandlerFunc(h.protected)))
	mux.HandleFunc("GET /health", h.health)

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	if opts.Predict != nil {
		mux.Handle("POST /predict/predict",
			middleware.RequireAPIKey(opts.APIKey)(
				guard(
					middleware.RateLimit(e, irisauth.ScopePredict, middleware.ByPrincipal)(opts.Predict))))
	}

	var root http.Handler = mux
	root = middleware.ClientIP(opts.TrustProxy)(root)
	root = middleware.Recover(logger)(root)
	root = middleware.AccessLog(logger)(root)
	return root, nil
}

type handlers struct {
	engine *irisauth.Engine
	logger *zap.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "email and password are required"})
		return
	}

	tokens, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	h.writeTokens(w, tokens)
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(h.engine.RefreshCookieName())
	if err != nil || c.Value == "" {
		middleware.WriteError(w, irisauth.ErrInvalidToken)
		return
	}

	tokens, err := h.engine.Refresh(r.Context(), c.Value)
	if err != nil {
		// A reused token usually means another tab already rotated the
		// shared cookie; clearing it here would delete the winner's token.
		if irisauth.IsUnauthorized(err) && !errors.Is(err, irisauth.ErrTokenReuseDetected) {
			http.SetCookie(w, h.engine.ClearRefreshCookie())
		}
		middleware.WriteError(w, err)
		return
	}
	h.writeTokens(w, tokens)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.engine.RefreshCookieName()); err == nil && c.Value != "" {
		_ = h.engine.Logout(r.Context(), c.Value)
	}
	http.SetCookie(w, h.engine.ClearRefreshCookie())
	middleware.WriteJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (h *handlers) protected(w http.ResponseWriter, r *http.Request) {
	p, ok := irisauth.PrincipalFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, irisauth.ErrInvalidToken)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "You are authenticated",
		"user":    p.UserID,
	})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Health(r.Context()); err != nil {
		h.logger.Error("health check failed", zap.Error(err))
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) writeTokens(w http.ResponseWriter, t *irisauth.Tokens) {
	http.SetCookie(w, h.engine.RefreshCookie(t))
	middleware.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
		ExpiresIn:   int(h.engine.AccessTTL().Seconds()),
	})
}
