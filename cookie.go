package irisauth

import (
	"math"
	"net/http"
	"time"
)

// RefreshCookie returns the HttpOnly cookie that carries t.RefreshToken. Its
// MaxAge is the token's remaining lifetime, rounded up to whole seconds.
func (e *Engine) RefreshCookie(t *Tokens) *http.Cookie {
	c := e.baseCookie()
	if t == nil {
		return c
	}

	c.Value = t.RefreshToken
	c.Expires = t.RefreshExpiresAt.UTC()
	remaining := t.RefreshExpiresAt.Sub(e.now())
	if remaining <= 0 {
		c.MaxAge = -1
		return c
	}
	c.MaxAge = int(math.Ceil(remaining.Seconds()))
	return c
}

// ClearRefreshCookie returns a cookie that deletes the refresh cookie.
func (e *Engine) ClearRefreshCookie() *http.Cookie {
	c := e.baseCookie()
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0).UTC()
	return c
}

// RefreshCookieName is the name of the cookie RefreshCookie builds.
func (e *Engine) RefreshCookieName() string {
	return e.config.Cookie.Name
}

func (e *Engine) baseCookie() *http.Cookie {
	cfg := e.config.Cookie
	return &http.Cookie{
		Name:     cfg.Name,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.SameSite,
	}
}
