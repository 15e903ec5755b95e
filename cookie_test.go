package irisauth

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestRefreshCookie(t *testing.T) {
	env := newTestEnv(t, nil)

	login, err := env.engine.Login(context.Background(), "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	c := env.engine.RefreshCookie(login)
	if c.Name != "refresh_token" || c.Value != login.RefreshToken {
		t.Fatalf("unexpected cookie %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie flags %+v", c)
	}
	if c.Path != "/auth" {
		t.Fatalf("unexpected path %q", c.Path)
	}
	if c.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
		t.Fatalf("unexpected MaxAge %d", c.MaxAge)
	}

	env.clock.Advance(24 * time.Hour)
	if c := env.engine.RefreshCookie(login); c.MaxAge != int((6 * 24 * time.Hour).Seconds()) {
		t.Fatalf("MaxAge should track remaining lifetime, got %d", c.MaxAge)
	}
}

func TestClearRefreshCookie(t *testing.T) {
	env := newTestEnv(t, nil)

	c := env.engine.ClearRefreshCookie()
	if c.Name != env.engine.RefreshCookieName() || c.Value != "" || c.MaxAge >= 0 {
		t.Fatalf("unexpected clearing cookie %+v", c)
	}
	if !c.HttpOnly || c.Path != "/auth" {
		t.Fatalf("clearing cookie must share the refresh cookie's scope: %+v", c)
	}
}
