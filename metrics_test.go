package irisauth

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEngineMetricsCountResults(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	login, err := env.engine.Login(ctx, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_, _ = env.engine.Login(ctx, "alice@example.com", "nope")
	if _, err := env.engine.Refresh(ctx, login.RefreshToken); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	_, _ = env.engine.Refresh(ctx, login.RefreshToken)
	_ = env.engine.Logout(ctx, "garbage")

	m := env.engine.metrics
	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"login success", m.login.WithLabelValues("success"), 1},
		{"login invalid", m.login.WithLabelValues("invalid_credentials"), 1},
		{"refresh success", m.refresh.WithLabelValues("success"), 1},
		{"refresh reuse", m.refresh.WithLabelValues("reuse_detected"), 1},
		{"logout skipped", m.logout.WithLabelValues("skipped"), 1},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Fatalf("%s: got %v, want %v", c.name, got, c.want)
		}
	}

	if n := testutil.CollectAndCount(m.storeDuration); n == 0 {
		t.Fatal("expected store latency observations")
	}
}

func TestNewMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	a, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	a.loginResult("success")
	if got := testutil.ToFloat64(b.login.WithLabelValues("success")); got != 1 {
		t.Fatalf("expected shared collector, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.loginResult("success")
	m.refreshResult("success")
	m.logoutResult("success")
	m.rateDecision(ScopeLogin, "allowed")
}
