package irisauth

import (
	"context"
	"errors"
	"time"

	"github.com/AvanindraBose/irisauth/internal/rate"
	"github.com/AvanindraBose/irisauth/session"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "irisauth"

// Metrics holds the Engine's Prometheus collectors.
type Metrics struct {
	login         *prometheus.CounterVec
	refresh       *prometheus.CounterVec
	logout        *prometheus.CounterVec
	rateLimit     *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered. Collectors already registered by an earlier
// Engine on the same registry are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		login: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "login_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_total",
			Help:      "Refresh attempts by result.",
		}, []string{"result"}),
		logout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logout_total",
			Help:      "Logout calls by result.",
		}, []string{"result"}),
		rateLimit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rate_limit_total",
			Help:      "Rate limiter decisions by scope.",
		}, []string{"scope", "decision"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "session_store_duration_seconds",
			Help:      "Session store call latency by operation.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.login, err = register(reg, m.login); err != nil {
		return nil, err
	}
	if m.refresh, err = register(reg, m.refresh); err != nil {
		return nil, err
	}
	if m.logout, err = register(reg, m.logout); err != nil {
		return nil, err
	}
	if m.rateLimit, err = register(reg, m.rateLimit); err != nil {
		return nil, err
	}
	if m.storeDuration, err = register(reg, m.storeDuration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) loginResult(result string) {
	if m != nil {
		m.login.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) refreshResult(result string) {
	if m != nil {
		m.refresh.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) logoutResult(result string) {
	if m != nil {
		m.logout.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) rateDecision(scope rate.Scope, decision rate.Decision) {
	if m != nil {
		m.rateLimit.WithLabelValues(string(scope), string(decision)).Inc()
	}
}

func (m *Metrics) observeStore(op string, start time.Time) {
	if m != nil {
		m.storeDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// instrumentedStore times every call into the wrapped store.
type instrumentedStore struct {
	inner   session.Store
	metrics *Metrics
}

func (s instrumentedStore) Upsert(ctx context.Context, rec session.Record) error {
	defer s.metrics.observeStore("upsert", time.Now())
	return s.inner.Upsert(ctx, rec)
}

func (s instrumentedStore) Rotate(ctx context.Context, userID string, fn session.RotateFunc) (session.Record, error) {
	defer s.metrics.observeStore("rotate", time.Now())
	return s.inner.Rotate(ctx, userID, fn)
}

func (s instrumentedStore) Delete(ctx context.Context, userID string) error {
	defer s.metrics.observeStore("delete", time.Now())
	return s.inner.Delete(ctx, userID)
}

func (s instrumentedStore) Ping(ctx context.Context) error {
	if p, ok := s.inner.(session.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
