// Command irisauthd serves the irisauth login, refresh and logout routes.
//
// Configuration is read from the environment; see internal/config.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AvanindraBose/irisauth"
	"github.com/AvanindraBose/irisauth/internal/config"
	"github.com/AvanindraBose/irisauth/internal/httpapi"
	promexport "github.com/AvanindraBose/irisauth/metrics/export/prometheus"
	"github.com/AvanindraBose/irisauth/session"
	"github.com/AvanindraBose/irisauth/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("irisauthd stopped", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.AppEnv == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := session.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	engineCfg := cfg.Engine()
	reg := promexport.NewRegistry()

	engine, err := irisauth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithSessionStore(session.NewPostgresStore(db, session.PostgresOptions{
			OpTimeout:   engineCfg.Session.OpTimeout,
			LockTimeout: engineCfg.Session.LockTimeout,
		})).
		WithCredentials(users.NewPostgresRepository(db, engineCfg.Session.OpTimeout)).
		WithLogger(logger.Named("auth")).
		WithMetrics(reg).
		Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}

	opts := httpapi.Options{
		Engine:     engine,
		Logger:     logger.Named("http"),
		APIKey:     cfg.APIKey,
		Metrics:    promexport.Handler(reg),
		TrustProxy: cfg.TrustProxy,
	}
	if cfg.PredictUpstreamURL != "" {
		upstream, err := url.Parse(cfg.PredictUpstreamURL)
		if err != nil {
			return fmt.Errorf("parse PREDICT_UPSTREAM_URL: %w", err)
		}
		opts.Predict = newPredictProxy(upstream, logger.Named("predict"))
	} else {
		logger.Warn("PREDICT_UPSTREAM_URL not set, predict route disabled")
	}

	handler, err := httpapi.NewHandler(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("irisauthd listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// newPredictProxy forwards authenticated inference calls to the model
// service. The caller's user id travels in X-User-ID; credentials do not.
func newPredictProxy(upstream *url.URL, logger *zap.Logger) http.Handler {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			pr.Out.Header.Del("Authorization")
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del("api-key")
			if p, ok := irisauth.PrincipalFromContext(pr.In.Context()); ok {
				pr.Out.Header.Set("X-User-ID", p.UserID)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("predict upstream failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"Error Occured During Prediction"}` + "\n"))
		},
	}
	return proxy
}
