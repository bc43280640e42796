// Package app wires the Reel server runtime: config, logging, metrics,
// storage backends, and HTTP routes.
//
// It is intentionally small and deterministic to keep startup behavior
// predictable.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"reel/cmd/identity"
	authapi "reel/cmd/internal/auth/api"
	"reel/cmd/internal/auth/session"
)

// App is the Reel server runtime: it owns the HTTP server wiring and the
// lifecycle of its storage backends.
type App struct {
	cfg Config
	log Logger

	metrics *Metrics

	dbPool    *pgxpool.Pool
	dbEnabled bool
	rdb       *redis.Client

	auth *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogPretty)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, metrics: NewMetrics()}

	ctx := context.Background()
	if cfg.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.dbPool = pool
		a.dbEnabled = true

		if cfg.AutoMigrate {
			if err := RunMigrations(ctx, cfg.DatabaseURL); err != nil {
				a.Close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
			log.Info("db.migrated")
		}
		log.Info("db.enabled.postgres_store")
	} else {
		log.Info("db.disabled.inmemory_store")
	}

	users, err := a.newIdentityStore()
	if err != nil {
		a.Close()
		return nil, err
	}

	sessions, err := a.newSessionService(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	auth, err := authapi.NewHandler(log, authapi.LoadConfigFromEnv(), users, sessions)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.auth = auth

	return a, nil
}

func (a *App) newIdentityStore() (identity.Store, error) {
	if a.dbEnabled {
		return identity.NewPostgresStore(a.dbPool)
	}
	return identity.NewMemoryStore(), nil
}

// newSessionService picks the credential store backend and builds the
// session service on it.
func (a *App) newSessionService(ctx context.Context) (*session.Service, error) {
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	var store session.Store
	switch kind := a.cfg.sessionStoreKind(); kind {
	case SessionStorePostgres:
		if !a.dbEnabled {
			return nil, errors.New("app: session store postgres requires REEL_DATABASE_URL")
		}
		store, err = session.NewPostgresStore(a.dbPool)
		if err != nil {
			return nil, err
		}
	case SessionStoreRedis:
		if a.cfg.RedisAddr == "" {
			return nil, errors.New("app: session store redis requires REEL_REDIS_ADDR")
		}
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := a.rdb.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		store = session.NewRedisStore(a.rdb)
	default:
		store = session.NewMemoryStore()
	}

	a.log.Info("session.store", "backend", a.cfg.sessionStoreKind())
	return session.NewService(sessCfg, store, session.WithObserver(a.metrics.AuthObserver()))
}

// Close releases storage resources. Safe to call more than once.
func (a *App) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
		a.rdb = nil
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	handler := newRouter(a.log, a.cfg, a.metrics, a.dbPool, a.dbEnabled, a.auth)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.Close()
	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
