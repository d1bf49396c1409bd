package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"openmediamap/internal/identity"
	"openmediamap/internal/moderation/handler"
	"openmediamap/internal/moderation/service"
	"openmediamap/internal/objectstore"
	"openmediamap/internal/platform/config"
	"openmediamap/internal/platform/httpserver"
	"openmediamap/internal/platform/logger"
	"openmediamap/internal/platform/metrics"
	authmw "openmediamap/internal/platform/middleware"
	"openmediamap/internal/platform/postgres"
	"openmediamap/internal/platform/redis"
	submissionstore "openmediamap/internal/submission/store"
	"openmediamap/pkg/platform/audit/publisher"
	auditpostgres "openmediamap/pkg/platform/audit/store/postgres"
	"openmediamap/pkg/platform/httputil"
	"openmediamap/pkg/platform/middleware/metadata"
	"openmediamap/pkg/platform/middleware/request"
	"openmediamap/pkg/platform/middleware/requesttime"
)

// main wires dependencies and runs the HTTP server until SIGINT or SIGTERM.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.ApplySchema {
		if err := postgres.ApplySchema(ctx, db); err != nil {
			return err
		}
	}

	cache, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	m := metrics.New()
	svc, authenticator, err := buildService(cfg, db, cache, m, log)
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Use(request.RequestID)
	router.Use(metadata.ClientMetadata)
	router.Use(requesttime.Middleware)
	router.Use(request.Logger(log, m))
	router.Use(request.Recovery(log))
	router.Use(request.Timeout(cfg.Server.RequestTimeout))

	router.Get("/healthz", healthHandler(db, cache))
	router.Method(http.MethodGet, "/metrics", m.Handler())

	handler.New(svc, log, cfg.Upload.MaxBytes).Register(router,
		authmw.RequireAuth(authenticator, log),
		authmw.RequireAdmin(log),
	)

	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Server.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func buildService(cfg config.Config, db *sql.DB, cache *redis.Client, m *metrics.Metrics, log *slog.Logger) (*service.Service, identity.Authenticator, error) {
	var profiles identity.ProfileDirectory = identity.NewPostgresProfiles(db, cfg.Database.QueryTimeout)
	if cache != nil {
		profiles = identity.NewCachedProfiles(profiles, cache.Client, cfg.Redis.ProfileTTL, log)
	}

	authenticator := identity.NewProvider(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience,
		identity.WithProfiles(profiles),
		identity.WithProviderLogger(log),
		identity.WithLeeway(cfg.Auth.Leeway),
	)

	auditLog := publisher.New(
		auditpostgres.New(db, auditpostgres.WithQueryTimeout(cfg.Database.QueryTimeout)),
		publisher.WithLogger(log),
		publisher.WithFailureCounter(m),
	)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithProfiles(profiles),
	}
	if cfg.Spaces.Bucket != "" {
		spaces, err := objectstore.NewSpaces(cfg.Spaces)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, service.WithObjectStore(spaces))
	} else {
		log.Warn("object storage not configured; photo uploads will be rejected")
	}

	svc, err := service.New(
		submissionstore.NewPostgres(db, submissionstore.WithQueryTimeout(cfg.Database.QueryTimeout)),
		auditLog,
		opts...,
	)
	if err != nil {
		return nil, nil, err
	}
	return svc, authenticator, nil
}

func healthHandler(db *sql.DB, cache *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"database": "ok"}
		code := http.StatusOK
		if err := db.PingContext(ctx); err != nil {
			status["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
		if cache != nil {
			status["cache"] = "ok"
			if err := cache.Health(ctx); err != nil {
				status["cache"] = "degraded"
			}
		}
		httputil.WriteJSON(w, code, status)
	}
}
