// Command designer serves the pipeline canvas API: graph persistence,
// per-stage configuration, automatic layout, and descriptor compilation.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pipecanvas-labs/pipecanvas-go/internal/platform/auditlog"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/platform/auth"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/platform/env"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/platform/httpserver"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/platform/objectstore"
	"github.com/pipecanvas-labs/pipecanvas-go/internal/platform/postgres"
	repopg "github.com/pipecanvas-labs/pipecanvas-go/internal/repo/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("DESIGNER_HTTP_ADDR", ":8080")
	shutdownTimeout, err := env.Duration("DESIGNER_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	presignTTL, err := env.Duration("DESIGNER_DESCRIPTOR_PRESIGN_TTL", 10*time.Minute)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	storeClient, err := objectstore.NewMinIOClient(storeCfg)
	if err != nil {
		logger.Error("object store client init failed", "error", err)
		os.Exit(2)
	}
	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := objectstore.EnsureBuckets(startupCtx, storeClient, storeCfg); err != nil {
		cancel()
		logger.Error("object store unavailable", "error", err)
		os.Exit(1)
	}
	cancel()

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	authenticator, err := buildAuthenticator(ctx, authCfg, logger)
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("designer"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"designer",
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
			httpserver.ReadinessCheck{
				Name: "minio",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return objectstore.CheckBuckets(checkCtx, storeClient, storeCfg)
				},
			},
		),
	)

	store, err := objectstore.NewStore(storeClient)
	if err != nil {
		logger.Error("object store init failed", "error", err)
		os.Exit(2)
	}

	service := newDesignerService(
		repopg.NewPipelineStore(db),
		repopg.NewStageConfigStore(db),
		repopg.NewDescriptorStore(db),
		store,
		storeCfg.BucketDescriptors,
		presignTTL,
		func(ctx context.Context, event auditlog.Event) error {
			auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			_, err := auditlog.Insert(auditCtx, db, event)
			return err
		},
	)

	api := newDesignerAPI(logger, service)
	api.register(mux)

	handler := auth.Middleware{
		Logger:         logger,
		Authenticator:  authenticator,
		Authorize:      auth.MethodRoleAuthorizer(),
		ProjectResolve: auth.RequireProjectIDResolver([]string{"/healthz", "/readyz"}),
		Audit: func(ctx context.Context, event auth.DenyEvent) error {
			auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return auditlog.InsertAuthDeny(auditCtx, db, "designer", event)
		},
		SkipPrefixes: []string{"/healthz", "/readyz"},
	}.Wrap(mux)

	cfg := httpserver.Config{
		Service:         "designer",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "designer", handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func buildAuthenticator(ctx context.Context, cfg auth.Config, logger *slog.Logger) (auth.Authenticator, error) {
	switch cfg.Mode {
	case auth.ModeHeaders:
		return auth.NewGatewayHeadersAuthenticator(env.String("PIPECANVAS_INTERNAL_AUTH_SECRET", ""))
	case auth.ModeOIDC:
		return auth.NewOIDCAuthenticator(ctx, cfg)
	case auth.ModeDev:
		logger.Warn("auth running in dev mode", "subject", cfg.DevSubject)
		return auth.NewDevAuthenticator(cfg), nil
	case auth.ModeDisabled:
		logger.Warn("auth disabled; all requests run as anonymous admin")
		return auth.AnonymousAuthenticator{}, nil
	}
	return nil, errors.New("unsupported auth mode")
}
