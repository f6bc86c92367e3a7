// Package server initializes and runs the application: it wires the
// metadata store, storage backend, services, the bundle worker, the
// sweep scheduler, and the HTTP server, and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dpavlovs/filegate/internal/logging"
	"github.com/dpavlovs/filegate/internal/server/config"
	"github.com/dpavlovs/filegate/internal/server/db"
	"github.com/dpavlovs/filegate/internal/server/httpapi"
	"github.com/dpavlovs/filegate/internal/server/metastore"
	"github.com/dpavlovs/filegate/internal/server/registry"
	"github.com/dpavlovs/filegate/internal/server/repositories/audit"
	"github.com/dpavlovs/filegate/internal/server/services"
	"github.com/dpavlovs/filegate/internal/server/storage"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	http    *httpapi.Server
	bundles *services.BundleService
	cron    *cron.Cron
}

// newBackend selects the storage backend: an S3-compatible endpoint when
// one is configured, the local filesystem otherwise.
func newBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	if cfg.S3BaseEndpoint == "" {
		return storage.NewLocalBackend(cfg.UploadDir)
	}
	return storage.NewS3Backend(ctx, storage.S3Config{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	conn, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.RunMigrations(ctx, conn); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	store := metastore.NewPostgresStore(conn)
	finder := registry.NewFinder(store, backend, logger)
	secret := []byte(cfg.SecretKey)

	auditSvc := services.NewAuditService(audit.NewPostgresRepository(conn), logger)
	files := services.NewFileService(store, backend, finder, logger)
	downloads := services.NewDownloadService(finder, backend, auditSvc, secret, cfg.PresignTTL, logger)
	bundles, err := services.NewBundleService(finder, backend, store, secret, cfg.BundleDir, cfg.BundleRetention, logger)
	if err != nil {
		return nil, fmt.Errorf("bundle init error: %w", err)
	}

	app := &App{
		config:  cfg,
		logger:  logger,
		http:    httpapi.NewServer(cfg, files, downloads, bundles, auditSvc, logger),
		bundles: bundles,
		cron:    cron.New(),
	}

	_, err = app.cron.AddFunc(cfg.SweepSchedule, func() {
		if err := bundles.Sweep(ctx); err != nil {
			logger.Error(ctx, "bundle sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", cfg.SweepSchedule, err)
	}

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the bundle worker, the sweep scheduler, and the HTTP server,
// then blocks until the context is cancelled or a termination signal
// arrives. In-flight requests are drained before Run returns.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.bundles.Run(ctx)
	}()

	app.cron.Start()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.http.Listen(); err != nil {
			app.logger.Error(ctx, "http server stopped", "error", err)
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.http.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown failed", "error", err)
	}
	<-app.cron.Stop().Done()

	wg.Wait()
	app.logger.Info(context.Background(), "app stopped")
}
