// Command upsetlens serves the selection and intersection API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/upsetlens/internal/adapters/http/api"
	"github.com/okian/upsetlens/internal/adapters/snapshot"
	app "github.com/okian/upsetlens/internal/app"
	"github.com/okian/upsetlens/internal/config"
	"github.com/okian/upsetlens/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "upsetlens exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains the server and the service.
func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.Init(logger.Options{Format: cfg.LogFormat}); err != nil {
		return err
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, closeStore, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newService builds the service and, when configured, its snapshot store.
// The returned func closes the store.
func newService(ctx context.Context, cfg *config.Config) (*app.Service, func(), error) {
	log := logger.Get()
	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithSessionCapacity(cfg.SessionCapacity),
		app.WithShardCount(cfg.ShardCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithMaxGroups(cfg.MaxGroups),
		app.WithMinStep(cfg.MinStep),
		app.WithUnscoredSentinel(cfg.UnscoredSentinel),
		app.WithConsolidatedDedupe(cfg.DedupeConsolidated),
		app.WithUnionDedupe(cfg.DedupeUnion),
	}
	closeStore := func() {}
	if cfg.Persistent() {
		store, err := snapshot.Open(
			snapshot.WithDir(cfg.SnapshotDir),
			snapshot.WithInMemory(cfg.SnapshotInMemory),
			snapshot.WithLogger(log.Named("snapshot")),
		)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, app.WithSnapshotStore(store))
		closeStore = func() {
			if err := store.Close(); err != nil {
				log.Error(ctx, "snapshot store close failed", logger.Error(err))
			}
		}
	}
	return app.New(opts...), closeStore, nil
}

func newHandler(cfg *config.Config, svc *app.Service) http.Handler {
	return api.NewServer(svc,
		api.WithCORSOrigins(cfg.CORSOrigins...),
		api.WithLogger(logger.Get().Named("api")),
	).Routes()
}

// startServiceMetricsUpdater refreshes the gauges GetStats maintains.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.GetStats()
		}
	}
}
