package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cortexmap/cortex/internal/config"
	"github.com/cortexmap/cortex/internal/hash/sha256"
	"github.com/cortexmap/cortex/internal/id/uuid"
	"github.com/cortexmap/cortex/internal/logging"
	"github.com/cortexmap/cortex/internal/mapper"
	"github.com/cortexmap/cortex/internal/progress"
	"github.com/cortexmap/cortex/internal/progress/sinks"
	"github.com/cortexmap/cortex/internal/render"
	"github.com/cortexmap/cortex/internal/service/attemptstore"
	"github.com/cortexmap/cortex/internal/service/blobstore"
	"github.com/cortexmap/cortex/internal/telemetry"
)

// Version is stamped at build time via -ldflags; "dev" otherwise.
var Version = "dev"

// App is the long-lived process's dependency-injection container: a
// single struct wiring config, logger, telemetry, the render pool, the
// Mapper, the Map Cache, the attempt ledger, the blob store and the local
// transport, with one Run that blocks until shutdown and one Close that
// tears everything down.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	version   string
	startedAt time.Time

	hub        *progress.Hub
	renderPool *render.Pool
	mapper     *mapper.Mapper
	cache      *MapCache
	attempts   attemptstore.Store
	blobs      blobstore.Store
	ids        *uuid.Generator
	hasher     *sha256.Hasher

	conn *connServer
	rest *restMirror

	shutdownTelemetry func(context.Context) error
}

// Build wires every dependency from cfg in a single linear provider chain.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	if _, _, err := telemetry.Init(ctx, "cortexd", Version); err != nil {
		logger.Warn("telemetry init failed, continuing without it", zapErr(err))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var renderPool *render.Pool
	if cfg.Render.Enabled {
		renderPool = render.NewPool(render.Config{
			ChromiumPath:    cfg.ChromiumPath,
			UserAgent:       cfg.Fetch.UserAgent,
			MaxConcurrency:  cfg.Render.PoolSize,
			PageTimeout:     time.Duration(cfg.Render.PageTimeoutSeconds) * time.Second,
			ContextLifetime: time.Duration(cfg.Render.MaxLifetimeMinutes) * time.Minute,
			ContextIdleTTL:  time.Duration(cfg.Render.IdleKillMinutes) * time.Minute,
			ContextMaxPages: cfg.Render.RecyclePages,
		}, logger.Named("render"))
	}

	hubSinks := []progress.Sink{sinks.NewLogSink(logger.Named("progress"))}
	if promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer); err != nil {
		logger.Warn("prometheus progress sink disabled", zapErr(err))
	} else {
		hubSinks = append(hubSinks, promSink)
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, hubSinks...)

	m := mapper.New(mapper.Config{
		GlobalConcurrency:  cfg.Fetch.GlobalConcurrency,
		PerHostConcurrency: cfg.Fetch.PerHostConcurrency,
		PerHostQPS:         cfg.Fetch.PerHostQPS,
		UserAgent:          cfg.Fetch.UserAgent,
		DefaultMaxNodes:    cfg.MaxNodes,
		DefaultMaxTimeMs:   int64(cfg.TimeoutMs),
	}, logger.Named("mapper"), renderPool, hub)

	attempts, err := attemptstore.Open(ctx, withSQLiteDefaultPath(cfg.Attemptstore, cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("open attempt store: %w", err)
	}

	blobs, err := blobstore.Open(ctx, cfg.Storage)
	if err != nil {
		attempts.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		version:    Version,
		startedAt:  time.Now(),
		hub:        hub,
		renderPool: renderPool,
		mapper:     m,
		cache:      NewMapCache(cfg.Cache.MaxBytes),
		attempts:   attempts,
		blobs:      blobs,
		ids:        uuid.NewUUIDGenerator(),
		hasher:     sha256.New(),
		shutdownTelemetry: func(ctx context.Context) error {
			return telemetry.Shutdown(ctx)
		},
	}

	a.conn = newConnServer(a, cfg.SocketPath, logger.Named("transport"))
	if cfg.HTTPPort != 0 {
		a.rest = newRESTMirror(a, cfg.HTTPPort, logger.Named("rest"))
	}

	return a, nil
}

// withSQLiteDefaultPath rewrites a "sqlite" backend's empty DSN to a file
// under dataDir, so operators don't have to set DSN just to get the
// documented default location.
func withSQLiteDefaultPath(cfg config.AttemptStoreConfig, dataDir string) config.AttemptStoreConfig {
	if cfg.Backend == "sqlite" && cfg.DSN == "" {
		cfg.DSN = filepath.Join(dataDir, "cortex.db")
	}
	return cfg
}

// Run starts the transport (and optional REST mirror) and blocks until a
// shutdown signal arrives or ctx is cancelled, then tears everything down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- a.conn.Serve(ctx) }()
	if a.rest != nil {
		go func() { errCh <- a.rest.Serve(ctx) }()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			a.logger.Error("service listener failed", zapErr(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.Close(shutdownCtx)
}

// Close tears down every dependency: the listeners first, then the render
// pool, progress hub, blob store, attempt store and telemetry, and finally
// it syncs the logger.
func (a *App) Close(ctx context.Context) error {
	a.conn.Close()
	if a.rest != nil {
		a.rest.Close(ctx)
	}
	if a.renderPool != nil {
		if err := a.renderPool.Close(ctx); err != nil {
			a.logger.Warn("render pool close failed", zapErr(err))
		}
	}
	if err := a.hub.Close(ctx); err != nil {
		a.logger.Warn("progress hub close failed", zapErr(err))
	}
	if err := a.blobs.Close(); err != nil {
		a.logger.Warn("blob store close failed", zapErr(err))
	}
	if err := a.attempts.Close(); err != nil {
		a.logger.Warn("attempt store close failed", zapErr(err))
	}
	if a.shutdownTelemetry != nil {
		if err := a.shutdownTelemetry(ctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", zapErr(err))
		}
	}
	return a.logger.Sync()
}
