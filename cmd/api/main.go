package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"musicaldb_backend/internal/adapters/storage"
	"musicaldb_backend/internal/events"
	apphttp "musicaldb_backend/internal/http"
	"musicaldb_backend/internal/http/router"
	"musicaldb_backend/internal/media"
	"musicaldb_backend/internal/media/domain"
	"musicaldb_backend/internal/media/metrics"
	"musicaldb_backend/internal/media/repository"
	"musicaldb_backend/internal/media/service"
	"musicaldb_backend/internal/media/transcode"
	"musicaldb_backend/internal/media/validation"
	"musicaldb_backend/internal/scheduler"
	"musicaldb_backend/migrations"
	"musicaldb_backend/platform/config"
	"musicaldb_backend/platform/db"
	"musicaldb_backend/platform/lock"
	"musicaldb_backend/platform/logger"
	"musicaldb_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const storageBucketEnsureErrPrefix = "failed to ensure storage bucket exists: "
const storageBucketEnsureErrMsg = "failed to ensure storage bucket exists"

// ensureBucket wraps the retry logic for verifying the media bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, bucket string) {
	if err := withRetry(ctx, log, "ensure media bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error(storageBucketEnsureErrMsg, "error", err, "bucket", bucket)
		panic(storageBucketEnsureErrPrefix + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, log)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Object storage is optional at boot: uploads fail with a configuration
	// error until it is set up, while listing keeps working.
	storageSvc, err := storage.New(ctx, cfg)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		log.Warn("object storage not configured; uploads disabled", "missing", cfg.MissingStorageSettings())
		storageSvc = nil
	case err != nil:
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	default:
		ensureBucket(ctx, log, storageSvc, cfg.GetStorageBucket())
		log.Info("storage service initialized", "provider", cfg.GetStorageProvider(), "bucket", cfg.GetStorageBucket())
	}

	locker, closeLocker := initLocker(cfg, log)
	if closeLocker != nil {
		defer closeLocker()
	}

	paletteClient, closeScheduler := initPaletteScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}
	if paletteClient != nil {
		scheduler.SubscribePalette(eventBus, paletteClient, log)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observer, err := metrics.NewPrometheusObserver("musicaldb", registry)
	if err != nil {
		log.Error("failed to register media metrics", "error", err)
		panic("failed to register media metrics: " + err.Error())
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	policy := cfg.GetMediaPolicy()
	policies := domain.NewPolicies(policy)
	repo := repository.New(pool)

	mediaSvc := service.New(service.Options{
		Registry:           repo,
		Entities:           repo,
		Store:              storageSvc,
		Bucket:             cfg.GetStorageBucket(),
		Validator:          validation.New(policies, policy.MaxPixels),
		Transcoder:         transcode.New(policies, policy.JPEGQuality),
		Policies:           policies,
		Locker:             locker,
		LockTTL:            cfg.GetProfileLockTTL(),
		CleanupConcurrency: policy.CleanupConcurrency,
		Bus:                eventBus,
		Observer:           observer,
		Log:                log,
	})

	mediaModule, err := media.NewModule(mediaSvc, val)
	if err != nil {
		log.Error("failed to initialize media module", "error", err)
		panic("failed to initialize media module: " + err.Error())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Metrics:  registry,
		Modules: []apphttp.Module{
			mediaModule,
		},
	}

	engine := router.New(app)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initLocker prefers Redis so profile replacement is serialized across
// replicas; without REDIS_URL it falls back to a process-local lock.
func initLocker(cfg *config.Config, log *logger.Logger) (lock.Locker, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; profile uploads serialized per process only")
		return lock.NewMemoryLocker(), nil
	}

	redisLocker, err := lock.NewRedisLockerFromURL(cfg.GetRedisURL(), cfg.GetProfileLockWait())
	if err != nil {
		log.Error("failed to initialize redis locker; falling back to memory", "error", err)
		return lock.NewMemoryLocker(), nil
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisLocker.Ping(pingCtx); err != nil {
		log.Error("redis locker unreachable; falling back to memory", "error", err)
		_ = redisLocker.Close()
		return lock.NewMemoryLocker(), nil
	}

	return redisLocker, func() {
		_ = redisLocker.Close()
	}
}

func initPaletteScheduler(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; poster palettes disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize palette scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
