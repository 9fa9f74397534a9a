// Command demoserver runs an HTTP front end over the pool and cache
// packages, wiring in every optional backing service this module's
// domain stack supports: Redis as a cache L2 and rate-limit store,
// Postgres as a task-completion audit log, and NATS as an alternate
// task-submission transport. Each is optional — leaving its URL unset
// in the environment disables just that piece.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskcache/cache"
	"taskcache/internal/auditlog"
	"taskcache/internal/demoapi"
	"taskcache/internal/demoauth"
	"taskcache/internal/obs"
	"taskcache/internal/runtimecache"
	"taskcache/internal/runtimeconfig"
	"taskcache/internal/tasksbus"
	"taskcache/pool"
)

func main() {
	cfg, err := runtimeconfig.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := obs.FromEnv(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting taskcache demo server")

	shutdownOtel, err := obs.SetupOpenTelemetry("taskcache-demoserver", logger)
	if err != nil {
		logger.Warn("opentelemetry setup failed, continuing without it", zap.Error(err))
		shutdownOtel = func() {}
	}
	defer shutdownOtel()

	ctx := context.Background()

	workerPool, err := pool.New(
		cfg.ResolvedPoolWorkers(runtime.GOMAXPROCS(0)),
		pool.WithLogger(logger),
		pool.WithLocalQueueSize(cfg.PoolLocalQueue),
		pool.WithGlobalQueueSize(cfg.PoolGlobalQueue),
	)
	if err != nil {
		log.Fatalf("failed to start pool: %v", err)
	}
	defer workerPool.Shutdown()

	metrics := obs.NewMetrics()
	blobCache := cache.New(cfg.CacheCapacity, cfg.CacheDefaultTTL,
		cache.WithLogger(logger),
		cache.WithHooks(
			func() { metrics.CacheHits.Inc() },
			func() { metrics.CacheMisses.Inc() },
			func() { metrics.CacheEvictions.Inc() },
		),
	)

	var redisClient *runtimecache.RedisClient
	var backed *runtimecache.BackedCache
	var limiter *runtimecache.Limiter
	if cfg.RedisURL != "" {
		rc, err := runtimecache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, running cache-only without an L2", zap.Error(err))
		} else {
			defer rc.Close()
			redisClient = rc
			backed = runtimecache.NewBackedCache(blobCache, redisClient, cfg.CacheDefaultTTL, logger)
			limiter = runtimecache.NewLimiter(redisClient, logger, 20, 40)
		}
	}

	var auditStore *auditlog.Store
	if cfg.PostgresURL != "" {
		pg, err := auditlog.NewPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Warn("postgres unavailable, running without an audit log", zap.Error(err))
		} else {
			defer pg.Close()
			if err := pg.RunMigrations("internal/auditlog/migrations"); err != nil {
				logger.Warn("audit log migrations failed", zap.Error(err))
			}
			auditStore = auditlog.NewStore(pg, redisClient, logger)
		}
	}

	var bus *tasksbus.Bus
	if cfg.NATSURL != "" {
		b, err := tasksbus.Connect(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn("nats unavailable, task submission is HTTP-only", zap.Error(err))
		} else {
			defer b.Close()
			bus = b
			sub, err := bus.Subscribe(func(env tasksbus.Envelope) error {
				accepted := workerPool.Submit(func() {
					logger.Debug("bus task executed",
						zap.String("correlation_id", env.CorrelationID.String()),
						zap.String("name", env.Name))
				})
				if !accepted {
					return context.Canceled
				}
				return nil
			})
			if err != nil {
				logger.Warn("failed to subscribe to task bus", zap.Error(err))
			} else {
				defer func() { _ = sub.Unsubscribe() }()
			}
		}
	}

	var authSvc *demoauth.Service
	if cfg.APIKeyHash != "" {
		authSvc = demoauth.NewService(cfg.APIKeyHash, logger)
	}

	reporter := obs.NewReporter(logger, 30*time.Second,
		func() (int, int64, int64, int64, int) {
			s := workerPool.Stats()
			return s.Workers, s.Submitted, s.Executed, s.Stolen, s.Working
		},
		func() (int, int) {
			return blobCache.Size(), blobCache.Capacity()
		},
	)
	reporterCtx, cancelReporter := context.WithCancel(ctx)
	reporter.Start(reporterCtx)
	defer cancelReporter()

	sampler := obs.NewSampler(metrics,
		func() (int64, int64, int64) {
			s := workerPool.Stats()
			return s.Submitted, s.Executed, s.Stolen
		},
		workerPool.QueueDepths,
		blobCache.ShardSizes,
	)
	samplerCtx, cancelSampler := context.WithCancel(ctx)
	sampler.Start(samplerCtx, 5*time.Second)
	defer cancelSampler()

	handlers := demoapi.NewHandlers(logger, workerPool, blobCache, backed, auditStore)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logger.Error("fiber error", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
		},
	})

	demoapi.SetupRoutes(app, logger, metrics, handlers, authSvc, limiter)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()
	logger.Info("taskcache demo server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("failed to shut down fiber gracefully", zap.Error(err))
	}
	logger.Info("taskcache demo server stopped")
}
