package demoapi

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskcache/internal/demoauth"
	"taskcache/internal/obs"
	"taskcache/internal/runtimecache"
)

// SetupMiddleware installs recovery, request ID, CORS, access logging,
// and (when configured) rate limiting on /v1/tasks and API-key auth on
// /v1 — the same ordering the gateway used, since recovery has to run
// outermost to catch a panic in everything after it. metrics is not used
// here; SetupRoutes serves it on /metrics.
func SetupMiddleware(app *fiber.App, logger *zap.Logger, metrics *obs.Metrics, auth *demoauth.Service, limiter *runtimecache.Limiter) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,HEAD,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,X-API-Key",
	}))

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)
		status := c.Response().StatusCode()

		logger.Info("http_request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("request_id", c.Get("X-Request-ID")),
		)
		return err
	})

	if limiter != nil {
		app.Use("/v1/tasks", func(c *fiber.Ctx) error {
			callerID := callerIDFromHeader(c)
			allowed, retryAfter, err := limiter.Allow(c.Context(), callerID)
			if err != nil {
				logger.Error("rate limiter error", zap.Error(err))
				return c.Next() // fail open: a limiter outage shouldn't take down submission
			}
			if !allowed {
				c.Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":               "rate limit exceeded",
					"retry_after_seconds": int(retryAfter.Seconds()),
				})
			}
			return c.Next()
		})
	}

	if auth != nil {
		app.Use("/v1", auth.RequireAPIKey())
	}
}

// callerIDFromHeader derives a stable per-caller UUID from the X-API-Key
// header (or a constant anonymous ID), so the rate limiter has a bucket
// key even when auth is disabled.
func callerIDFromHeader(c *fiber.Ctx) uuid.UUID {
	key := c.Get("X-API-Key")
	if key == "" {
		return uuid.Nil
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key))
}
