package demoapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"taskcache/internal/demoauth"
	"taskcache/internal/obs"
	"taskcache/internal/runtimecache"
)

// SetupRoutes wires every endpoint this demo exposes over pool and
// cache, mirroring the gateway's routes.go layout: middleware first,
// then unauthenticated health/docs/metrics endpoints, then the
// authenticated /v1 group.
func SetupRoutes(app *fiber.App, logger *zap.Logger, metrics *obs.Metrics, handlers *Handlers, auth *demoauth.Service, limiter *runtimecache.Limiter) {
	SetupMiddleware(app, logger, metrics, auth, limiter)

	app.Get("/healthz", handlers.HealthCheck)
	app.Get("/readyz", handlers.ReadyCheck)

	app.Get("/docs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"title":   "taskcache demo API",
			"version": "1.0",
			"endpoints": fiber.Map{
				"health":       "GET /healthz",
				"ready":        "GET /readyz",
				"submit_task":  "POST /v1/tasks - submit simulated work to the pool",
				"pool_stats":   "GET /v1/pool/stats",
				"get_cache":    "GET /v1/cache/{key}",
				"set_cache":    "PUT /v1/cache/{key}",
				"delete_cache": "DELETE /v1/cache/{key}",
				"cache_stats":  "GET /v1/cache/stats",
				"audit_log":    "GET /v1/audit",
				"metrics":      "GET /metrics",
			},
			"auth": "set API_KEY_HASH to require header X-API-Key",
		})
	})

	app.Get("/api-spec", func(c *fiber.Ctx) error {
		return c.JSON(openAPISpec())
	})

	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/v1")

	v1.Post("/tasks", handlers.SubmitTask)
	v1.Get("/pool/stats", handlers.PoolStats)

	v1.Get("/cache/stats", handlers.CacheStats)
	v1.Get("/cache/:key", handlers.GetCacheEntry)
	v1.Put("/cache/:key", handlers.SetCacheEntry)
	v1.Delete("/cache/:key", handlers.DeleteCacheEntry)

	v1.Get("/audit", handlers.RecentAudit)
}

// openAPISpec returns a hand-built OpenAPI document, following the
// gateway's own hand-rolled /api-spec. It is not produced from the swag
// annotations on some of the handlers (no swag step runs in this
// repository) and covers only /v1/tasks and /v1/cache/{key}.
func openAPISpec() map[string]interface{} {
	return map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "taskcache demo API",
			"description": "Demonstration HTTP front end over the pool and cache packages",
			"version":     "1.0.0",
		},
		"servers": []map[string]interface{}{
			{"url": "http://localhost:8080", "description": "Local"},
		},
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"ApiKeyAuth": map[string]interface{}{
					"type": "apiKey",
					"in":   "header",
					"name": "X-API-Key",
				},
			},
		},
		"paths": map[string]interface{}{
			"/v1/tasks": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":  "Submit a task",
					"security": []map[string]interface{}{{"ApiKeyAuth": []string{}}},
					"requestBody": map[string]interface{}{
						"required": true,
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{
								"schema": map[string]interface{}{
									"type":     "object",
									"required": []string{"name"},
									"properties": map[string]interface{}{
										"name":    map[string]interface{}{"type": "string"},
										"work_ms": map[string]interface{}{"type": "integer"},
									},
								},
							},
						},
					},
					"responses": map[string]interface{}{
						"202": map[string]interface{}{"description": "Accepted"},
					},
				},
			},
			"/v1/cache/{key}": map[string]interface{}{
				"get":    map[string]interface{}{"summary": "Get a cache entry"},
				"put":    map[string]interface{}{"summary": "Set a cache entry"},
				"delete": map[string]interface{}{"summary": "Invalidate a cache entry"},
			},
		},
	}
}
