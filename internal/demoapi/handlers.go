// Package demoapi exposes pool.Pool and cache.Cache over HTTP so the
// two cores this module builds can be driven interactively, the same
// role the gateway's internal/api package played for its message send
// path — just fronting a worker pool and a cache instead of an SMS
// provider.
package demoapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskcache/cache"
	"taskcache/internal/auditlog"
	"taskcache/internal/runtimecache"
	"taskcache/pool"
)

// Handlers holds every dependency a route needs. audit and backed are
// optional (nil when Postgres/Redis aren't configured) — every handler
// degrades gracefully rather than 500ing when a demo is run with
// nothing but the in-process pool and cache.
type Handlers struct {
	logger *zap.Logger
	pool   *pool.Pool
	cache  *cache.Cache
	backed *runtimecache.BackedCache // nil if REDIS_URL unset
	audit  *auditlog.Store           // nil if POSTGRES_URL unset
}

func NewHandlers(logger *zap.Logger, p *pool.Pool, c *cache.Cache, backed *runtimecache.BackedCache, audit *auditlog.Store) *Handlers {
	return &Handlers{logger: logger, pool: p, cache: c, backed: backed, audit: audit}
}

// TaskRequest describes a unit of simulated work: sleep for WorkMs then
// report completion, standing in for "whatever closure a real caller
// would submit" since a task body can't be expressed in JSON.
type TaskRequest struct {
	Name   string `json:"name"`
	WorkMs int    `json:"work_ms"`
}

// SubmitTask handles POST /v1/tasks.
//
//	@Summary		Submit a task
//	@Description	Submits a simulated unit of work to the pool
//	@Tags			Tasks
//	@Accept			json
//	@Produce		json
//	@Param			request	body		TaskRequest	true	"task request"
//	@Success		202		{object}	map[string]interface{}
//	@Failure		400		{object}	map[string]string
//	@Failure		503		{object}	map[string]string
//	@Router			/v1/tasks [post]
func (h *Handlers) SubmitTask(c *fiber.Ctx) error {
	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}
	if req.WorkMs < 0 || req.WorkMs > 60_000 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "work_ms out of range"})
	}

	correlationID := uuid.New()
	name, workMs := req.Name, req.WorkMs

	accepted := h.pool.Submit(func() {
		if workMs > 0 {
			time.Sleep(time.Duration(workMs) * time.Millisecond)
		}
		h.logger.Debug("task finished",
			zap.String("correlation_id", correlationID.String()),
			zap.String("name", name))

		if h.audit != nil {
			stats := h.pool.Stats()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.audit.Record(ctx, correlationID, "task", name, stats.Submitted, stats.Executed, stats.Stolen); err != nil {
				h.logger.Warn("failed to record task audit row", zap.Error(err))
			}
		}
	})

	if !accepted {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "pool is shutting down"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"correlation_id": correlationID,
		"status":         "queued",
	})
}

// PoolStats handles GET /v1/pool/stats.
func (h *Handlers) PoolStats(c *fiber.Ctx) error {
	return c.JSON(h.pool.Stats())
}

// CacheEntryRequest is the body for PUT /v1/cache/:key.
type CacheEntryRequest struct {
	Value   string `json:"value"`
	TTLSecs int    `json:"ttl_seconds,omitempty"`
}

// GetCacheEntry handles GET /v1/cache/:key.
//
//	@Summary		Get a cache entry
//	@Tags			Cache
//	@Produce		json
//	@Param			key	path		string	true	"cache key"
//	@Success		200	{object}	map[string]interface{}
//	@Failure		404	{object}	map[string]string
//	@Router			/v1/cache/{key} [get]
func (h *Handlers) GetCacheEntry(c *fiber.Ctx) error {
	key := c.Params("key")

	if h.backed != nil {
		if val, ok := h.backed.Get(c.Context(), []byte(key)); ok {
			return c.JSON(fiber.Map{"key": key, "value": string(val)})
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}

	ref, ok := h.cache.Get([]byte(key))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	defer ref.Release()
	return c.JSON(fiber.Map{"key": key, "value": string(ref.Value())})
}

// SetCacheEntry handles PUT /v1/cache/:key.
//
//	@Summary		Set a cache entry
//	@Tags			Cache
//	@Accept			json
//	@Produce		json
//	@Param			key		path	string				true	"cache key"
//	@Param			request	body	CacheEntryRequest	true	"value and optional ttl"
//	@Success		204
//	@Failure		400	{object}	map[string]string
//	@Router			/v1/cache/{key} [put]
func (h *Handlers) SetCacheEntry(c *fiber.Ctx) error {
	key := c.Params("key")
	var req CacheEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	ttl := time.Duration(req.TTLSecs) * time.Second

	if h.backed != nil {
		h.backed.Set(c.Context(), []byte(key), []byte(req.Value), ttl)
		return c.SendStatus(fiber.StatusNoContent)
	}

	if !h.cache.Set([]byte(key), []byte(req.Value), ttl) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid key"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteCacheEntry handles DELETE /v1/cache/:key.
func (h *Handlers) DeleteCacheEntry(c *fiber.Ctx) error {
	key := c.Params("key")
	if h.backed != nil {
		h.backed.Invalidate(c.Context(), []byte(key))
	} else {
		h.cache.Invalidate([]byte(key))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CacheStats handles GET /v1/cache/stats.
func (h *Handlers) CacheStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"size":     h.cache.Size(),
		"capacity": h.cache.Capacity(),
	})
}

// RecentAudit handles GET /v1/audit.
func (h *Handlers) RecentAudit(c *fiber.Ctx) error {
	if h.audit == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "audit log not configured"})
	}
	n := c.QueryInt("n", 50)
	entries, err := h.audit.Recent(c.Context(), n)
	if err != nil {
		h.logger.Error("failed to list audit entries", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	return c.JSON(entries)
}

// HealthCheck handles GET /healthz: the process is up.
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy", "timestamp": time.Now().Unix()})
}

// ReadyCheck handles GET /readyz: the pool has at least one worker and
// the cache is reachable. Backing services, if configured, are not
// re-checked per request — their own health checks run at startup and
// on their own reconnect loops.
func (h *Handlers) ReadyCheck(c *fiber.Ctx) error {
	stats := h.pool.Stats()
	if stats.Workers == 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}
