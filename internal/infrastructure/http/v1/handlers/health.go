// Package handlers provides the HTTP handlers that are not generated from
// models: health probes, login, model metadata and reports.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bread/internal/infrastructure/http/v1/dto"
	"bread/internal/infrastructure/storage/postgres"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	pool    *postgres.Pool
	version string
}

// NewHealthHandler creates a new health handler. pool is nil when records
// are kept in memory.
func NewHealthHandler(pool *postgres.Pool, version string) *HealthHandler {
	return &HealthHandler{pool: pool, version: version}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.pool == nil {
		c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok", Checks: map[string]string{"storage": "memory"}})
		return
	}
	if err := h.pool.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.HealthResponse{
			Status: "error",
			Checks: map[string]string{"database": "unhealthy: " + err.Error()},
		})
		return
	}
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok", Checks: map[string]string{"database": "healthy"}})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"app":     "bread",
		"version": h.version,
		"storage": "memory",
	}
	if h.pool != nil {
		stat := h.pool.Stat()
		info["storage"] = "postgres"
		info["database"] = map[string]any{
			"total_conns":    stat.TotalConns(),
			"acquired_conns": stat.AcquiredConns(),
			"idle_conns":     stat.IdleConns(),
			"max_conns":      stat.MaxConns(),
		}
	}
	c.JSON(http.StatusOK, info)
}
