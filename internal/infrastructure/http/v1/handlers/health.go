package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/infrastructure/storage/postgres"
)

// Pinger checks that the storage answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AppInfo is reported by GET /health/info.
type AppInfo struct {
	Name    string
	Version string
	Env     string
	Driver  string
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db   Pinger
	pool *postgres.Pool // nil with the in-memory driver
	info AppInfo
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Pinger, pool *postgres.Pool, info AppInfo) *HealthHandler {
	return &HealthHandler{db: db, pool: pool, info: info}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	body := gin.H{
		"app":     h.info.Name,
		"version": h.info.Version,
		"env":     h.info.Env,
		"driver":  h.info.Driver,
	}
	if h.pool != nil {
		stat := h.pool.Stats()
		body["database"] = map[string]any{
			"totalConns":    stat.TotalConns,
			"acquiredConns": stat.AcquiredConns,
			"idleConns":     stat.IdleConns,
			"maxConns":      stat.MaxConns,
		}
	}
	c.JSON(http.StatusOK, body)
}
