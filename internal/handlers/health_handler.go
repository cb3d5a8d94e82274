package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by the audit database
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and the audit store status
type HealthHandler struct {
	auditDB Pinger // nil when audit entries go to the log
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(auditDB Pinger, version string) *HealthHandler {
	return &HealthHandler{auditDB: auditDB, version: version}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	if h.auditDB == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"audit_store": "log",
			"version":     h.version,
			"timestamp":   time.Now().Unix(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.auditDB.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":      "unhealthy",
			"audit_store": "postgres",
			"database":    "unhealthy",
			"error":       err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"audit_store": "postgres",
		"database":    "healthy",
		"version":     h.version,
		"timestamp":   time.Now().Unix(),
	})
}
