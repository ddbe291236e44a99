package handler

import (
	"context"
	"net/http"

	"github.com/ErlanBelekov/quicksand/internal/health"
	"github.com/gin-gonic/gin"
)

type readinessChecker interface {
	Readiness(ctx context.Context) health.HealthResult
}

type HealthHandler struct {
	checker readinessChecker
}

func NewHealthHandler(checker readinessChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// GET /health/
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Quicksand is up"})
}

// GET /readyz
func (h *HealthHandler) Ready(c *gin.Context) {
	result := h.checker.Readiness(c.Request.Context())
	if result.Status != "up" {
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
