package http

import (
	"net/http"
	"time"

	"reelgate/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	checker *monitoring.HealthChecker
	started time.Time
}

func NewHealthHandler(checker *monitoring.HealthChecker) *HealthHandler {
	if checker == nil {
		checker = monitoring.NewHealthChecker()
	}
	return &HealthHandler{checker: checker, started: time.Now()}
}

// Health is the liveness probe.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// Ready runs the dependency checks.
func (h *HealthHandler) Ready(c *gin.Context) {
	status := h.checker.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
