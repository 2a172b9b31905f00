package controller

import (
	"context"
	"net/http"
	"time"

	"ojjudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultHealthTimeout = 2 * time.Second

// Pinger is any dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController reports dependency health.
type HealthController struct {
	deps    map[string]Pinger
	timeout time.Duration
}

// NewHealthController checks every named dependency on each request.
func NewHealthController(deps map[string]Pinger, timeout time.Duration) *HealthController {
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	return &HealthController{deps: deps, timeout: timeout}
}

// Register mounts /healthz on r.
func (h *HealthController) Register(r gin.IRouter) {
	r.GET("/healthz", h.Check)
}

// Check pings all dependencies; any failure answers 503.
func (h *HealthController) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.deps))
	healthy := true
	for name, dep := range h.deps {
		if dep == nil {
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			logger.Warn(ctx, "health check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy, "checks": checks})
}
