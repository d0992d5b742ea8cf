package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kandev/orchestrator-worker/internal/common/errors"
	"github.com/kandev/orchestrator-worker/internal/common/logger"
)

// StatusProvider reports whether the worker is currently dispatching
// work, so /status can say more than just "the process is up".
type StatusProvider interface {
	Running() bool
}

// NewRouter builds the worker's admin HTTP surface: /healthz (liveness),
// /readyz (readiness, gated on status.Running()), and /status (a small
// JSON summary).
func NewRouter(status StatusProvider, log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(RequestLogger(log), Recovery(log), ErrorHandler(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/readyz", func(c *gin.Context) {
		if !status.Running() {
			appErr := errors.ServiceUnavailable("orchestrator-worker")
			c.JSON(errors.GetHTTPStatus(appErr), gin.H{
				"error": gin.H{"code": appErr.Code, "message": appErr.Message},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"running": status.Running()})
	})

	return r
}
