// internal/handlers/health/health_handler.go
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"billing-service/internal/pkg/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	version string
	logger  *zap.Logger
}

func NewHealthHandler(db Pinger, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, version: version, logger: logger}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	data := gin.H{
		"status":  "ok",
		"version": h.version,
		"time":    time.Now().UTC(),
		"db":      "ok",
	}

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check: database unreachable", zap.Error(err))
		data["status"] = "degraded"
		data["db"] = "unreachable"
		response.Error(c, http.StatusServiceUnavailable, "service degraded", nil, data)
		return
	}

	response.Success(c, http.StatusOK, "service healthy", data)
}
