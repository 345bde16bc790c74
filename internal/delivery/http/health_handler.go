package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	dbPing    func() error
	redisPing func() error
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. Ping functions may be
// nil, in which case the service is reported as ok.
func NewHealthHandler(dbPing, redisPing func() error, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{dbPing: dbPing, redisPing: redisPing, logger: logger}
}

// Health handles GET /api/v1/health
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	services := gin.H{}

	check := func(name string, ping func() error) {
		if ping == nil {
			services[name] = "ok"
			return
		}
		if err := ping(); err != nil {
			h.logger.Warn("Health check failed", zap.String("service", name), zap.Error(err))
			services[name] = "unreachable"
			status = http.StatusServiceUnavailable
			return
		}
		services[name] = "ok"
	}

	check("postgres", h.dbPing)
	check("redis", h.redisPing)

	body := gin.H{"status": "ok", "services": services}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}
