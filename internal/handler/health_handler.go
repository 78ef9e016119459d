package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-resource-api/internal/service"
	appErrors "github.com/noah-isme/edu-resource-api/pkg/errors"
	"github.com/noah-isme/edu-resource-api/pkg/response"
)

const readyTimeout = 2 * time.Second

type pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler exposes liveness, readiness and Prometheus endpoints.
type HealthHandler struct {
	metrics *service.MetricsService
	db      pinger
}

// NewHealthHandler constructs the handler. db may be nil when readiness
// should only reflect the process.
func NewHealthHandler(metrics *service.MetricsService, db pinger) *HealthHandler {
	return &HealthHandler{metrics: metrics, db: db}
}

// Health godoc
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	response.Message(c, http.StatusOK, "Server is running", gin.H{
		"status":  "ok",
		"metrics": h.metrics.Snapshot(),
	})
}

// Ready godoc
// @Summary Readiness probe
// @Tags Health
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			response.Error(c, appErrors.Wrap(err, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "database unavailable"))
			return
		}
	}
	response.Message(c, http.StatusOK, "ready", gin.H{"status": "ok"})
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *HealthHandler) Prometheus(c *gin.Context) {
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}
