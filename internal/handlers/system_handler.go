package handlers

import (
	"context"
	"net/http"
	"time"

	"groundstation/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// StatsSource returns a flat set of backend metrics.
type StatsSource func(ctx context.Context) (map[string]string, error)

type SystemHandler struct {
	telemetry  service.TelemetryService
	checks     map[string]HealthCheck
	redisStats StatsSource
	workers    map[string]bool
	logger     *zap.Logger
	started    time.Time
}

func NewSystemHandler(
	telemetry service.TelemetryService,
	checks map[string]HealthCheck,
	redisStats StatsSource,
	workers map[string]bool,
	logger *zap.Logger,
) *SystemHandler {
	return &SystemHandler{
		telemetry:  telemetry,
		checks:     checks,
		redisStats: redisStats,
		workers:    workers,
		logger:     logger.Named("system_handler"),
		started:    time.Now(),
	}
}

// Health reports 200 when every dependency answers and 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	services := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("service", name), zap.Error(err))
			services[name] = "unavailable"
			status = "degraded"
			continue
		}
		services[name] = "connected"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"services":  services,
	})
}

func (h *SystemHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.telemetry.Stats(ctx)
	if err != nil {
		h.logger.Error("failed to read telemetry stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to read stats",
			"message": err.Error(),
		})
		return
	}

	var redisStats map[string]string
	if h.redisStats != nil {
		redisStats, err = h.redisStats(ctx)
		if err != nil {
			h.logger.Warn("failed to read redis stats", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"database": gin.H{
			"telemetry_records": stats.Records,
		},
		"ingested": stats.Ingested,
		"redis":    redisStats,
		"workers":  h.workers,
	})
}
