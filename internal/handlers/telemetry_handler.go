package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"groundstation/internal/middleware"
	"groundstation/internal/models"
	"groundstation/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// notAvailable marks a field the record did not carry.
const notAvailable = "N/A"

type TelemetryHandler struct {
	service service.TelemetryService
	logger  *zap.Logger
}

func NewTelemetryHandler(service service.TelemetryService, logger *zap.Logger) *TelemetryHandler {
	return &TelemetryHandler{service: service, logger: logger.Named("telemetry_handler")}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func (h *TelemetryHandler) readFailed(c *gin.Context, op string, err error) {
	h.logger.Error("telemetry read failed",
		zap.String("op", op),
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "failed to read telemetry",
		"message": err.Error(),
	})
}

// GetSnapshot returns the dashboard summary. Fields never reported are 0.
func (h *TelemetryHandler) GetSnapshot(c *gin.Context) {
	snap, err := h.service.LatestSnapshot(c.Request.Context())
	if err != nil {
		h.readFailed(c, "snapshot", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"temperature": valueOrZero(snap.Temperature),
		"humidity":    valueOrZero(snap.Humidity),
		"pressure":    valueOrZero(snap.Pressure),
		"location": gin.H{
			"lat": valueOrZero(snap.Latitude),
			"lon": valueOrZero(snap.Longitude),
		},
	})
}

func logEntry(record models.TelemetryRecord) gin.H {
	entry := gin.H{
		"id":        record.ID,
		"timestamp": record.RecordedAt.Format(time.RFC3339Nano),
		"source":    record.Source,
	}
	for _, f := range models.AllFields {
		if v := record.Get(f); v != nil {
			entry[string(f)] = *v
		} else {
			entry[string(f)] = notAvailable
		}
	}
	return entry
}

// GetLogs returns recent records newest first. A missing or invalid limit
// falls back to the configured default.
func (h *TelemetryHandler) GetLogs(c *gin.Context) {
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	records, err := h.service.RecentHistory(c.Request.Context(), limit)
	if err != nil {
		h.readFailed(c, "logs", err)
		return
	}

	entries := make([]gin.H, 0, len(records))
	for _, record := range records {
		entries = append(entries, logEntry(record))
	}
	c.JSON(http.StatusOK, entries)
}

func (h *TelemetryHandler) GetGyro(c *gin.Context) {
	orientation, err := h.service.LatestOrientation(c.Request.Context())
	if err != nil {
		h.readFailed(c, "gyro", err)
		return
	}
	if orientation == nil {
		c.JSON(http.StatusOK, gin.H{"roll": 0.0, "pitch": 0.0, "yaw": 0.0})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"roll":  orientation.Roll,
		"pitch": orientation.Pitch,
		"yaw":   orientation.Yaw,
	})
}

func parseDateRange(c *gin.Context) (from, to time.Time, ok bool) {
	var err error
	if fromStr := c.Query("from"); fromStr != "" {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid from date format, use YYYY-MM-DD",
			})
			return from, to, false
		}
	}

	if toStr := c.Query("to"); toStr != "" {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "invalid to date format, use YYYY-MM-DD",
			})
			return from, to, false
		}
		// the whole "to" day is included
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	return from, to, true
}

func (h *TelemetryHandler) ExportTelemetry(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")

	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}

	path, err := h.service.ExportTelemetry(c.Request.Context(), format, from, to)
	switch {
	case errors.Is(err, service.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unsupported format, use 'csv', 'xlsx' or 'json'",
		})
		return
	case errors.Is(err, service.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("telemetry export failed", zap.String("format", format), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to export telemetry",
			"message": err.Error(),
		})
		return
	}

	var contentType string
	switch filepath.Ext(path) {
	case ".csv":
		contentType = "text/csv"
	case ".xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".json":
		contentType = "application/json"
	default:
		contentType = "application/octet-stream"
	}

	c.Header("Content-Type", contentType)
	c.FileAttachment(path, filepath.Base(path))
}

func (h *TelemetryHandler) GetTelemetryHistory(c *gin.Context) {
	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	history, err := h.service.GetTelemetryHistory(c.Request.Context(), from, to)
	if err != nil {
		h.readFailed(c, "history", err)
		return
	}

	if len(history) > limit && limit > 0 {
		history = history[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"telemetry": history,
			"count":     len(history),
			"limit":     limit,
		},
	})
}
