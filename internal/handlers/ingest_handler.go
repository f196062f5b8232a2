package handlers

import (
	"net/http"

	"groundstation/internal/middleware"
	"groundstation/internal/parser"
	"groundstation/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type IngestHandler struct {
	ingest service.IngestService
	logger *zap.Logger
}

func NewIngestHandler(ingest service.IngestService, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{ingest: ingest, logger: logger.Named("ingest_handler")}
}

type dataRequest struct {
	Data string `json:"data" binding:"required"`
}

func (h *IngestHandler) respond(c *gin.Context, source parser.Source, payload []byte) {
	if _, err := h.ingest.Ingest(c.Request.Context(), source, payload); err != nil {
		if service.IsRejected(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("failed to store payload",
			zap.String("source", string(source)),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store telemetry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PostData accepts one delimited line from the LoRa receiver wrapped as
// {"data": "..."}.
func (h *IngestHandler) PostData(c *gin.Context) {
	var req dataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"data\": \"<line>\"}"})
		return
	}

	h.respond(c, parser.SourceLoRa, []byte(req.Data))
}

// PostUpload accepts a flat JSON object from the GPS uplink.
func (h *IngestHandler) PostUpload(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty request body"})
		return
	}

	h.respond(c, parser.SourceGPS, body)
}
