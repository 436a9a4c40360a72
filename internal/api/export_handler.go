package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/role-assignment-api/internal/service"
)

// ExportHandler streams large result sets
type ExportHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(services *service.Services, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		services: services,
		log:      log.With().Str("handler", "export").Logger(),
	}
}

// StreamAttributions streams GET /role-attributions?format=json|ndjson|csv&status=
func (h *ExportHandler) StreamAttributions(c *gin.Context) {
	format := c.Query("format")
	status := c.Query("status")

	h.log.Info().
		Str("format", format).
		Str("status", status).
		Msg("Starting streaming export")

	err := h.services.Export.StreamAttributions(c.Request.Context(), c.Writer, status, format)
	if err == nil {
		return
	}

	var invalid *service.InvalidInputError
	if errors.As(err, &invalid) && !c.Writer.Written() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": invalid.Error(), "details": invalid.Errors})
		return
	}

	// Can't return error JSON after streaming has started
	h.log.Error().Err(err).Str("format", format).Msg("Export failed")
}
