package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/role-assignment-api/internal/models"
	"github.com/role-assignment-api/internal/service"
)

// AttributionHandler handles role attribution endpoints
type AttributionHandler struct {
	services *service.Services
	export   *ExportHandler
	log      zerolog.Logger
}

// NewAttributionHandler creates a new AttributionHandler
func NewAttributionHandler(services *service.Services, export *ExportHandler, log zerolog.Logger) *AttributionHandler {
	return &AttributionHandler{
		services: services,
		export:   export,
		log:      log.With().Str("handler", "attribution").Logger(),
	}
}

// List handles GET /role-attributions?status=&format=. An explicit format
// streams the result instead of buffering it.
func (h *AttributionHandler) List(c *gin.Context) {
	if c.Query("format") != "" {
		h.export.StreamAttributions(c)
		return
	}

	attrs, err := h.services.Attribution.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, attrs)
}

// Create handles POST /role-attributions
func (h *AttributionHandler) Create(c *gin.Context) {
	var req models.AttributionRequest
	if !bindJSON(c, &req) {
		return
	}
	attr, err := h.services.Attribution.Assign(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, attr)
}

// Remove handles DELETE /users/:id/roles/:role_id
func (h *AttributionHandler) Remove(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	roleID, ok := pathID(c, "role_id")
	if !ok {
		return
	}
	if err := h.services.Attribution.Remove(c.Request.Context(), userID, roleID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "deleted", UserID: userID, RoleID: roleID})
}

// Delete handles DELETE /role-attributions/:id
func (h *AttributionHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.services.Attribution.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "deleted", ID: id})
}
