package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/role-assignment-api/internal/models"
	"github.com/role-assignment-api/internal/service"
)

// RoleHandler handles role endpoints
type RoleHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewRoleHandler creates a new RoleHandler
func NewRoleHandler(services *service.Services, log zerolog.Logger) *RoleHandler {
	return &RoleHandler{
		services: services,
		log:      log.With().Str("handler", "role").Logger(),
	}
}

// List handles GET /roles
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.services.Role.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

// Get handles GET /roles/:id
func (h *RoleHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	role, err := h.services.Role.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// Create handles POST /roles
func (h *RoleHandler) Create(c *gin.Context) {
	var req models.RoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := h.services.Role.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

// Rename handles PATCH /roles/:id
func (h *RoleHandler) Rename(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.RoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := h.services.Role.Rename(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

// Delete handles DELETE /roles/:id
func (h *RoleHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.services.Role.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{Status: "deleted", ID: id})
}
