package handlers

import (
	"github.com/gin-gonic/gin"

	"bread/internal/core/apperror"
	appctx "bread/internal/core/context"
	"bread/internal/domain/auth"
	"bread/internal/infrastructure/http/v1/dto"
	"bread/internal/metadata"
)

// MetadataHandler describes the registered models.
type MetadataHandler struct {
	*BaseHandler
	registry *metadata.Registry
}

// NewMetadataHandler creates a metadata handler.
func NewMetadataHandler(base *BaseHandler, registry *metadata.Registry) *MetadataHandler {
	return &MetadataHandler{
		BaseHandler: base,
		registry:    registry,
	}
}

func canView(c *gin.Context, m *metadata.Model) bool {
	return appctx.GetUser(c.Request.Context()).HasPermission(auth.Permission(m.App, "view", m.Name))
}

// ListModels returns the models the user may browse, without fields.
// GET /api/v1/meta
func (h *MetadataHandler) ListModels(c *gin.Context) {
	out := make([]dto.ModelResponse, 0)
	for _, m := range h.registry.Models() {
		if canView(c, m) {
			out = append(out, dto.FromModel(m))
		}
	}
	h.OK(c, out)
}

// GetModel returns the field descriptors of one model with their capabilities.
// GET /api/v1/meta/:model
func (h *MetadataHandler) GetModel(c *gin.Context) {
	key := c.Param("model")
	m, err := h.registry.Model(key)
	if err != nil {
		h.Error(c, apperror.NewNotFound("model", key))
		return
	}
	if !canView(c, m) {
		h.Error(c, apperror.NewForbidden("insufficient permissions").
			WithDetail("required_permission", auth.Permission(m.App, "view", m.Name)))
		return
	}
	fields, err := h.registry.Describe(key)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromModelFields(m, fields))
}
