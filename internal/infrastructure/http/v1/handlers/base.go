package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bread/internal/core/apperror"
	appctx "bread/internal/core/context"
	"bread/internal/infrastructure/http/v1/dto"
	"bread/internal/infrastructure/http/v1/pages"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct {
	renderer *pages.Renderer
}

// NewBaseHandler creates a new base handler.
func NewBaseHandler(renderer *pages.Renderer) *BaseHandler {
	return &BaseHandler{renderer: renderer}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers err on the Gin context and aborts the request.
// The response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// ParseIntQuery parses integer query parameter with default value.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// GetUserID extracts user ID from request context.
func (h *BaseHandler) GetUserID(c *gin.Context) string {
	return appctx.GetUserID(c.Request.Context())
}

// HTML renders a page.
func (h *BaseHandler) HTML(c *gin.Context, status int, name, title string, content any) {
	h.renderer.HTML(c, status, name, title, content)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Success sends success response.
func (h *BaseHandler) Success(c *gin.Context, message string) {
	c.JSON(http.StatusOK, dto.SuccessResponse{Success: true, Message: message})
}
