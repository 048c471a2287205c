package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bread/internal/core/apperror"
	appctx "bread/internal/core/context"
	"bread/internal/core/id"
	"bread/internal/domain/auth"
	"bread/internal/infrastructure/http/v1/dto"
	"bread/internal/infrastructure/http/v1/middleware"
	"bread/internal/infrastructure/http/v1/pages"
	"bread/internal/infrastructure/http/v1/views"
)

// HomePath is where a login without a usable next parameter lands.
const HomePath = "/"

// AuthHandler handles the login form, logout and the token API.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		service:     service,
	}
}

func nextPath(c *gin.Context) string {
	next := c.Query(views.NextParam)
	if next == "" {
		next = c.PostForm(views.NextParam)
	}
	if views.IsLocalPath(next) {
		return next
	}
	return HomePath
}

// LoginPage handles GET /login
func (h *AuthHandler) LoginPage(c *gin.Context) {
	if appctx.GetUser(c.Request.Context()) != nil {
		c.Redirect(http.StatusFound, nextPath(c))
		return
	}
	h.HTML(c, http.StatusOK, "login", "Log in", pages.LoginContent{
		Action: middleware.LoginPath,
		Next:   c.Query(views.NextParam),
	})
}

// Login handles POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	content := pages.LoginContent{
		Action: middleware.LoginPath,
		Next:   c.PostForm(views.NextParam),
		Email:  c.PostForm("email"),
	}

	var creds auth.Credentials
	if err := c.ShouldBind(&creds); err != nil {
		content.Error = "Please enter your email and password."
		h.HTML(c, http.StatusUnauthorized, "login", "Log in", content)
		return
	}

	token, _, err := h.service.Login(c.Request.Context(), creds)
	if err != nil {
		appErr, _ := apperror.AsAppError(err)
		switch {
		case apperror.HasCode(err, apperror.CodeUnauthorized):
			content.Error = "Please enter a correct email and password."
		case apperror.HasCode(err, apperror.CodeForbidden):
			content.Error = appErr.Message
		default:
			h.Error(c, err)
			return
		}
		h.HTML(c, http.StatusUnauthorized, "login", "Log in", content)
		return
	}

	middleware.SetSession(c, token.AccessToken, token.ExpiresAt)
	c.Redirect(http.StatusSeeOther, nextPath(c))
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	middleware.ClearSession(c)
	pages.AddFlash(c, pages.FlashInfo, "You have been logged out.")
	c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

// APILogin handles POST /api/v1/auth/login
func (h *AuthHandler) APILogin(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	token, user, err := h.service.Login(c.Request.Context(), req.ToCredentials())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromToken(token, user))
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	ctx := c.Request.Context()

	userCtx := appctx.GetUser(ctx)
	if userCtx == nil {
		h.Error(c, apperror.NewUnauthorized("not authenticated"))
		return
	}
	userID, err := id.Parse(userCtx.UserID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid user id"))
		return
	}

	user, err := h.service.GetUserByID(ctx, userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromUser(user))
}
