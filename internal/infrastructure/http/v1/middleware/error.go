package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"bread/internal/core/apperror"
	appctx "bread/internal/core/context"
	"bread/internal/infrastructure/http/v1/pages"
	"bread/pkg/logger"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/login"

// ErrorHandler middleware turns the last request error into a response:
// JSON for API clients, an HTML page for browsers. Unauthenticated browser
// requests are redirected to the login page. Internal errors are logged and
// never shown in detail.
func ErrorHandler(renderer *pages.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
			appErr = apperror.NewInternal(err)
		} else if appErr.Err != nil || appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error(c.Request.Context(), "request error",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}

		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		message := appErr.Message
		details := appErr.Details
		if status >= http.StatusInternalServerError {
			message = "Internal server error"
			details = map[string]any{"request_id": appctx.RequestID(c.Request.Context())}
		}

		if WantsJSON(c) {
			c.JSON(status, gin.H{
				"code":    appErr.Code,
				"message": message,
				"details": details,
			})
			return
		}

		if status == http.StatusUnauthorized && c.Request.Method == http.MethodGet {
			c.Redirect(http.StatusFound, LoginPath+"?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			return
		}

		content := pages.ErrorContent{
			Status:    status,
			Code:      appErr.Code,
			Message:   message,
			RequestID: appctx.RequestID(c.Request.Context()),
		}
		if fields, ok := apperror.GetFieldErrors(appErr); ok {
			content.Fields = fields
		}
		renderer.HTML(c, status, "error", http.StatusText(status), content)
	}
}

// WantsJSON reports whether the client asked for JSON rather than a page.
func WantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
