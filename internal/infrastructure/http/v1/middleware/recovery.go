// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"bread/internal/core/apperror"
	"bread/pkg/logger"
)

// Recovery turns a panic into an internal error for ErrorHandler, which must
// therefore come earlier in the chain. The stack is logged, never rendered.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				"panic", r,
				"route", c.FullPath(),
				"stack", string(debug.Stack()),
			)
			_ = c.Error(apperror.NewInternal(fmt.Errorf("panic in %s %s: %v", c.Request.Method, c.FullPath(), r)))
			c.Abort()
		}()
		c.Next()
	}
}
