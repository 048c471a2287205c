package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bread/pkg/logger"
)

// Logger puts log into the request context and writes one entry per request.
// Health probes are logged at debug level, server errors at error level.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))

		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			kv = append(kv, "query", q)
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "error", c.Errors.String())
		}

		entry := log.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			entry.Errorw("http request", kv...)
		case strings.HasPrefix(c.Request.URL.Path, "/health/"):
			entry.Debugw("http request", kv...)
		default:
			entry.Infow("http request", kv...)
		}
	}
}
