package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/order-risk/pkg/logger"
	"go.uber.org/zap"
)

// RequestLogger logs completed HTTP requests. Paths in skip, such as probes
// and the metrics endpoint, are not logged.
func RequestLogger(skip ...string) gin.HandlerFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skipped[path] {
			c.Next()
			return
		}
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("route", c.FullPath()),
			zap.String("ip", c.ClientIP()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
		}

		reqLogger := logger.WithContext(c.Request.Context())
		switch {
		case len(c.Errors) > 0:
			reqLogger.Error("Request completed with errors", append(fields, zap.String("errors", c.Errors.String()))...)
		case c.Writer.Status() >= 500:
			reqLogger.Warn("Request failed", fields...)
		default:
			reqLogger.Info("Request completed", fields...)
		}
	}
}
