package middleware

import (
	"context"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/order-risk/pkg/common"
	"github.com/richxcame/order-risk/pkg/logger"
	"go.uber.org/zap"
)

// PanicReporter forwards a recovered panic to an error tracker.
type PanicReporter func(ctx context.Context, recovered interface{}, stack []byte)

// Recovery middleware recovers from panics and answers 500.
func Recovery(reporters ...PanicReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				stack := debug.Stack()
				ctx := c.Request.Context()

				logger.WithContext(ctx).Error("Panic recovered",
					zap.Any("error", recovered),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
					zap.ByteString("stack", stack),
				)
				for _, report := range reporters {
					report(ctx, recovered, stack)
				}

				common.ErrorResponse(c, http.StatusInternalServerError, "internal server error")
				c.Abort()
			}
		}()

		c.Next()
	}
}
