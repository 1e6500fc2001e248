package resilience

import (
	"context"

	"github.com/richxcame/order-risk/pkg/logger"
	"go.uber.org/zap"
)

// FallbackFunc decides the result of a call the breaker rejected.
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// NoopFallback surfaces ErrCircuitOpen.
func NoopFallback(ctx context.Context, err error) (interface{}, error) {
	return nil, ErrCircuitOpen
}

// GracefulDegradation logs the rejection and surfaces ErrCircuitOpen so the
// caller can run its own degraded path.
func GracefulDegradation(dependency string) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		logger.WithContext(ctx).Warn("Circuit breaker open, dependency degraded",
			zap.String("dependency", dependency),
			zap.Error(err),
		)
		return nil, ErrCircuitOpen
	}
}
