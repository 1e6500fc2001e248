package fraud

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/richxcame/order-risk/pkg/logger"
	"go.uber.org/zap"
)

// ErrorReporter forwards failures that were absorbed instead of returned,
// so they still reach whoever watches errors.
type ErrorReporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

// SentryReporter sends errors to Sentry, on the request hub when the
// request carries one.
type SentryReporter struct{}

func (SentryReporter) Report(ctx context.Context, err error, tags map[string]string) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if id := logger.CorrelationID(ctx); id != "" {
			scope.SetTag("correlation_id", id)
		}
		hub.CaptureException(err)
	})
}

// LogReporter only logs.
type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, err error, tags map[string]string) {
	fields := make([]zap.Field, 0, len(tags)+1)
	fields = append(fields, zap.Error(err))
	for k, v := range tags {
		fields = append(fields, zap.String(k, v))
	}
	logger.WithContext(ctx).Error("Absorbed failure", fields...)
}
