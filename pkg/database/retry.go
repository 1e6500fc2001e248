package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/richxcame/order-risk/pkg/resilience"
)

// SQLSTATE codes worth another attempt.
var retryableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"53000": true, // insufficient_resources
	"53300": true, // too_many_connections
	"53400": true, // configuration_limit_exceeded
	"08000": true, // connection_exception
	"08003": true, // connection_does_not_exist
	"08006": true, // connection_failure
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
	"58000": true, // system_error
	"XX000": true, // internal_error
}

var connectionMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"timeout",
	"too many connections",
	"server closed",
	"unexpected eof",
	"temporary failure",
}

// isPostgresRetryable reports whether err is a transient server or network
// failure. Constraint, data and syntax errors are not.
func isPostgresRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableCodes[pgErr.Code]
	}

	msg := strings.ToLower(err.Error())
	for _, m := range connectionMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// RetryConfig returns the retry policy for writes on the request path.
func RetryConfig() resilience.RetryConfig {
	cfg := resilience.FastRetryConfig()
	cfg.MaxAttempts = 3
	cfg.InitialBackoff = 25 * time.Millisecond
	cfg.MaxBackoff = 250 * time.Millisecond
	cfg.RetryableChecker = isPostgresRetryable
	return cfg
}
