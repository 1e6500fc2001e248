package health

import (
	"context"
	"errors"
	"time"
)

// Checker reports the health of one dependency.
type Checker func() error

// Pinger is satisfied by pgxpool.Pool and the redis wrapper.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckerConfig holds settings shared by checkers.
type CheckerConfig struct {
	Timeout time.Duration
}

// DefaultCheckerConfig returns a 2 second probe timeout.
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{Timeout: 2 * time.Second}
}

// PingChecker probes p with the default timeout.
func PingChecker(name string, p Pinger) Checker {
	return PingCheckerWithConfig(name, p, DefaultCheckerConfig())
}

// PingCheckerWithConfig probes p with the configured timeout.
func PingCheckerWithConfig(name string, p Pinger, config CheckerConfig) Checker {
	return func() error {
		if p == nil {
			return errors.New(name + " connection is nil")
		}
		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		defer cancel()
		return p.Ping(ctx)
	}
}

// StatusChecker wraps a connection status probe, such as a NATS
// connection's IsConnected.
func StatusChecker(name string, connected func() bool) Checker {
	return func() error {
		if connected == nil || !connected() {
			return errors.New(name + " is not connected")
		}
		return nil
	}
}
