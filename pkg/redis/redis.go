package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/order-risk/pkg/config"
	"github.com/richxcame/order-risk/pkg/resilience"
)

// ErrCacheMiss is returned when a key does not exist.
var ErrCacheMiss = errors.New("redis: cache miss")

// ClientInterface is the subset of Redis used by the service.
type ClientInterface interface {
	GetString(ctx context.Context, key string) (string, error)
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Client wraps the Redis client
type Client struct {
	*redis.Client
}

var _ ClientInterface = (*Client)(nil)

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// SetWithExpiration sets a key-value pair with expiration
func (c *Client) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.Set(ctx, key, value, expiration).Err()
}

// GetString gets a string value by key. Missing keys return ErrCacheMiss.
func (c *Client) GetString(ctx context.Context, key string) (string, error) {
	value, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return value, err
}

// Delete deletes keys
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.Del(ctx, keys...).Err()
}

// Ping checks connectivity, for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *Client) Close() error {
	return c.Client.Close()
}

var nonRetryable = []string{
	"wrongtype", "err syntax", "err invalid", "noauth",
	"wrongpass", "noperm", "err unknown", "execabort",
}

// isRedisRetryable treats everything except misses, cancellation and
// command or auth errors as transient.
func isRedisRetryable(err error) bool {
	if err == nil ||
		errors.Is(err, redis.Nil) ||
		errors.Is(err, ErrCacheMiss) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range nonRetryable {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return true
}

// RetryConfig returns a short retry budget for cache calls on the request
// path.
func RetryConfig() resilience.RetryConfig {
	cfg := resilience.FastRetryConfig()
	cfg.MaxAttempts = 2
	cfg.InitialBackoff = 20 * time.Millisecond
	cfg.MaxBackoff = 100 * time.Millisecond
	cfg.RetryableChecker = isRedisRetryable
	return cfg
}
