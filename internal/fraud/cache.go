package fraud

import (
	"context"
	"errors"
	"strconv"
	"time"

	pkgredis "github.com/richxcame/order-risk/pkg/redis"
	"github.com/richxcame/order-risk/pkg/logger"
	"github.com/richxcame/order-risk/pkg/resilience"
	"go.uber.org/zap"
)

const (
	baselineKeyPrefix = "fraud:baseline:"
	// noBaseline marks a customer known to have no orders yet.
	noBaseline = "none"
)

// BaselineCache serves customer baselines from Redis and falls through to
// the wrapped source on a miss. Cache failures never fail the lookup.
type BaselineCache struct {
	source BaselineSource
	redis  pkgredis.ClientInterface
	ttl    time.Duration
	retry  resilience.RetryConfig
}

var _ BaselineSource = (*BaselineCache)(nil)

// NewBaselineCache wraps source with a Redis read-through cache.
func NewBaselineCache(source BaselineSource, client pkgredis.ClientInterface, ttl time.Duration) *BaselineCache {
	return &BaselineCache{
		source: source,
		redis:  client,
		ttl:    ttl,
		retry:  pkgredis.RetryConfig(),
	}
}

func baselineKey(customerID string) string {
	return baselineKeyPrefix + customerID
}

func (c *BaselineCache) AverageOrderValue(ctx context.Context, customerID string) (*float64, error) {
	key := baselineKey(customerID)
	log := logger.WithContext(ctx)

	cached, err := resilience.Retry(ctx, c.retry, func(ctx context.Context) (interface{}, error) {
		return c.redis.GetString(ctx, key)
	})
	switch {
	case err == nil:
		if v, ok := decodeBaseline(cached.(string)); ok {
			return v, nil
		}
		log.Warn("Discarding malformed cached baseline", zap.String("key", key))
	case errors.Is(err, pkgredis.ErrCacheMiss):
	default:
		log.Warn("Baseline cache read failed", zap.String("key", key), zap.Error(err))
	}

	avg, err := c.source.AverageOrderValue(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if err := c.redis.SetWithExpiration(ctx, key, encodeBaseline(avg), c.ttl); err != nil {
		log.Warn("Baseline cache write failed", zap.String("key", key), zap.Error(err))
	}
	return avg, nil
}

// Invalidate drops the cached baseline of a customer.
func (c *BaselineCache) Invalidate(ctx context.Context, customerID string) error {
	return c.redis.Delete(ctx, baselineKey(customerID))
}

func encodeBaseline(v *float64) string {
	if v == nil {
		return noBaseline
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func decodeBaseline(s string) (*float64, bool) {
	if s == noBaseline {
		return nil, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}
