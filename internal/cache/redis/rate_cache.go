package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/detradefi/navoracle/internal/domain"
)

// RateCache implements domain.RateCache using Redis hashes. Each pair's
// rate is stored as a hash at key "rate:{base}:{quote}" with fields
// "rate" (decimal or fraction string) and "ts" (Unix nanosecond
// timestamp). Staleness is judged by the reader against its own TTL
// window, so entries carry their observation time instead of a Redis
// expiry.
type RateCache struct {
	rdb *redis.Client
}

// NewRateCache creates a RateCache backed by the given Client.
func NewRateCache(c *Client) *RateCache {
	return &RateCache{rdb: c.Underlying()}
}

func rateKey(base, quote string) string {
	return "rate:" + base + ":" + quote
}

// Put stores the observed rate for a pair.
func (rc *RateCache) Put(ctx context.Context, base, quote string, rate domain.CachedRate) error {
	key := rateKey(base, quote)
	fields := map[string]interface{}{
		"rate": rate.Rate,
		"ts":   strconv.FormatInt(rate.ObservedAt.UnixNano(), 10),
	}
	if err := rc.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis: put rate %s/%s: %w", base, quote, err)
	}
	return nil
}

// Get retrieves the cached rate for a pair. It returns
// domain.ErrNotFound when the pair has never been observed.
func (rc *RateCache) Get(ctx context.Context, base, quote string) (domain.CachedRate, error) {
	key := rateKey(base, quote)
	vals, err := rc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.CachedRate{}, fmt.Errorf("redis: get rate %s/%s: %w", base, quote, err)
	}
	if len(vals) == 0 {
		return domain.CachedRate{}, domain.ErrNotFound
	}

	rate, ok := vals["rate"]
	if !ok {
		return domain.CachedRate{}, domain.ErrNotFound
	}
	tsStr, ok := vals["ts"]
	if !ok {
		return domain.CachedRate{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.CachedRate{}, fmt.Errorf("redis: parse rate ts %s/%s: %w", base, quote, err)
	}

	return domain.CachedRate{Rate: rate, ObservedAt: time.Unix(0, tsNano)}, nil
}

// Compile-time interface check.
var _ domain.RateCache = (*RateCache)(nil)
