// Package cache provides a read-through cache for coupon lookups on the hot
// validate path. Cached records may be a few seconds stale on usage counters;
// that is acceptable because redemption re-validates atomically at the
// storage layer, never against the cache.
package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/avelys/promo-engine/internal/domain/coupon"
)

const keyPrefix = "coupon:"

// CouponCache stores coupon records by normalized code.
type CouponCache interface {
	Get(ctx context.Context, code string) (*coupon.Coupon, bool, error)
	Set(ctx context.Context, c *coupon.Coupon, ttl time.Duration) error
	Invalidate(ctx context.Context, code string) error
}

// NoopCouponCache disables caching. Used when Redis is not configured.
type NoopCouponCache struct{}

func (NoopCouponCache) Get(_ context.Context, _ string) (*coupon.Coupon, bool, error) {
	return nil, false, nil
}

func (NoopCouponCache) Set(_ context.Context, _ *coupon.Coupon, _ time.Duration) error {
	return nil
}

func (NoopCouponCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

// RedisCouponCache implements CouponCache on Redis with JSON payloads.
type RedisCouponCache struct {
	client *redis.Client
}

var _ CouponCache = (*RedisCouponCache)(nil)

// NewRedisCouponCache creates a RedisCouponCache for the given address.
func NewRedisCouponCache(addr, password string, db int) *RedisCouponCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCouponCache{client: client}
}

// Ping checks connectivity; wired into the readiness probe.
func (c *RedisCouponCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (c *RedisCouponCache) Close() error {
	return c.client.Close()
}

func (c *RedisCouponCache) Get(ctx context.Context, code string) (*coupon.Coupon, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+coupon.NormalizeCode(code)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cp coupon.Coupon
	if err := json.Unmarshal([]byte(val), &cp); err != nil {
		return nil, false, err
	}
	return &cp, true, nil
}

func (c *RedisCouponCache) Set(ctx context.Context, cp *coupon.Coupon, ttl time.Duration) error {
	if cp == nil {
		return nil
	}
	payload, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+coupon.NormalizeCode(cp.Code), payload, ttl).Err()
}

func (c *RedisCouponCache) Invalidate(ctx context.Context, code string) error {
	return c.client.Del(ctx, keyPrefix+coupon.NormalizeCode(code)).Err()
}
