package cache

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/avelys/promo-engine/internal/domain/coupon"
)

// CachedStore decorates a coupon.Store with a read-through cache on
// FindByCode. Every mutation, redemption included, invalidates the cached
// entry; the conditional update at the storage layer stays the single
// source of truth for usage bookkeeping.
type CachedStore struct {
	store coupon.Store
	cache CouponCache
	ttl   time.Duration
}

var _ coupon.Store = (*CachedStore)(nil)

// NewCachedStore wraps store with the given cache. A non-positive ttl
// defaults to 30 seconds.
func NewCachedStore(store coupon.Store, cache CouponCache, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedStore{store: store, cache: cache, ttl: ttl}
}

// FindByCode serves from the cache when possible. Cache failures degrade to
// a direct store read; they are logged, never surfaced.
func (s *CachedStore) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	cached, ok, err := s.cache.Get(ctx, code)
	if err != nil {
		zctx.From(ctx).Warn("coupon cache read failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	c, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, c, s.ttl); err != nil {
		zctx.From(ctx).Warn("coupon cache write failed", zap.Error(err))
	}
	return c, nil
}

// Redeem delegates to the store's atomic redemption and drops the cached
// entry so subsequent evaluations see the new usage state promptly.
func (s *CachedStore) Redeem(ctx context.Context, code, userID string) (*coupon.Coupon, error) {
	c, err := s.store.Redeem(ctx, code, userID)
	if invErr := s.cache.Invalidate(ctx, code); invErr != nil {
		zctx.From(ctx).Warn("coupon cache invalidation failed", zap.Error(invErr))
	}
	return c, err
}

func (s *CachedStore) Create(ctx context.Context, c *coupon.Coupon) error {
	if err := s.store.Create(ctx, c); err != nil {
		return err
	}
	return s.invalidate(ctx, c.Code)
}

func (s *CachedStore) Update(ctx context.Context, c *coupon.Coupon) error {
	if err := s.store.Update(ctx, c); err != nil {
		return err
	}
	return s.invalidate(ctx, c.Code)
}

func (s *CachedStore) Delete(ctx context.Context, code string) error {
	if err := s.store.Delete(ctx, code); err != nil {
		return err
	}
	return s.invalidate(ctx, code)
}

func (s *CachedStore) List(ctx context.Context) ([]coupon.Coupon, error) {
	return s.store.List(ctx)
}

func (s *CachedStore) invalidate(ctx context.Context, code string) error {
	if err := s.cache.Invalidate(ctx, code); err != nil {
		zctx.From(ctx).Warn("coupon cache invalidation failed", zap.Error(err))
	}
	return nil
}
