// Package memory provides mutex-guarded in-memory implementations of the
// storage interfaces. It backs the server when no database is configured and
// the unit tests throughout the repository.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/avelys/promo-engine/internal/domain/coupon"
)

// CouponStore is an in-memory coupon.Store. Redeem serializes through the
// store mutex, which makes the conditional increment-and-membership-check a
// single atomic step, the same contract the Postgres repository gets from its
// conditional UPDATE.
type CouponStore struct {
	mu      sync.RWMutex
	coupons map[string]*coupon.Coupon // keyed by normalized code
}

var _ coupon.Store = (*CouponStore)(nil)

// NewCouponStore creates an empty CouponStore.
func NewCouponStore() *CouponStore {
	return &CouponStore{coupons: make(map[string]*coupon.Coupon)}
}

// FindByCode returns a copy of the coupon so callers can never mutate
// stored state outside Redeem.
func (s *CouponStore) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.coupons[coupon.NormalizeCode(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return cloneCoupon(c), nil
}

// Redeem performs the conditional redemption under the store lock.
func (s *CouponStore) Redeem(_ context.Context, code, userID string) (*coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[coupon.NormalizeCode(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	if !c.Active {
		return nil, coupon.ErrInactive
	}
	// Already-redeemed before exhausted: a user retrying a spent one-time
	// coupon is told about their prior use, not the global budget.
	if c.OneTimePerUser && c.HasRedeemed(userID) {
		return nil, coupon.ErrAlreadyRedeemed
	}
	if c.UsageExhausted() {
		return nil, coupon.ErrUsageExhausted
	}

	c.UsageCount++
	if c.OneTimePerUser && !slices.Contains(c.RedeemedBy, userID) {
		c.RedeemedBy = append(c.RedeemedBy, userID)
	}
	c.UpdatedAt = time.Now().UTC()

	return cloneCoupon(c), nil
}

// Create stores a new coupon, enforcing case-insensitive code uniqueness.
func (s *CouponStore) Create(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := coupon.NormalizeCode(c.Code)
	if _, exists := s.coupons[key]; exists {
		return coupon.ErrCodeExists
	}

	stored := cloneCoupon(c)
	stored.Code = key
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.coupons[key] = stored
	return nil
}

// Update replaces the coupon's rule fields. Usage bookkeeping (UsageCount,
// RedeemedBy) is preserved from the stored record: only Redeem writes it.
func (s *CouponStore) Update(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := coupon.NormalizeCode(c.Code)
	existing, ok := s.coupons[key]
	if !ok {
		return coupon.ErrNotFound
	}

	updated := cloneCoupon(c)
	updated.Code = key
	updated.UsageCount = existing.UsageCount
	updated.RedeemedBy = slices.Clone(existing.RedeemedBy)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	s.coupons[key] = updated
	return nil
}

// Delete removes a coupon by code.
func (s *CouponStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := coupon.NormalizeCode(code)
	if _, ok := s.coupons[key]; !ok {
		return coupon.ErrNotFound
	}
	delete(s.coupons, key)
	return nil
}

// List returns copies of all stored coupons.
func (s *CouponStore) List(_ context.Context) ([]coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]coupon.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		out = append(out, *cloneCoupon(c))
	}
	return out, nil
}

func cloneCoupon(c *coupon.Coupon) *coupon.Coupon {
	clone := *c
	clone.RedeemedBy = slices.Clone(c.RedeemedBy)
	clone.ApplicableProducts = slices.Clone(c.ApplicableProducts)
	clone.ExcludedProducts = slices.Clone(c.ExcludedProducts)
	clone.ApplicableCategories = slices.Clone(c.ApplicableCategories)
	clone.AllowedUsers = slices.Clone(c.AllowedUsers)
	if c.ValidFrom != nil {
		t := *c.ValidFrom
		clone.ValidFrom = &t
	}
	if c.ValidUntil != nil {
		t := *c.ValidUntil
		clone.ValidUntil = &t
	}
	return &clone
}
