package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelys/promo-engine/internal/domain/coupon"
)

func TestCouponStore_CreateEnforcesUniqueness(t *testing.T) {
	s := NewCouponStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &coupon.Coupon{Code: "SAVE10", Kind: coupon.KindPercentage, Active: true}))

	err := s.Create(ctx, &coupon.Coupon{Code: "save10", Kind: coupon.KindPercentage, Active: true})
	require.ErrorIs(t, err, coupon.ErrCodeExists)

	got, err := s.FindByCode(ctx, "sAvE10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", got.Code)
}

func TestCouponStore_UpdatePreservesUsage(t *testing.T) {
	s := NewCouponStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &coupon.Coupon{
		Code: "ONCE", Kind: coupon.KindFixedAmount,
		Value: decimal.NewFromInt(5), Active: true, OneTimePerUser: true,
	}))
	_, err := s.Redeem(ctx, "ONCE", "u1")
	require.NoError(t, err)

	// An administrative update must not reset the bookkeeping, even if the
	// caller passes stale values.
	err = s.Update(ctx, &coupon.Coupon{
		Code: "ONCE", Kind: coupon.KindFixedAmount,
		Value: decimal.NewFromInt(7), Active: true, OneTimePerUser: true,
		UsageCount: 0, RedeemedBy: nil,
	})
	require.NoError(t, err)

	got, err := s.FindByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsageCount)
	assert.Equal(t, []string{"u1"}, got.RedeemedBy)
	assert.True(t, decimal.NewFromInt(7).Equal(got.Value))
}

func TestCouponStore_FindReturnsCopy(t *testing.T) {
	s := NewCouponStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &coupon.Coupon{
		Code: "SAVE10", Kind: coupon.KindPercentage, Active: true,
		AllowedUsers: []string{"u1"},
	}))

	got, err := s.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	got.Active = false
	got.AllowedUsers[0] = "mallory"

	again, err := s.FindByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.True(t, again.Active)
	assert.Equal(t, []string{"u1"}, again.AllowedUsers)
}

func TestCouponStore_ConcurrentRedeemNeverOvershoots(t *testing.T) {
	const (
		limit   = 10
		workers = 50
	)

	s := NewCouponStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &coupon.Coupon{
		Code: "LIMITED", Kind: coupon.KindPercentage,
		Value: decimal.NewFromInt(10), Active: true, UsageLimit: limit,
	}))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exhausted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.Redeem(ctx, "LIMITED", fmt.Sprintf("u%d", n))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, coupon.ErrUsageExhausted):
				exhausted++
			default:
				t.Errorf("unexpected redeem error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, limit, succeeded)
	assert.Equal(t, workers-limit, exhausted)

	got, err := s.FindByCode(ctx, "LIMITED")
	require.NoError(t, err)
	assert.Equal(t, limit, got.UsageCount)
}

func TestCouponStore_OneTimePerUser(t *testing.T) {
	s := NewCouponStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &coupon.Coupon{
		Code: "ONEUSE", Kind: coupon.KindFixedAmount,
		Value: decimal.NewFromInt(15), Active: true,
		OneTimePerUser: true, UsageLimit: 1,
	}))

	got, err := s.Redeem(ctx, "ONEUSE", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsageCount)
	assert.Equal(t, []string{"u1"}, got.RedeemedBy)

	// Same user again: blocked by the per-user rule.
	_, err = s.Redeem(ctx, "ONEUSE", "u1")
	require.ErrorIs(t, err, coupon.ErrAlreadyRedeemed)

	// Different user: blocked by the already-exhausted global limit.
	_, err = s.Redeem(ctx, "ONEUSE", "u2")
	require.ErrorIs(t, err, coupon.ErrUsageExhausted)

	got, err = s.FindByCode(ctx, "ONEUSE")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, got.RedeemedBy, "no duplicate entries")
}

func TestCouponStore_ConcurrentSameUserOneTime(t *testing.T) {
	const workers = 20

	s := NewCouponStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &coupon.Coupon{
		Code: "ONCE", Kind: coupon.KindPercentage,
		Value: decimal.NewFromInt(10), Active: true, OneTimePerUser: true,
	}))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Redeem(ctx, "ONCE", "u1"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)

	got, err := s.FindByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, got.RedeemedBy)
	assert.Equal(t, 1, got.UsageCount)
}

func TestCouponStore_RedeemInactive(t *testing.T) {
	s := NewCouponStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &coupon.Coupon{
		Code: "OFF", Kind: coupon.KindPercentage, Active: false,
	}))

	_, err := s.Redeem(ctx, "OFF", "u1")
	require.ErrorIs(t, err, coupon.ErrInactive)

	_, err = s.Redeem(ctx, "MISSING", "u1")
	require.ErrorIs(t, err, coupon.ErrNotFound)
}
