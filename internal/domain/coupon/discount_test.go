package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		coupon   *Coupon
		subtotal decimal.Decimal
		want     decimal.Decimal
	}{
		{
			name:     "percentage of subtotal",
			coupon:   &Coupon{Kind: KindPercentage, Value: decimal.NewFromInt(10)},
			subtotal: decimal.NewFromInt(200),
			want:     decimal.NewFromInt(20),
		},
		{
			name: "percentage clamped to max discount",
			coupon: &Coupon{
				Kind: KindPercentage, Value: decimal.NewFromInt(10),
				MaxDiscount: decimal.NewFromInt(20),
			},
			subtotal: decimal.NewFromInt(300),
			want:     decimal.NewFromInt(20),
		},
		{
			name: "percentage under the cap is untouched",
			coupon: &Coupon{
				Kind: KindPercentage, Value: decimal.NewFromInt(10),
				MaxDiscount: decimal.NewFromInt(20),
			},
			subtotal: decimal.NewFromInt(150),
			want:     decimal.NewFromInt(15),
		},
		{
			name:     "percentage rounds to cents",
			coupon:   &Coupon{Kind: KindPercentage, Value: decimal.NewFromInt(10)},
			subtotal: decimal.RequireFromString("33.33"),
			want:     decimal.RequireFromString("3.33"),
		},
		{
			name:     "hundred percent discounts everything",
			coupon:   &Coupon{Kind: KindPercentage, Value: decimal.NewFromInt(100)},
			subtotal: decimal.RequireFromString("59.90"),
			want:     decimal.RequireFromString("59.90"),
		},
		{
			name:     "fixed amount below subtotal",
			coupon:   &Coupon{Kind: KindFixedAmount, Value: decimal.NewFromInt(15)},
			subtotal: decimal.NewFromInt(100),
			want:     decimal.NewFromInt(15),
		},
		{
			name:     "fixed amount capped at subtotal",
			coupon:   &Coupon{Kind: KindFixedAmount, Value: decimal.NewFromInt(15)},
			subtotal: decimal.NewFromInt(9),
			want:     decimal.NewFromInt(9),
		},
		{
			name:     "fixed amount on empty cart",
			coupon:   &Coupon{Kind: KindFixedAmount, Value: decimal.NewFromInt(15)},
			subtotal: decimal.Zero,
			want:     decimal.Zero,
		},
		{
			name:     "free shipping has no merchandise discount",
			coupon:   &Coupon{Kind: KindFreeShipping, Value: decimal.NewFromInt(5)},
			subtotal: decimal.NewFromInt(100),
			want:     decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.coupon, tt.subtotal)

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestCompute_UnknownKind(t *testing.T) {
	_, err := Compute(&Coupon{Kind: "bogo"}, decimal.NewFromInt(100))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported discount kind")
}
