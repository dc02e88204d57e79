package coupon

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountKind enumerates the supported coupon discount strategies.
type DiscountKind string

const (
	// KindPercentage discounts a percentage of the cart subtotal,
	// optionally capped by MaxDiscount.
	KindPercentage DiscountKind = "percentage"
	// KindFixedAmount discounts a fixed monetary amount, never exceeding
	// the subtotal.
	KindFixedAmount DiscountKind = "fixed_amount"
	// KindFreeShipping waives the shipping cost. The merchandise discount
	// is always zero; Value carries the shipping-cost reference for the
	// checkout flow.
	KindFreeShipping DiscountKind = "free_shipping"
)

// Sentinel errors shared by all Repository implementations.
var (
	// ErrNotFound is returned when no coupon matches the given code.
	ErrNotFound = errors.New("coupon not found")
	// ErrCodeExists is returned on create/update when the normalized code
	// collides with an existing coupon.
	ErrCodeExists = errors.New("coupon code already exists")
	// ErrInactive is returned by Redeem when the coupon was disabled
	// between validation and redemption.
	ErrInactive = errors.New("coupon is inactive")
	// ErrUsageExhausted is returned by Redeem when the usage limit has
	// been reached.
	ErrUsageExhausted = errors.New("coupon usage limit reached")
	// ErrAlreadyRedeemed is returned by Redeem when a one-time-per-user
	// coupon has already been redeemed by the given user.
	ErrAlreadyRedeemed = errors.New("coupon already redeemed by user")
)

// Coupon is a stored promotional rule identified by a unique code.
//
// UsageCount and RedeemedBy are mutated exclusively through Repository.Redeem;
// administrative updates never touch them.
type Coupon struct {
	Code        string
	Kind        DiscountKind
	Value       decimal.Decimal
	Description string

	// MinPurchase is the minimum cart subtotal required to qualify.
	MinPurchase decimal.Decimal
	// MaxDiscount caps the computed discount for percentage coupons.
	// Zero means uncapped.
	MaxDiscount decimal.Decimal

	// Validity window [ValidFrom, ValidUntil). Nil means unbounded on
	// that side.
	ValidFrom  *time.Time
	ValidUntil *time.Time

	// Active is an administrator-controlled kill switch. It overrides
	// the time window in both directions: false always invalidates.
	Active bool

	// UsageLimit caps total redemptions; 0 means unlimited.
	UsageLimit int
	UsageCount int

	// OneTimePerUser restricts each user identity to a single redemption.
	OneTimePerUser bool
	// RedeemedBy lists user identities that committed a redemption.
	// Never contains duplicates.
	RedeemedBy []string

	// Scoping filters. Empty slices mean no restriction; exclusion takes
	// precedence over inclusion.
	ApplicableProducts   []string
	ExcludedProducts     []string
	ApplicableCategories []string

	// AllowedUsers restricts redemption to the listed user identities.
	// Empty means any user.
	AllowedUsers []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeCode canonicalizes a coupon code for storage and lookup.
// Codes are matched case-insensitively and stored upper-cased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// HasRedeemed reports whether the given user already committed a redemption.
func (c *Coupon) HasRedeemed(userID string) bool {
	return slices.Contains(c.RedeemedBy, userID)
}

// UsageExhausted reports whether the usage limit has been reached.
// A zero limit never exhausts.
func (c *Coupon) UsageExhausted() bool {
	return c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit
}

// State is the derived lifecycle state of a coupon at a given instant.
// It is always computed from stored fields, never persisted: time and
// concurrent redemptions continuously move it.
type State string

const (
	StateScheduled State = "scheduled"
	StateLive      State = "live"
	StateExpired   State = "expired"
	StateExhausted State = "exhausted"
	StateDisabled  State = "disabled"
)

// StateAt derives the lifecycle state of the coupon at the given instant.
func (c *Coupon) StateAt(now time.Time) State {
	switch {
	case !c.Active:
		return StateDisabled
	case c.ValidFrom != nil && now.Before(*c.ValidFrom):
		return StateScheduled
	case c.ValidUntil != nil && !now.Before(*c.ValidUntil):
		return StateExpired
	case c.UsageExhausted():
		return StateExhausted
	default:
		return StateLive
	}
}

// CartContext is the caller-supplied snapshot of a cart against which a
// coupon is evaluated. The engine never mutates it.
type CartContext struct {
	// Subtotal is the sum of line prices times quantities, using each
	// line's discounted unit price when present.
	Subtotal decimal.Decimal
	// UserID identifies the requesting user; empty for guest carts.
	UserID string
	Items  []CartItem
}

// CartItem carries the product identity needed for scoping checks.
type CartItem struct {
	ProductID string
	Category  string
}

// Repository provides the lookups and the atomic redemption primitive the
// engine needs.
type Repository interface {
	// FindByCode resolves a normalized code to a coupon, including
	// inactive ones (the engine reports Inactive as its own reason).
	// Returns ErrNotFound on a miss.
	FindByCode(ctx context.Context, code string) (*Coupon, error)

	// Redeem performs the conditional redemption as a single atomic
	// read-modify-write: increment UsageCount only while under the limit,
	// and record userID in RedeemedBy only when absent (one-time coupons
	// fail with ErrAlreadyRedeemed instead). Returns the updated coupon.
	Redeem(ctx context.Context, code, userID string) (*Coupon, error)
}

// Store extends Repository with the administrative operations used by the
// admin API and seed tooling. Create and Update enforce case-insensitive
// code uniqueness; Update never writes usage bookkeeping fields.
type Store interface {
	Repository

	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]Coupon, error)
}
