package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelys/promo-engine/internal/domain/coupon"
)

const couponColumns = `code, kind, value, description, min_purchase, max_discount,
	valid_from, valid_until, active, usage_limit, usage_count,
	one_time_per_user, redeemed_by, applicable_products, excluded_products,
	applicable_categories, allowed_users, created_at, updated_at`

const (
	getCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	// redeemCouponSQL is the single atomic read-modify-write behind Commit.
	// The WHERE clause is the compare half of the compare-and-swap: two
	// concurrent redemptions racing near the usage limit cannot both match,
	// so the limit is never overshot and redeemed_by never gets duplicates.
	redeemCouponSQL = `UPDATE coupons SET
			usage_count = usage_count + 1,
			redeemed_by = CASE WHEN one_time_per_user
				THEN array_append(redeemed_by, $2)
				ELSE redeemed_by END,
			updated_at = now()
		WHERE UPPER(code) = UPPER($1)
			AND active
			AND (usage_limit = 0 OR usage_count < usage_limit)
			AND NOT (one_time_per_user AND $2 = ANY(redeemed_by))
		RETURNING ` + couponColumns

	insertCouponSQL = `INSERT INTO coupons
			(code, kind, value, description, min_purchase, max_discount,
			valid_from, valid_until, active, usage_limit, one_time_per_user,
			applicable_products, excluded_products, applicable_categories,
			allowed_users)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	// Rule fields only: usage_count and redeemed_by are owned by the
	// redemption update and never written here.
	updateCouponSQL = `UPDATE coupons SET
			kind = $2, value = $3, description = $4, min_purchase = $5,
			max_discount = $6, valid_from = $7, valid_until = $8, active = $9,
			usage_limit = $10, one_time_per_user = $11,
			applicable_products = $12, excluded_products = $13,
			applicable_categories = $14, allowed_users = $15,
			updated_at = now()
		WHERE UPPER(code) = UPPER($1)`

	// Bulk-load variant for the seed and ingest tools. Conflicts update the
	// rule fields and keep the existing usage bookkeeping.
	upsertCouponSQL = insertCouponSQL + `
			ON CONFLICT (code) DO UPDATE SET
				kind = EXCLUDED.kind, value = EXCLUDED.value,
				description = EXCLUDED.description,
				min_purchase = EXCLUDED.min_purchase,
				max_discount = EXCLUDED.max_discount,
				valid_from = EXCLUDED.valid_from,
				valid_until = EXCLUDED.valid_until,
				active = EXCLUDED.active,
				usage_limit = EXCLUDED.usage_limit,
				one_time_per_user = EXCLUDED.one_time_per_user,
				applicable_products = EXCLUDED.applicable_products,
				excluded_products = EXCLUDED.excluded_products,
				applicable_categories = EXCLUDED.applicable_categories,
				allowed_users = EXCLUDED.allowed_users,
				updated_at = now()`

	deleteCouponSQL = `DELETE FROM coupons WHERE UPPER(code) = UPPER($1)`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY code`
)

var _ coupon.Store = (*CouponRepository)(nil)

// CouponRepository implements coupon.Store backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive), including
// inactive ones. Returns coupon.ErrNotFound when no row matches.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// Redeem runs the conditional redemption update. When the update matches no
// row, the coupon is re-read once to name the condition that lost the race.
func (r *CouponRepository) Redeem(ctx context.Context, code, userID string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, redeemCouponSQL, code, userID)
	if err != nil {
		return nil, fmt.Errorf("redeeming coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("redeeming coupon %q: %w", code, err)
	}

	// The conditional update matched nothing. Read the row to report which
	// guard failed; the read is diagnostic only, the update above remains
	// the single source of truth for the mutation.
	current, err := r.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	switch {
	case !current.Active:
		return nil, coupon.ErrInactive
	case current.OneTimePerUser && current.HasRedeemed(userID):
		return nil, coupon.ErrAlreadyRedeemed
	case current.UsageExhausted():
		return nil, coupon.ErrUsageExhausted
	default:
		return nil, fmt.Errorf("redeeming coupon %q: conditional update matched no row", code)
	}
}

// Create inserts a new coupon. The code is stored normalized; a collision on
// the case-insensitive unique index maps to coupon.ErrCodeExists.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, insertCouponSQL,
		coupon.NormalizeCode(c.Code), string(c.Kind), c.Value, c.Description,
		c.MinPurchase, c.MaxDiscount, c.ValidFrom, c.ValidUntil, c.Active,
		c.UsageLimit, c.OneTimePerUser,
		textArray(c.ApplicableProducts), textArray(c.ExcludedProducts),
		textArray(c.ApplicableCategories), textArray(c.AllowedUsers),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrCodeExists
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts or overwrites a coupon's rule fields. Used by the seed and
// ingest tools; the admin API goes through Create and Update instead.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		coupon.NormalizeCode(c.Code), string(c.Kind), c.Value, c.Description,
		c.MinPurchase, c.MaxDiscount, c.ValidFrom, c.ValidUntil, c.Active,
		c.UsageLimit, c.OneTimePerUser,
		textArray(c.ApplicableProducts), textArray(c.ExcludedProducts),
		textArray(c.ApplicableCategories), textArray(c.AllowedUsers),
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update rewrites the coupon's rule fields, leaving usage bookkeeping
// untouched. Returns coupon.ErrNotFound when the code does not exist.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.pool.Exec(ctx, updateCouponSQL,
		c.Code, string(c.Kind), c.Value, c.Description,
		c.MinPurchase, c.MaxDiscount, c.ValidFrom, c.ValidUntil, c.Active,
		c.UsageLimit, c.OneTimePerUser,
		textArray(c.ApplicableProducts), textArray(c.ExcludedProducts),
		textArray(c.ApplicableCategories), textArray(c.AllowedUsers),
	)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", c.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes a coupon by code.
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, code)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// List returns all coupons ordered by code.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return coupons, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c          coupon.Coupon
		kind       string
		validFrom  *time.Time
		validUntil *time.Time
		usageLimit int32
		usageCount int32
	)
	err := row.Scan(
		&c.Code, &kind, &c.Value, &c.Description, &c.MinPurchase, &c.MaxDiscount,
		&validFrom, &validUntil, &c.Active, &usageLimit, &usageCount,
		&c.OneTimePerUser, &c.RedeemedBy, &c.ApplicableProducts, &c.ExcludedProducts,
		&c.ApplicableCategories, &c.AllowedUsers, &c.CreatedAt, &c.UpdatedAt,
	)
	c.Kind = coupon.DiscountKind(kind)
	c.ValidFrom = validFrom
	c.ValidUntil = validUntil
	c.UsageLimit = int(usageLimit)
	c.UsageCount = int(usageCount)
	return c, err
}

// textArray maps a nil slice to an empty TEXT[] instead of NULL.
func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
