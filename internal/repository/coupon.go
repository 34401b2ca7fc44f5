package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/academy-commerce/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT id, code, type, value, min_purchase, max_discount,
		valid_from, valid_until, usage_limit, used_count, is_active
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	// redeemCouponSQL increments the usage counter only while the coupon is
	// active and below its ceiling. Zero affected rows means the coupon was
	// exhausted or deactivated concurrently.
	redeemCouponSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1
			AND is_active
			AND (usage_limit IS NULL OR used_count < usage_limit)`

	// upsertCouponSQL keeps used_count of existing coupons.
	upsertCouponSQL = `INSERT INTO coupons (id, code, type, value, min_purchase, max_discount,
			valid_from, valid_until, usage_limit, is_active)
		VALUES ($1, UPPER($2), $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ((UPPER(code))) DO UPDATE SET
			type = EXCLUDED.type,
			value = EXCLUDED.value,
			min_purchase = EXCLUDED.min_purchase,
			max_discount = EXCLUDED.max_discount,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until,
			usage_limit = EXCLUDED.usage_limit,
			is_active = EXCLUDED.is_active`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive), active or not.
// Returns coupon.ErrNotFound when no coupon has the code.
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

// Upsert inserts a coupon or updates the rule of the coupon with the same
// code. The code is stored uppercased.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		c.ID, c.Code, string(c.Type), c.Value, c.MinPurchase, c.MaxDiscount,
		c.ValidFrom, c.ValidUntil, c.UsageLimit, c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// redeemCoupon consumes one use of the coupon or returns coupon.ErrExhausted.
func redeemCoupon(ctx context.Context, q querier, couponID string) error {
	tag, err := q.Exec(ctx, redeemCouponSQL, couponID)
	if err != nil {
		return fmt.Errorf("redeeming coupon %q: %w", couponID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrExhausted
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c          coupon.Coupon
		typ        string
		usageLimit *int32
		usedCount  int32
	)
	err := row.Scan(
		&c.ID, &c.Code, &typ, &c.Value, &c.MinPurchase, &c.MaxDiscount,
		&c.ValidFrom, &c.ValidUntil, &usageLimit, &usedCount, &c.IsActive,
	)
	c.Type = coupon.DiscountType(typ)
	c.UsedCount = int(usedCount)
	if usageLimit != nil {
		limit := int(*usageLimit)
		c.UsageLimit = &limit
	}
	return c, err
}
