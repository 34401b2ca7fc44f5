package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/academy-commerce/internal/domain/cart"
	"github.com/xenking/academy-commerce/internal/domain/checkout"
	"github.com/xenking/academy-commerce/internal/domain/enrollment"
	"github.com/xenking/academy-commerce/internal/domain/order"
)

var _ checkout.Store = (*CheckoutStore)(nil)

// CheckoutStore implements checkout.Store with a single PostgreSQL
// transaction per commit.
type CheckoutStore struct {
	pool *pgxpool.Pool
}

// NewCheckoutStore returns a CheckoutStore that uses the given pool.
func NewCheckoutStore(pool *pgxpool.Pool) *CheckoutStore {
	return &CheckoutStore{pool: pool}
}

// Commit locks the cart, verifies it still matches the plan, then writes the
// order, its items and enrollments, redeems the coupon and empties the cart.
// Any failure rolls the whole transaction back.
func (s *CheckoutStore) Commit(ctx context.Context, plan *checkout.Plan) (*checkout.Result, error) {
	o := &order.Order{
		ID:          plan.OrderID,
		OrderNumber: plan.OrderNumber,
		UserID:      plan.UserID,
		Subtotal:    plan.Subtotal,
		Discount:    plan.Discount,
		Total:       plan.Total,
		Status:      order.StatusCompleted,
		Items:       make([]order.Item, 0, len(plan.Items)),
		CreatedAt:   plan.CreatedAt,
		UpdatedAt:   plan.CreatedAt,
	}
	if plan.Coupon != nil {
		o.CouponID = &plan.Coupon.ID
	}
	enrollments := make([]enrollment.Enrollment, 0, len(plan.Items))

	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := verifyCart(ctx, tx, plan); err != nil {
			return err
		}

		if err := insertOrder(ctx, tx, o); err != nil {
			return err
		}

		for _, it := range plan.Items {
			oi := order.Item{
				ID:       uuid.NewString(),
				OrderID:  o.ID,
				CourseID: it.CourseID,
				Title:    it.Course.Title,
				Price:    it.Price,
			}
			if err := insertOrderItem(ctx, tx, &oi); err != nil {
				return err
			}
			o.Items = append(o.Items, oi)
		}

		for _, it := range plan.Items {
			e := enrollment.Enrollment{
				ID:         uuid.NewString(),
				UserID:     plan.UserID,
				CourseID:   it.CourseID,
				OrderID:    &o.ID,
				EnrolledAt: plan.CreatedAt,
				Course:     it.Course,
			}
			if err := activateEnrollment(ctx, tx, &e); err != nil {
				return err
			}
			enrollments = append(enrollments, e)
		}

		if plan.Coupon != nil {
			if err := redeemCoupon(ctx, tx, plan.Coupon.ID); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, deleteCartItemsSQL, plan.CartID); err != nil {
			return fmt.Errorf("emptying cart %q: %w", plan.CartID, err)
		}
		return recomputeCartTotal(ctx, tx, plan.CartID)
	})
	if err != nil {
		return nil, err
	}

	return &checkout.Result{Order: o, Enrollments: enrollments}, nil
}

// verifyCart locks the user's cart and checks that it holds exactly the
// items the plan was priced from.
func verifyCart(ctx context.Context, tx pgx.Tx, plan *checkout.Plan) error {
	cartID, err := lockCart(ctx, tx, plan.UserID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return checkout.ErrCartChanged
		}
		return err
	}
	if cartID != plan.CartID {
		return checkout.ErrCartChanged
	}

	current, err := listCartItems(ctx, tx, cartID)
	if err != nil {
		return err
	}
	if !sameItems(current, plan.Items) {
		return checkout.ErrCartChanged
	}
	return nil
}

func sameItems(a, b []cart.Item) bool {
	if len(a) != len(b) {
		return false
	}
	prices := make(map[string]cart.Item, len(a))
	for _, it := range a {
		prices[it.CourseID] = it
	}
	for _, it := range b {
		cur, ok := prices[it.CourseID]
		if !ok || !cur.Price.Equal(it.Price) {
			return false
		}
	}
	return true
}
