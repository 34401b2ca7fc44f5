package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/academy-commerce/internal/domain/checkout"
	"github.com/xenking/academy-commerce/internal/domain/order"
)

const (
	orderColumns = `id, order_number, user_id, subtotal, discount, total, status,
		coupon_id, created_at, updated_at`

	listOrdersByUserSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	countOrdersByUserSQL = `SELECT COUNT(*) FROM orders WHERE user_id = $1`

	getOrderByNumberSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE order_number = $1 AND user_id = $2`

	listOrderItemsSQL = `SELECT id, order_id, course_id, title, price
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, id`

	insertOrderSQL = `INSERT INTO orders (id, order_number, user_id, subtotal, discount, total,
			status, coupon_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, course_id, title, price)
		VALUES ($1, $2, $3, $4, $5)`

	orderNumberUniqueConstraint = "orders_order_number_key"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// ListForUser returns one page of the user's orders with their items, newest
// first, and the user's total order count.
func (r *OrderRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]order.Order, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, countOrdersByUserSQL, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders of %q: %w", userID, err)
	}
	if total == 0 {
		return []order.Order{}, 0, nil
	}

	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders of %q: %w", userID, err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// GetByNumber returns the user's order with the given number.
func (r *OrderRepository) GetByNumber(ctx context.Context, userID, number string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByNumberSQL, number, userID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", number, err)
	}

	orders := []order.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// attachItems loads the items of all given orders in one query.
func (r *OrderRepository) attachItems(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Items = []order.Item{}
	}

	rows, err := r.pool.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	for _, it := range items {
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return nil
}

// insertOrder writes the order header. A duplicate order number yields
// checkout.ErrOrderNumberTaken.
func insertOrder(ctx context.Context, q querier, o *order.Order) error {
	_, err := q.Exec(ctx, insertOrderSQL,
		o.ID, o.OrderNumber, o.UserID, o.Subtotal, o.Discount, o.Total,
		string(o.Status), o.CouponID, o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, orderNumberUniqueConstraint) {
			return checkout.ErrOrderNumberTaken
		}
		return fmt.Errorf("inserting order %q: %w", o.OrderNumber, err)
	}
	return nil
}

func insertOrderItem(ctx context.Context, q querier, it *order.Item) error {
	_, err := q.Exec(ctx, insertOrderItemSQL, it.ID, it.OrderID, it.CourseID, it.Title, it.Price)
	if err != nil {
		return fmt.Errorf("inserting order item %q: %w", it.CourseID, err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Subtotal, &o.Discount, &o.Total, &status,
		&o.CouponID, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(&it.ID, &it.OrderID, &it.CourseID, &it.Title, &it.Price)
	return it, err
}
