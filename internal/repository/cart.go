package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/academy-commerce/internal/domain/cart"
	"github.com/xenking/academy-commerce/internal/domain/catalog"
)

const (
	getCartByUserSQL = `SELECT id, user_id, total, created_at, updated_at
		FROM carts WHERE user_id = $1`

	insertCartSQL = `INSERT INTO carts (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`

	// upsertLockCartSQL creates the cart if needed and holds its row lock
	// until the surrounding transaction ends.
	upsertLockCartSQL = `INSERT INTO carts (id, user_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING id`

	lockCartSQL = `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`

	listCartItemsSQL = `SELECT ci.id, ci.course_id, ci.price, ci.added_at,
			c.id, c.title, c.slug, c.image, c.price
		FROM cart_items ci
		JOIN courses c ON c.id = ci.course_id
		WHERE ci.cart_id = $1
		ORDER BY ci.added_at, ci.id`

	insertCartItemSQL = `INSERT INTO cart_items (id, cart_id, course_id, price)
		VALUES ($1, $2, $3, $4)`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE cart_id = $1 AND course_id = $2`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE cart_id = $1`

	// recomputeCartTotalSQL is the only statement that writes carts.total.
	recomputeCartTotalSQL = `UPDATE carts SET
			total = (SELECT COALESCE(SUM(price), 0) FROM cart_items WHERE cart_id = $1),
			updated_at = NOW()
		WHERE id = $1`

	cartItemsUniqueConstraint = "cart_items_cart_course_key"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetOrCreate returns the user's cart, creating an empty one if needed.
func (r *CartRepository) GetOrCreate(ctx context.Context, userID string) (*cart.Cart, error) {
	c, err := loadCart(ctx, r.pool, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, cart.ErrNotFound) {
		return nil, err
	}

	if _, err := r.pool.Exec(ctx, insertCartSQL, uuid.NewString(), userID); err != nil {
		return nil, fmt.Errorf("creating cart for user %q: %w", userID, err)
	}
	return loadCart(ctx, r.pool, userID)
}

// Find returns the user's cart or cart.ErrNotFound.
func (r *CartRepository) Find(ctx context.Context, userID string) (*cart.Cart, error) {
	return loadCart(ctx, r.pool, userID)
}

// AddItem snapshots the course price into the user's cart. The cart row is
// locked for the duration of the transaction so concurrent mutations
// serialize on the total recompute.
func (r *CartRepository) AddItem(ctx context.Context, userID string, course *catalog.Course) (*cart.Cart, error) {
	var out *cart.Cart
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var cartID string
		if err := tx.QueryRow(ctx, upsertLockCartSQL, uuid.NewString(), userID).Scan(&cartID); err != nil {
			return fmt.Errorf("locking cart for user %q: %w", userID, err)
		}

		if _, err := tx.Exec(ctx, insertCartItemSQL, uuid.NewString(), cartID, course.ID, course.Price); err != nil {
			if isUniqueViolation(err, cartItemsUniqueConstraint) {
				return cart.ErrCourseInCart
			}
			return fmt.Errorf("inserting cart item %q: %w", course.ID, err)
		}

		if err := recomputeCartTotal(ctx, tx, cartID); err != nil {
			return err
		}

		c, err := loadCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveItem deletes the course from the user's cart if present.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, courseID string) (*cart.Cart, error) {
	return r.mutate(ctx, userID, func(tx pgx.Tx, cartID string) error {
		if _, err := tx.Exec(ctx, deleteCartItemSQL, cartID, courseID); err != nil {
			return fmt.Errorf("deleting cart item %q: %w", courseID, err)
		}
		return nil
	})
}

// Clear deletes every item from the user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) (*cart.Cart, error) {
	return r.mutate(ctx, userID, func(tx pgx.Tx, cartID string) error {
		if _, err := tx.Exec(ctx, deleteCartItemsSQL, cartID); err != nil {
			return fmt.Errorf("clearing cart %q: %w", cartID, err)
		}
		return nil
	})
}

// mutate locks an existing cart, applies fn and recomputes the total.
func (r *CartRepository) mutate(ctx context.Context, userID string, fn func(tx pgx.Tx, cartID string) error) (*cart.Cart, error) {
	var out *cart.Cart
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		cartID, err := lockCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(tx, cartID); err != nil {
			return err
		}
		if err := recomputeCartTotal(ctx, tx, cartID); err != nil {
			return err
		}
		c, err := loadCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lockCart takes the row lock on the user's cart and returns its id.
func lockCart(ctx context.Context, q querier, userID string) (string, error) {
	var id string
	if err := q.QueryRow(ctx, lockCartSQL, userID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", cart.ErrNotFound
		}
		return "", fmt.Errorf("locking cart for user %q: %w", userID, err)
	}
	return id, nil
}

func recomputeCartTotal(ctx context.Context, q querier, cartID string) error {
	if _, err := q.Exec(ctx, recomputeCartTotalSQL, cartID); err != nil {
		return fmt.Errorf("recomputing total of cart %q: %w", cartID, err)
	}
	return nil
}

func loadCart(ctx context.Context, q querier, userID string) (*cart.Cart, error) {
	rows, err := q.Query(ctx, getCartByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart for user %q: %w", userID, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart for user %q: %w", userID, err)
	}

	items, err := listCartItems(ctx, q, c.ID)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return &c, nil
}

func listCartItems(ctx context.Context, q querier, cartID string) ([]cart.Item, error) {
	rows, err := q.Query(ctx, listCartItemsSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("listing items of cart %q: %w", cartID, err)
	}
	items, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("listing items of cart %q: %w", cartID, err)
	}
	if items == nil {
		items = []cart.Item{}
	}
	return items, nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var c cart.Cart
	err := row.Scan(&c.ID, &c.UserID, &c.Total, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(
		&it.ID, &it.CourseID, &it.Price, &it.AddedAt,
		&it.Course.ID, &it.Course.Title, &it.Course.Slug, &it.Course.Image, &it.Course.Price,
	)
	return it, err
}
