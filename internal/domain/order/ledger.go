package order

import (
	"context"
	"math"

	"github.com/go-faster/errors"
)

const (
	// DefaultPageSize is used when a caller does not ask for a page size.
	DefaultPageSize = 20
	// MaxPageSize caps the page size a caller may request.
	MaxPageSize = 100
	// MaxPage caps the page number so the row offset always fits an int.
	MaxPage = math.MaxInt32
)

// Page selects a window of a user's order history. Pages are 1-based.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page into the supported range.
func (p Page) Normalize() Page {
	p.Page = min(max(p.Page, 1), MaxPage)
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageSize
	case p.Limit > MaxPageSize:
		p.Limit = MaxPageSize
	}
	return p
}

func (p Page) offset() int {
	return (p.Page - 1) * p.Limit
}

// List is one page of order history.
type List struct {
	Orders []Order
	Total  int
	Page   int
	Limit  int
}

// Ledger is the read side of orders.
type Ledger struct {
	repo Repository
}

// NewLedger creates a Ledger backed by the given Repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// ListForUser returns the user's orders, newest first.
func (l *Ledger) ListForUser(ctx context.Context, userID string, page Page) (*List, error) {
	page = page.Normalize()

	orders, total, err := l.repo.ListForUser(ctx, userID, page.Limit, page.offset())
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if orders == nil {
		orders = []Order{}
	}

	return &List{
		Orders: orders,
		Total:  total,
		Page:   page.Page,
		Limit:  page.Limit,
	}, nil
}

// GetByNumber returns the user's order with the given number.
func (l *Ledger) GetByNumber(ctx context.Context, userID, number string) (*Order, error) {
	o, err := l.repo.GetByNumber(ctx, userID, number)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}
