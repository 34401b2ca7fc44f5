package order

import (
	"context"
	"math"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
)

type mockOrderRepo struct {
	orders     []Order
	total      int
	err        error
	lastLimit  int
	lastOffset int
}

func (m *mockOrderRepo) ListForUser(_ context.Context, _ string, limit, offset int) ([]Order, int, error) {
	m.lastLimit = limit
	m.lastOffset = offset
	return m.orders, m.total, m.err
}

func (m *mockOrderRepo) GetByNumber(_ context.Context, userID, number string) (*Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.orders {
		if m.orders[i].OrderNumber == number && m.orders[i].UserID == userID {
			return &m.orders[i], nil
		}
	}
	return nil, ErrNotFound
}

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   Page
		want Page
	}{
		{name: "zero value", in: Page{}, want: Page{Page: 1, Limit: DefaultPageSize}},
		{name: "negative page", in: Page{Page: -3, Limit: 5}, want: Page{Page: 1, Limit: 5}},
		{name: "limit above max", in: Page{Page: 2, Limit: 500}, want: Page{Page: 2, Limit: MaxPageSize}},
		{name: "valid", in: Page{Page: 3, Limit: 10}, want: Page{Page: 3, Limit: 10}},
		{name: "huge page", in: Page{Page: math.MaxInt64 / 50, Limit: 100}, want: Page{Page: MaxPage, Limit: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.offset(), 0)
		})
	}
}

func TestLedger_ListForUser(t *testing.T) {
	repo := &mockOrderRepo{
		orders: []Order{{ID: "o2", OrderNumber: "ORD-2"}, {ID: "o1", OrderNumber: "ORD-1"}},
		total:  12,
	}
	l := NewLedger(repo)

	got, err := l.ListForUser(context.Background(), "u1", Page{Page: 3, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, repo.lastLimit)
	assert.Equal(t, 10, repo.lastOffset)
	assert.Equal(t, 12, got.Total)
	assert.Equal(t, 3, got.Page)
	assert.Equal(t, 5, got.Limit)
	assert.Len(t, got.Orders, 2)
}

func TestLedger_ListForUserEmpty(t *testing.T) {
	l := NewLedger(&mockOrderRepo{})

	got, err := l.ListForUser(context.Background(), "u1", Page{})
	require.NoError(t, err)
	assert.NotNil(t, got.Orders)
	assert.Empty(t, got.Orders)
	assert.Equal(t, DefaultPageSize, got.Limit)
}

func TestLedger_ListForUserError(t *testing.T) {
	l := NewLedger(&mockOrderRepo{err: errors.New("timeout")})

	_, err := l.ListForUser(context.Background(), "u1", Page{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list orders")
}

func TestLedger_GetByNumber(t *testing.T) {
	repo := &mockOrderRepo{orders: []Order{{ID: "o1", OrderNumber: "ORD-1", UserID: "u1"}}}
	l := NewLedger(repo)

	o, err := l.GetByNumber(context.Background(), "u1", "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)

	_, err = l.GetByNumber(context.Background(), "u2", "ORD-1")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
