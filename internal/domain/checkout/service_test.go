package checkout

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
	"github.com/xenking/academy-commerce/internal/domain/cart"
	"github.com/xenking/academy-commerce/internal/domain/catalog"
	"github.com/xenking/academy-commerce/internal/domain/coupon"
	"github.com/xenking/academy-commerce/internal/domain/enrollment"
	"github.com/xenking/academy-commerce/internal/domain/order"
)

// --- Mock implementations ---

type mockCarts struct {
	cart *cart.Cart
	err  error
}

func (m *mockCarts) Find(_ context.Context, _ string) (*cart.Cart, error) {
	return m.cart, m.err
}

type mockCoupons struct {
	eval     *coupon.Evaluation
	err      error
	subtotal decimal.Decimal
	calls    int
}

func (m *mockCoupons) Evaluate(_ context.Context, _ string, subtotal decimal.Decimal) (*coupon.Evaluation, error) {
	m.calls++
	m.subtotal = subtotal
	return m.eval, m.err
}

// mockStore fails the first len(errs) commits with the queued errors.
type mockStore struct {
	errs    []error
	plans   []Plan
	commits int
}

func (m *mockStore) Commit(_ context.Context, plan *Plan) (*Result, error) {
	m.plans = append(m.plans, *plan)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	m.commits++

	o := &order.Order{
		ID:          plan.OrderID,
		OrderNumber: plan.OrderNumber,
		UserID:      plan.UserID,
		Subtotal:    plan.Subtotal,
		Discount:    plan.Discount,
		Total:       plan.Total,
		Status:      order.StatusCompleted,
		CreatedAt:   plan.CreatedAt,
	}
	if plan.Coupon != nil {
		o.CouponID = &plan.Coupon.ID
	}
	var enrollments []enrollment.Enrollment
	for _, it := range plan.Items {
		o.Items = append(o.Items, order.Item{CourseID: it.CourseID, Title: it.Course.Title, Price: it.Price})
		enrollments = append(enrollments, enrollment.Enrollment{UserID: plan.UserID, CourseID: it.CourseID, OrderID: &o.ID})
	}
	return &Result{Order: o, Enrollments: enrollments}, nil
}

type mockOrders struct {
	byNumber map[string]*order.Order
}

func (m *mockOrders) GetByNumber(_ context.Context, _ string, number string) (*order.Order, error) {
	o, ok := m.byNumber[number]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

type mockEnrollments struct {
	list []enrollment.Enrollment
}

func (m *mockEnrollments) ListByOrder(_ context.Context, _ string) ([]enrollment.Enrollment, error) {
	return m.list, nil
}

type memIdempotency struct {
	held        map[string]bool
	remembered  map[string]string
	released    int
	rememberErr error
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{held: map[string]bool{}, remembered: map[string]string{}}
}

func (m *memIdempotency) Acquire(_ context.Context, scope, key string) (bool, error) {
	if m.held[scope+key] {
		return false, nil
	}
	m.held[scope+key] = true
	return true, nil
}

func (m *memIdempotency) Release(_ context.Context, scope, key string) error {
	delete(m.held, scope+key)
	m.released++
	return nil
}

func (m *memIdempotency) Remember(_ context.Context, scope, key, number string) error {
	if m.rememberErr != nil {
		return m.rememberErr
	}
	m.remembered[scope+key] = number
	return nil
}

func (m *memIdempotency) Recall(_ context.Context, scope, key string) (string, bool, error) {
	n, ok := m.remembered[scope+key]
	return n, ok, nil
}

// --- Helpers ---

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newCart(prices ...string) *cart.Cart {
	c := &cart.Cart{ID: "cart-1", UserID: "u1", Total: decimal.Zero}
	for i, p := range prices {
		id := string(rune('a' + i))
		c.Items = append(c.Items, cart.Item{
			ID:       "item-" + id,
			CourseID: "course-" + id,
			Price:    d(p),
			Course:   catalog.Summary{ID: "course-" + id, Title: "Course " + id, Price: d(p)},
		})
		c.Total = c.Total.Add(d(p))
	}
	return c
}

type fixture struct {
	carts   *mockCarts
	coupons *mockCoupons
	store   *mockStore
	orders  *mockOrders
	enrolls *mockEnrollments
}

func newFixture(c *cart.Cart) *fixture {
	return &fixture{
		carts:   &mockCarts{cart: c},
		coupons: &mockCoupons{},
		store:   &mockStore{},
		orders:  &mockOrders{byNumber: map[string]*order.Order{}},
		enrolls: &mockEnrollments{},
	}
}

func (f *fixture) service(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(f.carts, f.coupons, f.store, f.orders, f.enrolls, opts...)
	require.NoError(t, err)
	return svc
}

var orderNumberRe = regexp.MustCompile(`^ORD-\d+-[0-9A-Z]{7}$`)

// --- Tests ---

func TestCheckout_EmptyCart(t *testing.T) {
	tests := []struct {
		name  string
		carts *mockCarts
	}{
		{name: "no cart", carts: &mockCarts{err: cart.ErrNotFound}},
		{name: "cart without items", carts: &mockCarts{cart: newCart()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			f.carts = tt.carts
			svc := f.service(t)

			_, err := svc.Checkout(context.Background(), Request{UserID: "u1", CouponCode: "SAVE10"})
			require.ErrorIs(t, err, ErrEmptyCart)
			assert.Equal(t, apperr.Validation, apperr.KindOf(err))
			assert.Empty(t, f.store.plans, "nothing must be committed")
			assert.Zero(t, f.coupons.calls, "coupon must not be evaluated")
		})
	}
}

func TestCheckout_NoCoupon(t *testing.T) {
	f := newFixture(newCart("49.90", "79.00", "10.10"))
	svc := f.service(t)

	res, err := svc.Checkout(context.Background(), Request{UserID: "u1"})
	require.NoError(t, err)

	assert.False(t, res.Replayed)
	assert.Regexp(t, orderNumberRe, res.Order.OrderNumber)
	assert.Equal(t, order.StatusCompleted, res.Order.Status)
	assert.True(t, d("139.00").Equal(res.Order.Subtotal))
	assert.True(t, decimal.Zero.Equal(res.Order.Discount))
	assert.True(t, d("139.00").Equal(res.Order.Total))
	assert.Nil(t, res.Order.CouponID)
	assert.Len(t, res.Order.Items, 3)
	assert.Len(t, res.Enrollments, 3)
	assert.Zero(t, f.coupons.calls)

	require.Len(t, f.store.plans, 1)
	plan := f.store.plans[0]
	assert.Equal(t, "cart-1", plan.CartID)
	assert.Nil(t, plan.Coupon)
	assert.NotEmpty(t, plan.OrderID)
}

func TestCheckout_WithCoupon(t *testing.T) {
	f := newFixture(newCart("60", "40"))
	f.coupons.eval = &coupon.Evaluation{
		Coupon:   &coupon.Coupon{ID: "cp-1", Code: "SAVE10"},
		Discount: d("10"),
	}
	svc := f.service(t)

	res, err := svc.Checkout(context.Background(), Request{UserID: "u1", CouponCode: "SAVE10"})
	require.NoError(t, err)

	assert.True(t, d("100").Equal(f.coupons.subtotal), "coupon is evaluated against the cart total")
	assert.True(t, d("100").Equal(res.Order.Subtotal))
	assert.True(t, d("10").Equal(res.Order.Discount))
	assert.True(t, d("90").Equal(res.Order.Total))
	require.NotNil(t, res.Order.CouponID)
	assert.Equal(t, "cp-1", *res.Order.CouponID)
	assert.Equal(t, "cp-1", f.store.plans[0].Coupon.ID)
}

func TestCheckout_DiscountCoversTotal(t *testing.T) {
	f := newFixture(newCart("30"))
	f.coupons.eval = &coupon.Evaluation{
		Coupon:   &coupon.Coupon{ID: "cp-2", Code: "FLAT50"},
		Discount: d("30"),
	}
	svc := f.service(t)

	res, err := svc.Checkout(context.Background(), Request{UserID: "u1", CouponCode: "FLAT50"})
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(res.Order.Total))
	assert.True(t, d("30").Equal(res.Order.Discount))
}

func TestCheckout_CouponErrorsPropagate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperr.Kind
	}{
		{name: "not found", err: coupon.ErrNotFound, wantKind: apperr.NotFound},
		{name: "exhausted", err: coupon.ErrExhausted, wantKind: apperr.Validation},
		{name: "below minimum", err: &coupon.MinPurchaseError{Min: d("100")}, wantKind: apperr.Validation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(newCart("20"))
			f.coupons.err = tt.err
			svc := f.service(t)

			_, err := svc.Checkout(context.Background(), Request{UserID: "u1", CouponCode: "X"})
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Empty(t, f.store.plans)
		})
	}
}

func TestCheckout_StoreGuardsPropagate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperr.Kind
	}{
		{name: "duplicate enrollment", err: enrollment.ErrAlreadyEnrolled, wantKind: apperr.Conflict},
		{name: "coupon exhausted at commit", err: coupon.ErrExhausted, wantKind: apperr.Validation},
		{name: "cart changed", err: ErrCartChanged, wantKind: apperr.Conflict},
		{name: "database failure", err: errors.New("connection reset"), wantKind: apperr.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(newCart("20"))
			f.store.errs = []error{tt.err}
			svc := f.service(t)

			_, err := svc.Checkout(context.Background(), Request{UserID: "u1"})
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			assert.Len(t, f.store.plans, 1, "only order number collisions are retried")
		})
	}
}

func TestCheckout_RetriesOrderNumberCollision(t *testing.T) {
	f := newFixture(newCart("20"))
	f.store.errs = []error{ErrOrderNumberTaken, ErrOrderNumberTaken}
	svc := f.service(t)

	res, err := svc.Checkout(context.Background(), Request{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, f.store.plans, 3)
	assert.Equal(t, res.Order.OrderNumber, f.store.plans[2].OrderNumber)
	assert.NotEqual(t, f.store.plans[0].OrderID, f.store.plans[2].OrderID)
}

func TestCheckout_OrderNumberAttemptsExhausted(t *testing.T) {
	f := newFixture(newCart("20"))
	f.store.errs = []error{ErrOrderNumberTaken, ErrOrderNumberTaken}
	svc := f.service(t, WithMaxAttempts(2))

	_, err := svc.Checkout(context.Background(), Request{UserID: "u1"})
	require.ErrorIs(t, err, ErrOrderNumberTaken)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	assert.Len(t, f.store.plans, 2)
}

func TestCheckout_IdempotentReplay(t *testing.T) {
	f := newFixture(newCart("20", "30"))
	idem := newMemIdempotency()
	svc := f.service(t, WithIdempotency(idem))
	ctx := context.Background()
	req := Request{UserID: "u1", IdempotencyKey: "key-1"}

	first, err := svc.Checkout(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	// The committed order becomes visible to the ledger, the cart is now empty.
	f.orders.byNumber[first.Order.OrderNumber] = first.Order
	f.enrolls.list = first.Enrollments
	f.carts.cart = newCart()

	second, err := svc.Checkout(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.OrderNumber, second.Order.OrderNumber)
	assert.Len(t, second.Enrollments, 2)
	assert.Equal(t, 1, f.store.commits)

	// A different key runs a fresh checkout against the empty cart.
	_, err = svc.Checkout(ctx, Request{UserID: "u1", IdempotencyKey: "key-2"})
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, 1, idem.released)
}

func TestCheckout_IdempotencyKeyHeld(t *testing.T) {
	f := newFixture(newCart("20"))
	idem := newMemIdempotency()
	idem.held["checkout:u1"+"key-1"] = true
	svc := f.service(t, WithIdempotency(idem))

	_, err := svc.Checkout(context.Background(), Request{UserID: "u1", IdempotencyKey: "key-1"})
	require.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.Empty(t, f.store.plans)
}

func TestCheckout_IdempotencyKeyReleasedOnFailure(t *testing.T) {
	f := newFixture(newCart("20"))
	f.store.errs = []error{enrollment.ErrAlreadyEnrolled}
	idem := newMemIdempotency()
	svc := f.service(t, WithIdempotency(idem))
	req := Request{UserID: "u1", IdempotencyKey: "key-1"}

	_, err := svc.Checkout(context.Background(), req)
	require.ErrorIs(t, err, enrollment.ErrAlreadyEnrolled)
	assert.Equal(t, 1, idem.released)
	assert.Empty(t, idem.held)

	// The retry with the same key is allowed to run.
	res, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, res.Order.OrderNumber, idem.remembered["checkout:u1"+"key-1"])
}

func TestCheckout_RememberFailureReleasesKey(t *testing.T) {
	f := newFixture(newCart("20"))
	idem := newMemIdempotency()
	idem.rememberErr = errors.New("redis down")
	svc := f.service(t, WithIdempotency(idem))
	req := Request{UserID: "u1", IdempotencyKey: "key-1"}

	res, err := svc.Checkout(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.Empty(t, idem.held)
	assert.Equal(t, 1, idem.released)

	// The retry is not locked out; it runs against the now empty cart.
	f.carts.cart = newCart()
	_, err = svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_ReplayNotCountedAsCompleted(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	f := newFixture(newCart("20"))
	svc := f.service(t, WithIdempotency(newMemIdempotency()), WithMeterProvider(mp))
	ctx := context.Background()
	req := Request{UserID: "u1", IdempotencyKey: "key-1"}

	first, err := svc.Checkout(ctx, req)
	require.NoError(t, err)
	f.orders.byNumber[first.Order.OrderNumber] = first.Order

	second, err := svc.Checkout(ctx, req)
	require.NoError(t, err)
	require.True(t, second.Replayed)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	assert.Equal(t, int64(1), counterValue(t, rm, "checkout.completed"))
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not recorded", name)
	return 0
}

func TestNewOrderNumber(t *testing.T) {
	now := time.UnixMilli(1718452800123)

	seen := make(map[string]bool)
	for range 50 {
		n, err := NewOrderNumber(now)
		require.NoError(t, err)
		assert.Regexp(t, orderNumberRe, n)
		assert.Contains(t, n, "ORD-1718452800123-")
		seen[n] = true
	}
	assert.Greater(t, len(seen), 45)
}
