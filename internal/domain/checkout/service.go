package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
	"github.com/xenking/academy-commerce/internal/domain/cart"
	"github.com/xenking/academy-commerce/internal/domain/coupon"
)

const (
	instrumentationName = "github.com/xenking/academy-commerce/internal/domain/checkout"
	idempotencyScope    = "checkout"

	// DefaultMaxAttempts bounds commits retried after an order number collision.
	DefaultMaxAttempts = 3
)

// Option configures a Service.
type Option func(*Service)

// WithIdempotency enables idempotency keys backed by store.
func WithIdempotency(store IdempotencyStore) Option {
	return func(s *Service) {
		if store != nil {
			s.idem = store
		}
	}
}

// WithMaxAttempts sets how many order numbers a checkout tries before failing.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithMeterProvider sets the provider for checkout counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		if mp != nil {
			s.meterProvider = mp
		}
	}
}

// WithTracerProvider sets the provider for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// Service orchestrates checkout.
type Service struct {
	carts       CartReader
	coupons     CouponEvaluator
	store       Store
	orders      OrderReader
	enrollments EnrollmentReader
	idem        IdempotencyStore
	maxAttempts int
	now         func() time.Time

	meterProvider metric.MeterProvider
	tracer        trace.Tracer
	completed     metric.Int64Counter
	failed        metric.Int64Counter
}

// NewService creates a checkout Service.
func NewService(
	carts CartReader,
	coupons CouponEvaluator,
	store Store,
	orders OrderReader,
	enrollments EnrollmentReader,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		carts:         carts,
		coupons:       coupons,
		store:         store,
		orders:        orders,
		enrollments:   enrollments,
		idem:          nopIdempotency{},
		maxAttempts:   DefaultMaxAttempts,
		now:           time.Now,
		meterProvider: metricnoop.NewMeterProvider(),
		tracer:        tracenoop.NewTracerProvider().Tracer(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}

	meter := s.meterProvider.Meter(instrumentationName)
	var err error
	if s.completed, err = meter.Int64Counter("checkout.completed",
		metric.WithDescription("Number of committed checkouts"),
	); err != nil {
		return nil, errors.Wrap(err, "create completed counter")
	}
	if s.failed, err = meter.Int64Counter("checkout.failed",
		metric.WithDescription("Number of failed checkouts by error kind"),
	); err != nil {
		return nil, errors.Wrap(err, "create failed counter")
	}

	return s, nil
}

// Checkout converts the user's cart into a completed order with one
// enrollment per course. When the request carries an idempotency key that
// already produced an order, that order is returned with Replayed set.
func (s *Service) Checkout(ctx context.Context, req Request) (res *Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.Bool("checkout.coupon", req.CouponCode != ""),
			attribute.Bool("checkout.idempotent", req.IdempotencyKey != ""),
		),
	)
	defer func() {
		if rerr != nil {
			kind := apperr.KindOf(rerr)
			span.RecordError(rerr)
			span.SetStatus(codes.Error, kind.String())
			s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
		} else if !res.Replayed {
			s.completed.Add(ctx, 1)
		}
		span.End()
	}()

	if req.IdempotencyKey == "" {
		return s.checkout(ctx, req)
	}
	return s.checkoutOnce(ctx, req)
}

func (s *Service) checkoutOnce(ctx context.Context, req Request) (*Result, error) {
	lg := zctx.From(ctx)
	scope := idempotencyScope + ":" + req.UserID

	number, ok, err := s.idem.Recall(ctx, scope, req.IdempotencyKey)
	if err != nil {
		return nil, errors.Wrap(err, "recall idempotency key")
	}
	if ok {
		return s.replay(ctx, req.UserID, number)
	}

	acquired, err := s.idem.Acquire(ctx, scope, req.IdempotencyKey)
	if err != nil {
		return nil, errors.Wrap(err, "acquire idempotency key")
	}
	if !acquired {
		return nil, ErrCheckoutInProgress
	}

	res, err := s.checkout(ctx, req)
	if err != nil {
		if relErr := s.idem.Release(ctx, scope, req.IdempotencyKey); relErr != nil {
			lg.Warn("Failed to release idempotency key", zap.Error(relErr))
		}
		return nil, err
	}

	if err := s.idem.Remember(ctx, scope, req.IdempotencyKey, res.Order.OrderNumber); err != nil {
		// The order is committed; a lost mapping only weakens replay.
		// Drop the lock so a retry is not held off until it expires.
		lg.Warn("Failed to remember idempotency key",
			zap.String("order_number", res.Order.OrderNumber),
			zap.Error(err),
		)
		if relErr := s.idem.Release(ctx, scope, req.IdempotencyKey); relErr != nil {
			lg.Warn("Failed to release idempotency key", zap.Error(relErr))
		}
	}
	return res, nil
}

func (s *Service) replay(ctx context.Context, userID, number string) (*Result, error) {
	o, err := s.orders.GetByNumber(ctx, userID, number)
	if err != nil {
		return nil, errors.Wrap(err, "load replayed order")
	}
	enrollments, err := s.enrollments.ListByOrder(ctx, o.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load replayed enrollments")
	}

	zctx.From(ctx).Info("Checkout replayed", zap.String("order_number", number))
	return &Result{Order: o, Enrollments: enrollments, Replayed: true}, nil
}

func (s *Service) checkout(ctx context.Context, req Request) (*Result, error) {
	lg := zctx.From(ctx)

	c, err := s.carts.Find(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, errors.Wrap(err, "load cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	subtotal := c.Total
	discount := decimal.Zero
	var redeemed *coupon.Coupon
	if req.CouponCode != "" {
		ev, err := s.coupons.Evaluate(ctx, req.CouponCode, subtotal)
		if err != nil {
			return nil, err
		}
		discount = ev.Discount
		redeemed = ev.Coupon
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	plan := &Plan{
		UserID:    req.UserID,
		CartID:    c.ID,
		Items:     c.Items,
		Subtotal:  subtotal.Round(2),
		Discount:  discount.Round(2),
		Total:     total.Round(2),
		Coupon:    redeemed,
		CreatedAt: s.now(),
	}

	for attempt := 1; ; attempt++ {
		number, err := NewOrderNumber(plan.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "generate order number")
		}
		plan.OrderID = uuid.NewString()
		plan.OrderNumber = number

		res, err := s.store.Commit(ctx, plan)
		if err == nil {
			lg.Info("Checkout completed",
				zap.String("order_number", res.Order.OrderNumber),
				zap.String("user_id", req.UserID),
				zap.Int("items", len(plan.Items)),
				zap.Stringer("total", plan.Total),
			)
			return res, nil
		}

		if errors.Is(err, ErrOrderNumberTaken) && attempt < s.maxAttempts {
			lg.Warn("Order number collision, retrying",
				zap.String("order_number", number),
				zap.Int("attempt", attempt),
			)
			continue
		}
		return nil, errors.Wrap(err, "commit checkout")
	}
}
