// Package handler exposes the commerce core over REST.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/academy-commerce/internal/domain/auth"
	"github.com/xenking/academy-commerce/internal/domain/cart"
	"github.com/xenking/academy-commerce/internal/domain/checkout"
	"github.com/xenking/academy-commerce/internal/domain/coupon"
	"github.com/xenking/academy-commerce/internal/domain/enrollment"
	"github.com/xenking/academy-commerce/internal/domain/order"
)

// CartService is implemented by *cart.Service.
type CartService interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	AddItem(ctx context.Context, userID, courseID string) (*cart.Cart, error)
	RemoveItem(ctx context.Context, userID, courseID string) (*cart.Cart, error)
	Clear(ctx context.Context, userID string) (*cart.Cart, error)
}

// CouponEvaluator is implemented by *coupon.Evaluator.
type CouponEvaluator interface {
	Evaluate(ctx context.Context, code string, subtotal decimal.Decimal) (*coupon.Evaluation, error)
}

// CheckoutService is implemented by *checkout.Service.
type CheckoutService interface {
	Checkout(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

// OrderLedger is implemented by *order.Ledger.
type OrderLedger interface {
	ListForUser(ctx context.Context, userID string, page order.Page) (*order.List, error)
}

// EnrollmentService is implemented by *enrollment.Service.
type EnrollmentService interface {
	ListForUser(ctx context.Context, userID string) ([]enrollment.Enrollment, error)
	CheckAccess(ctx context.Context, userID, courseID string) error
}

// Handler serves the /api routes.
type Handler struct {
	carts       CartService
	coupons     CouponEvaluator
	checkouts   CheckoutService
	orders      OrderLedger
	enrollments EnrollmentService
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	carts CartService,
	coupons CouponEvaluator,
	checkouts CheckoutService,
	orders OrderLedger,
	enrollments EnrollmentService,
) *Handler {
	return &Handler{
		carts:       carts,
		coupons:     coupons,
		checkouts:   checkouts,
		orders:      orders,
		enrollments: enrollments,
	}
}

// NewRouter returns a chi router with the /api routes behind RequireAuth.
// middlewares run inside the router for every request, matched or not.
func NewRouter(h *Handler, verifier auth.Verifier, middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares...)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAuth(verifier))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/", h.AddToCart)
			r.Delete("/", h.ClearCart)
			r.Delete("/{courseId}", h.RemoveFromCart)
		})
		r.Post("/coupons/validate", h.ValidateCoupon)
		r.Post("/checkout", h.Checkout)
		r.Get("/orders", h.ListOrders)
		r.Get("/enrollments", h.ListEnrollments)
		r.Get("/courses/{courseId}/access", h.CourseAccess)
	})
	return r
}
