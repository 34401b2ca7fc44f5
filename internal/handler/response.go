package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
	"github.com/xenking/academy-commerce/internal/domain/cart"
	"github.com/xenking/academy-commerce/internal/domain/catalog"
	"github.com/xenking/academy-commerce/internal/domain/checkout"
	"github.com/xenking/academy-commerce/internal/domain/coupon"
	"github.com/xenking/academy-commerce/internal/domain/enrollment"
	"github.com/xenking/academy-commerce/internal/domain/order"
)

// statusByKind is the single mapping from domain error kinds to HTTP status
// codes. Kinds missing here are answered with 500.
var statusByKind = map[apperr.Kind]int{
	apperr.NotFound:     http.StatusNotFound,
	apperr.Validation:   http.StatusBadRequest,
	apperr.Conflict:     http.StatusConflict,
	apperr.Unauthorized: http.StatusUnauthorized,
	apperr.Forbidden:    http.StatusForbidden,
}

const internalErrorMessage = "internal server error"

// writeError answers with the envelope for err. Errors without a client-facing
// kind are logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind, msg, ok := apperr.Describe(err)
	status, known := statusByKind[kind]
	if !ok || !known {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		status, msg = http.StatusInternalServerError, internalErrorMessage
	}
	writeFailure(w, status, msg)
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, e.Bytes())
}

// writeData answers with {"success":true,"data":<data>}.
func writeData(w http.ResponseWriter, status int, data func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
		e.Field("data", data)
	})
	writeJSON(w, status, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.RawStr(d.StringFixed(2))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeOptTime(e *jx.Encoder, t *time.Time) {
	if t == nil {
		e.Null()
		return
	}
	encodeTime(e, *t)
}

func encodeOptStr(e *jx.Encoder, s *string) {
	if s == nil {
		e.Null()
		return
	}
	e.Str(*s)
}

func encodeCourse(e *jx.Encoder, c catalog.Summary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.ID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(c.Title) })
		e.Field("slug", func(e *jx.Encoder) { e.Str(c.Slug) })
		e.Field("image", func(e *jx.Encoder) { e.Str(c.Image) })
		e.Field("price", func(e *jx.Encoder) { encodeMoney(e, c.Price) })
	})
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) {
			// Carts are created lazily; an unpersisted empty cart has no id.
			if c.ID == "" {
				e.Null()
				return
			}
			e.Str(c.ID)
		})
		e.Field("userId", func(e *jx.Encoder) { e.Str(c.UserID) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, c.Total) })
		e.Field("itemCount", func(e *jx.Encoder) { e.Int(len(c.Items)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range c.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
						e.Field("courseId", func(e *jx.Encoder) { e.Str(it.CourseID) })
						e.Field("price", func(e *jx.Encoder) { encodeMoney(e, it.Price) })
						e.Field("addedAt", func(e *jx.Encoder) { encodeTime(e, it.AddedAt) })
						e.Field("course", func(e *jx.Encoder) { encodeCourse(e, it.Course) })
					})
				}
			})
		})
	})
}

func encodeEvaluation(e *jx.Encoder, ev *coupon.Evaluation) {
	c := ev.Coupon
	e.Obj(func(e *jx.Encoder) {
		e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, ev.Discount) })
		e.Field("coupon", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
				e.Field("type", func(e *jx.Encoder) { e.Str(string(c.Type)) })
				e.Field("value", func(e *jx.Encoder) { encodeMoney(e, c.Value) })
				if c.MaxDiscount.Valid {
					e.Field("maxDiscount", func(e *jx.Encoder) { encodeMoney(e, c.MaxDiscount.Decimal) })
				}
				if c.MinPurchase.Valid {
					e.Field("minPurchase", func(e *jx.Encoder) { encodeMoney(e, c.MinPurchase.Decimal) })
				}
			})
		})
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("orderNumber", func(e *jx.Encoder) { e.Str(o.OrderNumber) })
		e.Field("userId", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("subtotal", func(e *jx.Encoder) { encodeMoney(e, o.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { encodeMoney(e, o.Discount) })
		e.Field("total", func(e *jx.Encoder) { encodeMoney(e, o.Total) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("couponId", func(e *jx.Encoder) { encodeOptStr(e, o.CouponID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("id", func(e *jx.Encoder) { e.Str(it.ID) })
						e.Field("courseId", func(e *jx.Encoder) { e.Str(it.CourseID) })
						e.Field("title", func(e *jx.Encoder) { e.Str(it.Title) })
						e.Field("price", func(e *jx.Encoder) { encodeMoney(e, it.Price) })
					})
				}
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
	})
}

func encodeEnrollments(e *jx.Encoder, list []enrollment.Enrollment) {
	e.Arr(func(e *jx.Encoder) {
		for i := range list {
			en := &list[i]
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(en.ID) })
				e.Field("courseId", func(e *jx.Encoder) { e.Str(en.CourseID) })
				e.Field("orderId", func(e *jx.Encoder) { encodeOptStr(e, en.OrderID) })
				e.Field("progress", func(e *jx.Encoder) { e.Int(en.Progress) })
				e.Field("certificateIssued", func(e *jx.Encoder) { e.Bool(en.CertificateIssued) })
				e.Field("completedAt", func(e *jx.Encoder) { encodeOptTime(e, en.CompletedAt) })
				e.Field("enrolledAt", func(e *jx.Encoder) { encodeTime(e, en.EnrolledAt) })
				e.Field("course", func(e *jx.Encoder) { encodeCourse(e, en.Course) })
			})
		}
	})
}

func encodeCheckout(e *jx.Encoder, res *checkout.Result) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("order", func(e *jx.Encoder) { encodeOrder(e, res.Order) })
		e.Field("enrollments", func(e *jx.Encoder) { encodeEnrollments(e, res.Enrollments) })
	})
}

func encodeOrderList(e *jx.Encoder, list *order.List) {
	pages := 0
	if list.Limit > 0 {
		pages = (list.Total + list.Limit - 1) / list.Limit
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for i := range list.Orders {
					encodeOrder(e, &list.Orders[i])
				}
			})
		})
		e.Field("pagination", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("page", func(e *jx.Encoder) { e.Int(list.Page) })
				e.Field("limit", func(e *jx.Encoder) { e.Int(list.Limit) })
				e.Field("total", func(e *jx.Encoder) { e.Int(list.Total) })
				e.Field("totalPages", func(e *jx.Encoder) { e.Int(pages) })
			})
		})
	})
}
