package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
	"github.com/xenking/academy-commerce/internal/domain/checkout"
	"github.com/xenking/academy-commerce/internal/domain/order"
)

// IdempotencyKeyHeader optionally makes a checkout safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// Checkout turns the caller's cart into an order. The body {"couponCode"} is
// optional. A replayed idempotent checkout answers 200 instead of 201.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	req := checkout.Request{
		UserID:         userID(r),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)),
	}
	if len(req.IdempotencyKey) > maxIdempotencyKeyLen {
		writeError(w, r, apperr.New(apperr.Validation, "idempotency key is too long"))
		return
	}
	err := decodeObject(w, r, true, func(d *jx.Decoder, key string) error {
		if key != "couponCode" {
			return d.Skip()
		}
		var err error
		req.CouponCode, err = decodeString(d, key)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.checkouts.Checkout(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	writeData(w, status, func(e *jx.Encoder) { encodeCheckout(e, res) })
}

// ListOrders returns one page of the caller's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := h.orders.ListForUser(r.Context(), userID(r), order.Page{Page: page, Limit: limit})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, func(e *jx.Encoder) { encodeOrderList(e, list) })
}

// queryInt parses an optional integer query parameter. Absent is 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.New(apperr.Validation, name+" must be an integer")
	}
	return v, nil
}
