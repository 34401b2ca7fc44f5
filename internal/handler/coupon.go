package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
)

var errSubtotalRequired = apperr.New(apperr.Validation, "subtotal is required")

// ValidateCoupon prices {"code","subtotal"} without redeeming the coupon.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var (
		code        string
		subtotal    decimal.Decimal
		hasSubtotal bool
	)
	err := decodeObject(w, r, false, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			code, err = decodeString(d, key)
		case "subtotal":
			subtotal, err = decodeDecimal(d, key)
			hasSubtotal = true
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && !hasSubtotal {
		err = errSubtotalRequired
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	ev, err := h.coupons.Evaluate(r.Context(), code, subtotal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, func(e *jx.Encoder) { encodeEvaluation(e, ev) })
}
