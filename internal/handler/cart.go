package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/academy-commerce/internal/domain/cart"
)

// GetCart returns the caller's cart, creating it on first access.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, c)
}

// AddToCart adds {"courseId"} to the caller's cart.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var courseID string
	err := decodeObject(w, r, false, func(d *jx.Decoder, key string) error {
		if key != "courseId" {
			return d.Skip()
		}
		var err error
		courseID, err = decodeString(d, key)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.carts.AddItem(r.Context(), userID(r), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, c)
}

// RemoveFromCart removes the course in the URL from the caller's cart.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.RemoveItem(r.Context(), userID(r), chi.URLParam(r, "courseId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, c)
}

// ClearCart empties the caller's cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Clear(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, c)
}

func writeCart(w http.ResponseWriter, c *cart.Cart) {
	writeData(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}
