package api

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/avelys/promo-engine/internal/domain/cart"
	"github.com/avelys/promo-engine/internal/domain/coupon"
)

type couponCartRequest struct {
	CartID string `json:"cartId"`
	Code   string `json:"code"`
}

type validateCouponResponse struct {
	Valid          bool    `json:"valid"`
	CouponCode     string  `json:"couponCode,omitempty"`
	Kind           string  `json:"kind,omitempty"`
	Value          float64 `json:"value,omitempty"`
	Description    string  `json:"description,omitempty"`
	DiscountAmount float64 `json:"discountAmount,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	Message        string  `json:"message,omitempty"`
}

type applyCouponResponse struct {
	CouponCode     string  `json:"couponCode"`
	DiscountAmount float64 `json:"discountAmount"`
	CartTotal      float64 `json:"cartTotal"`
	FinalTotal     float64 `json:"finalTotal"`
	Message        string  `json:"message"`
}

// validateCoupon is the read-only dry run: rejections are a normal outcome
// here, so they come back as 200 with valid=false rather than an error
// status.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponCartRequest
	if !readJSON(w, r, &req) {
		return
	}

	eval, err := h.carts.ValidateCoupon(r.Context(), req.CartID, req.Code)
	if err != nil {
		if rej, ok := coupon.AsRejection(err); ok {
			writeJSON(w, http.StatusOK, validateCouponResponse{
				Valid:   false,
				Reason:  string(rej.Reason),
				Message: rej.Message(),
			})
			return
		}
		if errors.Is(err, cart.ErrNotFound) {
			writeError(w, http.StatusNotFound, "cart not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, validateCouponResponse{
		Valid:          true,
		CouponCode:     eval.Code,
		Kind:           string(eval.Kind),
		Value:          eval.Value.InexactFloat64(),
		Description:    eval.Description,
		DiscountAmount: eval.DiscountAmount.InexactFloat64(),
	})
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponCartRequest
	if !readJSON(w, r, &req) {
		return
	}

	c, eval, err := h.carts.ApplyCoupon(r.Context(), req.CartID, req.Code)
	if err != nil {
		h.writeCouponError(w, r, err)
		return
	}

	totals := cart.TotalsFor(c, eval.DiscountAmount)
	writeJSON(w, http.StatusOK, applyCouponResponse{
		CouponCode:     eval.Code,
		DiscountAmount: totals.Discount.InexactFloat64(),
		CartTotal:      totals.Subtotal.InexactFloat64(),
		FinalTotal:     totals.Total.InexactFloat64(),
		Message:        "coupon applied",
	})
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponCartRequest
	if !readJSON(w, r, &req) {
		return
	}

	c, err := h.carts.RemoveCoupon(r.Context(), req.CartID)
	if err != nil {
		if errors.Is(err, cart.ErrNoCoupon) {
			writeError(w, http.StatusUnprocessableEntity, "no coupon applied to cart")
			return
		}
		h.writeCouponError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// writeCouponError maps coupon-flow errors: rejections become 422 with the
// machine-readable reason, missing carts 404, anything else a fault.
func (h *Handler) writeCouponError(w http.ResponseWriter, r *http.Request, err error) {
	if rej, ok := coupon.AsRejection(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code:    http.StatusUnprocessableEntity,
			Message: rej.Message(),
			Reason:  string(rej.Reason),
		})
		return
	}
	if errors.Is(err, cart.ErrNotFound) {
		writeError(w, http.StatusNotFound, "cart not found")
		return
	}
	writeInternalError(w, r, err)
}
