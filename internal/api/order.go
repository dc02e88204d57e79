package api

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/avelys/promo-engine/internal/domain/cart"
	"github.com/avelys/promo-engine/internal/domain/order"
)

type placeOrderRequest struct {
	CartID string `json:"cartId"`
}

type orderItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	Items        []orderItemResponse `json:"items"`
	Subtotal     float64             `json:"subtotal"`
	Discount     float64             `json:"discount"`
	Total        float64             `json:"total"`
	CouponCode   string              `json:"couponCode,omitempty"`
	FreeShipping bool                `json:"freeShipping,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice.InexactFloat64(),
			Quantity:  it.Quantity,
		}
	}
	return orderResponse{
		ID:           o.ID,
		Items:        items,
		Subtotal:     o.Subtotal.InexactFloat64(),
		Discount:     o.Discount.InexactFloat64(),
		Total:        o.Total.InexactFloat64(),
		CouponCode:   o.CouponCode,
		FreeShipping: o.FreeShipping,
		CreatedAt:    o.CreatedAt,
	}
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if !readJSON(w, r, &req) {
		return
	}

	o, err := h.orders.Checkout(r.Context(), req.CartID)
	if err != nil {
		var couponErr *order.CouponInvalidError
		switch {
		case errors.As(err, &couponErr):
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Code:    http.StatusUnprocessableEntity,
				Message: couponErr.Rejection.Message(),
				Reason:  string(couponErr.Rejection.Reason),
			})
		case errors.Is(err, order.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "cart has no items")
		case errors.Is(err, cart.ErrNotFound):
			writeError(w, http.StatusNotFound, "cart not found")
		default:
			writeInternalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}
