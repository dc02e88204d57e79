package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/avelys/promo-engine/internal/domain/cart"
	"github.com/avelys/promo-engine/internal/domain/product"
)

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type putCartRequest struct {
	UserID string            `json:"userId"`
	Items  []cartItemRequest `json:"items"`
}

type cartItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	UnitPrice float64 `json:"unitPrice"`
	SalePrice float64 `json:"salePrice,omitempty"`
	Quantity  int     `json:"quantity"`
}

type appliedCouponResponse struct {
	Code           string  `json:"code"`
	Kind           string  `json:"kind"`
	Value          float64 `json:"value"`
	DiscountAmount float64 `json:"discountAmount"`
}

type cartResponse struct {
	ID       string                 `json:"id"`
	UserID   string                 `json:"userId,omitempty"`
	Items    []cartItemResponse     `json:"items"`
	Coupon   *appliedCouponResponse `json:"coupon,omitempty"`
	Subtotal float64                `json:"subtotal"`
	Discount float64                `json:"discount"`
	Total    float64                `json:"total"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	items := make([]cartItemResponse, len(c.Items))
	for i, li := range c.Items {
		items[i] = cartItemResponse{
			ProductID: li.ProductID,
			Name:      li.Name,
			Category:  li.Category,
			UnitPrice: li.UnitPrice.InexactFloat64(),
			SalePrice: li.SalePrice.InexactFloat64(),
			Quantity:  li.Quantity,
		}
	}

	discount := decimal.Zero
	var applied *appliedCouponResponse
	if c.Applied != nil {
		discount = c.Applied.DiscountAmount
		applied = &appliedCouponResponse{
			Code:           c.Applied.Code,
			Kind:           string(c.Applied.Kind),
			Value:          c.Applied.Value.InexactFloat64(),
			DiscountAmount: c.Applied.DiscountAmount.InexactFloat64(),
		}
	}

	totals := cart.TotalsFor(c, discount)
	return cartResponse{
		ID:       c.ID,
		UserID:   c.UserID,
		Items:    items,
		Coupon:   applied,
		Subtotal: totals.Subtotal.InexactFloat64(),
		Discount: totals.Discount.InexactFloat64(),
		Total:    totals.Total.InexactFloat64(),
	}
}

func (h *Handler) putCart(w http.ResponseWriter, r *http.Request) {
	var req putCartRequest
	if !readJSON(w, r, &req) {
		return
	}

	items := make([]cart.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = cart.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	c, err := h.carts.SetItems(r.Context(), r.PathValue("id"), req.UserID, items)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrInvalidQuantity):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, product.ErrNotFound):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeInternalError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			writeError(w, http.StatusNotFound, "cart not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}
