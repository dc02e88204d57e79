package api

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/avelys/promo-engine/internal/domain/coupon"
)

type adminCouponRequest struct {
	Code        string  `json:"code"`
	Kind        string  `json:"kind"`
	Value       float64 `json:"value"`
	Description string  `json:"description"`

	MinPurchase float64 `json:"minPurchase"`
	MaxDiscount float64 `json:"maxDiscount"`

	ValidFrom  *time.Time `json:"validFrom"`
	ValidUntil *time.Time `json:"validUntil"`

	// Active defaults to true when omitted on create.
	Active *bool `json:"active"`

	UsageLimit     int  `json:"usageLimit"`
	OneTimePerUser bool `json:"oneTimePerUser"`

	ApplicableProducts   []string `json:"applicableProducts"`
	ExcludedProducts     []string `json:"excludedProducts"`
	ApplicableCategories []string `json:"applicableCategories"`
	AllowedUsers         []string `json:"allowedUsers"`
}

type adminCouponResponse struct {
	Code        string  `json:"code"`
	Kind        string  `json:"kind"`
	Value       float64 `json:"value"`
	Description string  `json:"description,omitempty"`

	MinPurchase float64 `json:"minPurchase,omitempty"`
	MaxDiscount float64 `json:"maxDiscount,omitempty"`

	ValidFrom  *time.Time `json:"validFrom,omitempty"`
	ValidUntil *time.Time `json:"validUntil,omitempty"`

	Active         bool `json:"active"`
	UsageLimit     int  `json:"usageLimit,omitempty"`
	UsageCount     int  `json:"usageCount"`
	OneTimePerUser bool `json:"oneTimePerUser,omitempty"`

	ApplicableProducts   []string `json:"applicableProducts,omitempty"`
	ExcludedProducts     []string `json:"excludedProducts,omitempty"`
	ApplicableCategories []string `json:"applicableCategories,omitempty"`
	AllowedUsers         []string `json:"allowedUsers,omitempty"`

	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toAdminCouponResponse(c *coupon.Coupon, now time.Time) adminCouponResponse {
	return adminCouponResponse{
		Code:                 c.Code,
		Kind:                 string(c.Kind),
		Value:                c.Value.InexactFloat64(),
		Description:          c.Description,
		MinPurchase:          c.MinPurchase.InexactFloat64(),
		MaxDiscount:          c.MaxDiscount.InexactFloat64(),
		ValidFrom:            c.ValidFrom,
		ValidUntil:           c.ValidUntil,
		Active:               c.Active,
		UsageLimit:           c.UsageLimit,
		UsageCount:           c.UsageCount,
		OneTimePerUser:       c.OneTimePerUser,
		ApplicableProducts:   c.ApplicableProducts,
		ExcludedProducts:     c.ExcludedProducts,
		ApplicableCategories: c.ApplicableCategories,
		AllowedUsers:         c.AllowedUsers,
		State:                string(c.StateAt(now)),
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

// toCoupon validates the request and maps it onto a domain coupon. Usage
// bookkeeping fields are never populated from the request.
func (req *adminCouponRequest) toCoupon() (*coupon.Coupon, string) {
	kind := coupon.DiscountKind(req.Kind)
	switch kind {
	case coupon.KindPercentage, coupon.KindFixedAmount, coupon.KindFreeShipping:
	default:
		return nil, "kind must be one of percentage, fixed_amount, free_shipping"
	}

	if req.Value < 0 {
		return nil, "value must not be negative"
	}
	if kind == coupon.KindPercentage && req.Value > 100 {
		return nil, "percentage value must not exceed 100"
	}
	if req.MinPurchase < 0 || req.MaxDiscount < 0 {
		return nil, "minPurchase and maxDiscount must not be negative"
	}
	if req.UsageLimit < 0 {
		return nil, "usageLimit must not be negative"
	}
	if req.ValidFrom != nil && req.ValidUntil != nil && !req.ValidFrom.Before(*req.ValidUntil) {
		return nil, "validFrom must be before validUntil"
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	return &coupon.Coupon{
		Code:                 coupon.NormalizeCode(req.Code),
		Kind:                 kind,
		Value:                decimal.NewFromFloat(req.Value),
		Description:          req.Description,
		MinPurchase:          decimal.NewFromFloat(req.MinPurchase),
		MaxDiscount:          decimal.NewFromFloat(req.MaxDiscount),
		ValidFrom:            req.ValidFrom,
		ValidUntil:           req.ValidUntil,
		Active:               active,
		UsageLimit:           req.UsageLimit,
		OneTimePerUser:       req.OneTimePerUser,
		ApplicableProducts:   req.ApplicableProducts,
		ExcludedProducts:     req.ExcludedProducts,
		ApplicableCategories: req.ApplicableCategories,
		AllowedUsers:         req.AllowedUsers,
	}, ""
}

func (h *Handler) adminListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	now := time.Now()
	resp := make([]adminCouponResponse, len(coupons))
	for i := range coupons {
		resp[i] = toAdminCouponResponse(&coupons[i], now)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) adminCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req adminCouponRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	c, msg := req.toCoupon()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.coupons.Create(r.Context(), c); err != nil {
		if errors.Is(err, coupon.ErrCodeExists) {
			writeError(w, http.StatusConflict, "coupon code already exists")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdminCouponResponse(c, time.Now()))
}

func (h *Handler) adminGetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.FindByCode(r.Context(), coupon.NormalizeCode(r.PathValue("code")))
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdminCouponResponse(c, time.Now()))
}

func (h *Handler) adminUpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req adminCouponRequest
	if !readJSON(w, r, &req) {
		return
	}

	c, msg := req.toCoupon()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	// The path names the coupon; a code in the body is ignored.
	c.Code = coupon.NormalizeCode(r.PathValue("code"))

	if err := h.coupons.Update(r.Context(), c); err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	updated, err := h.coupons.FindByCode(r.Context(), c.Code)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdminCouponResponse(updated, time.Now()))
}

func (h *Handler) adminDeleteCoupon(w http.ResponseWriter, r *http.Request) {
	err := h.coupons.Delete(r.Context(), coupon.NormalizeCode(r.PathValue("code")))
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
