// Package api exposes the HTTP surface of the promo engine: the public cart,
// coupon, product, and order endpoints plus the API-key-guarded admin CRUD.
package api

import (
	"net/http"

	"github.com/avelys/promo-engine/internal/domain/auth"
	"github.com/avelys/promo-engine/internal/domain/cart"
	"github.com/avelys/promo-engine/internal/domain/coupon"
	"github.com/avelys/promo-engine/internal/domain/order"
	"github.com/avelys/promo-engine/internal/domain/product"
)

// Handler holds the services and repositories behind the HTTP endpoints.
type Handler struct {
	products product.Repository
	carts    *cart.Service
	orders   *order.Service
	coupons  coupon.Store
	apikeys  auth.Repository
	pepper   []byte
}

// NewHandler constructs a Handler with the required domain dependencies.
// pepper is the HMAC key used to hash incoming API keys before lookup.
func NewHandler(
	products product.Repository,
	carts *cart.Service,
	orders *order.Service,
	coupons coupon.Store,
	apikeys auth.Repository,
	pepper []byte,
) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		orders:   orders,
		coupons:  coupons,
		apikeys:  apikeys,
		pepper:   pepper,
	}
}

// Routes builds the ServeMux with every endpoint registered. Checkout and the
// admin surface require a valid API key; everything else is public.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)

	mux.HandleFunc("PUT /api/carts/{id}", h.putCart)
	mux.HandleFunc("GET /api/carts/{id}", h.getCart)

	mux.HandleFunc("POST /api/coupons/validate", h.validateCoupon)
	mux.HandleFunc("POST /api/coupons/apply", h.applyCoupon)
	mux.HandleFunc("POST /api/coupons/remove", h.removeCoupon)

	mux.Handle("POST /api/orders", h.requireAPIKey(http.HandlerFunc(h.placeOrder)))

	mux.Handle("GET /api/admin/coupons", h.requireAPIKey(http.HandlerFunc(h.adminListCoupons)))
	mux.Handle("POST /api/admin/coupons", h.requireAPIKey(http.HandlerFunc(h.adminCreateCoupon)))
	mux.Handle("GET /api/admin/coupons/{code}", h.requireAPIKey(http.HandlerFunc(h.adminGetCoupon)))
	mux.Handle("PUT /api/admin/coupons/{code}", h.requireAPIKey(http.HandlerFunc(h.adminUpdateCoupon)))
	mux.Handle("DELETE /api/admin/coupons/{code}", h.requireAPIKey(http.HandlerFunc(h.adminDeleteCoupon)))

	return mux
}
