package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelys/promo-engine/internal/domain/auth"
	"github.com/avelys/promo-engine/internal/domain/cart"
	"github.com/avelys/promo-engine/internal/domain/coupon"
	"github.com/avelys/promo-engine/internal/domain/order"
	"github.com/avelys/promo-engine/internal/domain/product"
	"github.com/avelys/promo-engine/internal/storage/memory"
)

const (
	testAPIKey = "test-api-key"
	testPepper = "test-pepper"
)

func hashKey(key string) string {
	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestMux(t *testing.T) (*http.ServeMux, *memory.CouponStore) {
	t.Helper()

	products := memory.NewProductStore(
		product.Product{ID: "p1", Name: "Espresso Beans", Category: "coffee", Price: decimal.NewFromInt(25)},
		product.Product{ID: "p2", Name: "Ceramic Mug", Category: "accessories", Price: decimal.NewFromInt(12)},
	)
	coupons := memory.NewCouponStore()
	carts := memory.NewCartStore()
	orders := memory.NewOrderStore()
	apikeys := memory.NewAPIKeyStore(auth.APIKey{
		ID: "test", KeyHash: hashKey(testAPIKey), Name: "test key",
	})

	require.NoError(t, coupons.Create(context.Background(), &coupon.Coupon{
		Code: "SAVE10", Kind: coupon.KindPercentage,
		Value:       decimal.NewFromInt(10),
		MinPurchase: decimal.NewFromInt(50),
		MaxDiscount: decimal.NewFromInt(20),
		Description: "10% off orders over 50",
		Active:      true,
	}))

	engine := coupon.NewEngine(coupons)
	cartService := cart.NewService(carts, products, engine)
	orderService := order.NewService(carts, engine, orders)

	h := NewHandler(products, cartService, orderService, coupons, apikeys, []byte(testPepper))
	return h.Routes(), coupons
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func putCart(t *testing.T, mux *http.ServeMux, id string, items []map[string]any) cartResponse {
	t.Helper()

	rec := doJSON(t, mux, http.MethodPut, "/api/carts/"+id, map[string]any{
		"userId": "u1",
		"items":  items,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp cartResponse
	decodeBody(t, rec, &resp)
	return resp
}

func TestProducts(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/products", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []productResponse
	decodeBody(t, rec, &list)
	assert.Len(t, list, 2)

	rec = doJSON(t, mux, http.MethodGet, "/api/products/p1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p productResponse
	decodeBody(t, rec, &p)
	assert.Equal(t, "Espresso Beans", p.Name)

	rec = doJSON(t, mux, http.MethodGet, "/api/products/ghost", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartLifecycle(t *testing.T) {
	mux, _ := newTestMux(t)

	c := putCart(t, mux, "cart-1", []map[string]any{
		{"productId": "p1", "quantity": 2},
		{"productId": "p2", "quantity": 1},
	})
	assert.Equal(t, "cart-1", c.ID)
	assert.InDelta(t, 62.0, c.Subtotal, 0.001)

	rec := doJSON(t, mux, http.MethodGet, "/api/carts/cart-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/carts/ghost", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, mux, http.MethodPut, "/api/carts/cart-1", map[string]any{
		"items": []map[string]any{{"productId": "p1", "quantity": 0}},
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPut, "/api/carts/cart-1", map[string]any{
		"items": []map[string]any{{"productId": "ghost", "quantity": 1}},
	}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestValidateCoupon(t *testing.T) {
	mux, _ := newTestMux(t)
	putCart(t, mux, "cart-1", []map[string]any{{"productId": "p1", "quantity": 4}})

	rec := doJSON(t, mux, http.MethodPost, "/api/coupons/validate",
		map[string]string{"cartId": "cart-1", "code": "save10"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp validateCouponResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Valid)
	assert.Equal(t, "SAVE10", resp.CouponCode)
	assert.InDelta(t, 10.0, resp.DiscountAmount, 0.001)

	// Rejections are a 200 with valid=false, not an error status.
	rec = doJSON(t, mux, http.MethodPost, "/api/coupons/validate",
		map[string]string{"cartId": "cart-1", "code": "BOGUS"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Valid)
	assert.Equal(t, string(coupon.ReasonNotFound), resp.Reason)
	assert.NotEmpty(t, resp.Message)

	rec = doJSON(t, mux, http.MethodPost, "/api/coupons/validate",
		map[string]string{"cartId": "ghost", "code": "SAVE10"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplyAndRemoveCoupon(t *testing.T) {
	mux, _ := newTestMux(t)
	putCart(t, mux, "cart-1", []map[string]any{{"productId": "p1", "quantity": 4}})

	rec := doJSON(t, mux, http.MethodPost, "/api/coupons/apply",
		map[string]string{"cartId": "cart-1", "code": "SAVE10"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var applied applyCouponResponse
	decodeBody(t, rec, &applied)
	assert.Equal(t, "SAVE10", applied.CouponCode)
	assert.InDelta(t, 10.0, applied.DiscountAmount, 0.001)
	assert.InDelta(t, 100.0, applied.CartTotal, 0.001)
	assert.InDelta(t, 90.0, applied.FinalTotal, 0.001)

	var c cartResponse
	rec = doJSON(t, mux, http.MethodGet, "/api/carts/cart-1", nil, "")
	decodeBody(t, rec, &c)
	require.NotNil(t, c.Coupon)
	assert.Equal(t, "SAVE10", c.Coupon.Code)

	// Below the minimum purchase: 422 with the machine-readable reason.
	putCart(t, mux, "cart-2", []map[string]any{{"productId": "p2", "quantity": 1}})
	rec = doJSON(t, mux, http.MethodPost, "/api/coupons/apply",
		map[string]string{"cartId": "cart-2", "code": "SAVE10"}, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var errResp errorResponse
	decodeBody(t, rec, &errResp)
	assert.Equal(t, string(coupon.ReasonMinimumPurchaseNotMet), errResp.Reason)

	rec = doJSON(t, mux, http.MethodPost, "/api/coupons/remove",
		map[string]string{"cartId": "cart-1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	c = cartResponse{}
	decodeBody(t, rec, &c)
	assert.Nil(t, c.Coupon)

	rec = doJSON(t, mux, http.MethodPost, "/api/coupons/remove",
		map[string]string{"cartId": "cart-1"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPlaceOrder(t *testing.T) {
	mux, coupons := newTestMux(t)
	putCart(t, mux, "cart-1", []map[string]any{{"productId": "p1", "quantity": 4}})

	rec := doJSON(t, mux, http.MethodPost, "/api/coupons/apply",
		map[string]string{"cartId": "cart-1", "code": "SAVE10"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Checkout requires an API key.
	rec = doJSON(t, mux, http.MethodPost, "/api/orders",
		map[string]string{"cartId": "cart-1"}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/orders",
		map[string]string{"cartId": "cart-1"}, testAPIKey)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var o orderResponse
	decodeBody(t, rec, &o)
	assert.Equal(t, "SAVE10", o.CouponCode)
	assert.InDelta(t, 100.0, o.Subtotal, 0.001)
	assert.InDelta(t, 10.0, o.Discount, 0.001)
	assert.InDelta(t, 90.0, o.Total, 0.001)

	// The commit consumed one use.
	stored, err := coupons.FindByCode(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UsageCount)

	// The cart is gone after checkout.
	rec = doJSON(t, mux, http.MethodGet, "/api/carts/cart-1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/orders",
		map[string]string{"cartId": "cart-1"}, testAPIKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaceOrderCouponBecameInvalid(t *testing.T) {
	mux, coupons := newTestMux(t)
	putCart(t, mux, "cart-1", []map[string]any{{"productId": "p1", "quantity": 4}})

	rec := doJSON(t, mux, http.MethodPost, "/api/coupons/apply",
		map[string]string{"cartId": "cart-1", "code": "SAVE10"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// The coupon is disabled between apply and checkout.
	stored, err := coupons.FindByCode(context.Background(), "SAVE10")
	require.NoError(t, err)
	stored.Active = false
	require.NoError(t, coupons.Update(context.Background(), stored))

	rec = doJSON(t, mux, http.MethodPost, "/api/orders",
		map[string]string{"cartId": "cart-1"}, testAPIKey)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var errResp errorResponse
	decodeBody(t, rec, &errResp)
	assert.Equal(t, string(coupon.ReasonInactive), errResp.Reason)

	// The cart survives for the customer to review.
	rec = doJSON(t, mux, http.MethodGet, "/api/carts/cart-1", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminCouponCRUD(t *testing.T) {
	mux, _ := newTestMux(t)

	// The admin surface is closed without a valid key.
	rec := doJSON(t, mux, http.MethodGet, "/api/admin/coupons", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(t, mux, http.MethodGet, "/api/admin/coupons", nil, "wrong-key")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	until := time.Now().Add(24 * time.Hour).UTC()
	body := map[string]any{
		"code":       "flash50",
		"kind":       "percentage",
		"value":      50,
		"usageLimit": 100,
		"validUntil": until.Format(time.RFC3339),
	}
	rec = doJSON(t, mux, http.MethodPost, "/api/admin/coupons", body, testAPIKey)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created adminCouponResponse
	decodeBody(t, rec, &created)
	assert.Equal(t, "FLASH50", created.Code, "codes are stored normalized")
	assert.Equal(t, string(coupon.StateLive), created.State)

	// Case-insensitive uniqueness.
	body["code"] = "FLASH50"
	rec = doJSON(t, mux, http.MethodPost, "/api/admin/coupons", body, testAPIKey)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/admin/coupons/flash50", nil, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodPut, "/api/admin/coupons/flash50", map[string]any{
		"kind":  "percentage",
		"value": 40,
	}, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated adminCouponResponse
	decodeBody(t, rec, &updated)
	assert.InDelta(t, 40.0, updated.Value, 0.001)

	rec = doJSON(t, mux, http.MethodGet, "/api/admin/coupons", nil, testAPIKey)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []adminCouponResponse
	decodeBody(t, rec, &list)
	assert.Len(t, list, 2)

	rec = doJSON(t, mux, http.MethodDelete, "/api/admin/coupons/FLASH50", nil, testAPIKey)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doJSON(t, mux, http.MethodDelete, "/api/admin/coupons/FLASH50", nil, testAPIKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCouponValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	cases := []map[string]any{
		{"code": "BAD", "kind": "bogo", "value": 10},
		{"code": "BAD", "kind": "percentage", "value": 120},
		{"code": "BAD", "kind": "percentage", "value": -5},
		{"code": "", "kind": "percentage", "value": 10},
		{"code": "BAD", "kind": "fixed_amount", "value": 5, "usageLimit": -1},
	}
	for _, body := range cases {
		rec := doJSON(t, mux, http.MethodPost, "/api/admin/coupons", body, testAPIKey)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body: %v", body)
	}
}

func TestMalformedBody(t *testing.T) {
	mux, _ := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/coupons/validate", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
