package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllow(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 3, Window: time.Minute})
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, _, ok := l.allow("client", base.Add(time.Duration(i)*time.Second))
		require.True(t, ok, "request %d should be allowed", i+1)
	}

	remaining, _, ok := l.allow("client", base.Add(3*time.Second))
	assert.False(t, ok)
	assert.Zero(t, remaining)

	// A different key has its own budget.
	_, _, ok = l.allow("other", base.Add(3*time.Second))
	assert.True(t, ok)

	// Two full windows later the budget has fully recovered.
	_, _, ok = l.allow("client", base.Add(2*time.Minute+time.Second))
	assert.True(t, ok)
}

func TestLimiterSlidingWindowSmoothing(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 10, Window: time.Minute})
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		_, _, ok := l.allow("client", base)
		require.True(t, ok)
	}

	// Just into the next window the previous one still weighs in almost
	// fully, so only a sliver of budget is available.
	_, _, ok := l.allow("client", base.Add(time.Minute+time.Second))
	assert.True(t, ok)
	_, _, ok = l.allow("client", base.Add(time.Minute+2*time.Second))
	assert.False(t, ok)

	// Near the end of the next window most of the old weight has decayed.
	_, _, ok = l.allow("client", base.Add(2*time.Minute-time.Second))
	assert.True(t, ok)
}

func TestLimiterEvictStale(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 5, Window: time.Minute})
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	l.allow("a", base)
	l.allow("b", base.Add(90*time.Second))
	l.evictStale(base.Add(3 * time.Minute))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.keys, "a")
	assert.Contains(t, l.keys, "b")
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{name: "forwarded for single", xff: "1.2.3.4", remote: "10.0.0.1:80", want: "1.2.3.4"},
		{name: "forwarded for chain picks first", xff: "1.2.3.4, 5.6.7.8", remote: "10.0.0.1:80", want: "1.2.3.4"},
		{name: "real ip fallback", xri: "9.9.9.9", remote: "10.0.0.1:80", want: "9.9.9.9"},
		{name: "remote addr fallback", remote: "10.0.0.1:80", want: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
