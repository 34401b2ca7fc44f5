package httpmiddleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func fromIP(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.RemoteAddr = ip + ":40000"
	return req
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 3, Window: time.Minute})(okHandler())

	for i, want := range []string{"2", "1", "0"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, fromIP("192.0.2.1"))

		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, want, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())
	for range 2 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, fromIP("198.51.100.7"))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, fromIP("198.51.100.7"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var (
		success = true
		code    int
		message string
	)
	require.NoError(t, jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "success":
			success, err = d.Bool()
		case "code":
			code, err = d.Int()
		case "message":
			message, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}))
	assert.False(t, success)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "too many requests, please try again later", message)
}

func TestRateLimit_SeparateBuckets(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	serve := func(ip string) int {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, fromIP(ip))
		return w.Code
	}
	assert.Equal(t, http.StatusOK, serve("10.0.0.1"))
	assert.Equal(t, http.StatusOK, serve("10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, serve("10.0.0.1"))
}

func TestRateLimit_WindowSlides(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, _, ok := l.take("k", start)
	require.True(t, ok)
	_, _, ok = l.take("k", start.Add(time.Second))
	require.True(t, ok)
	_, _, ok = l.take("k", start.Add(2*time.Second))
	require.False(t, ok)

	// A quarter into the next window the previous count still weighs 1.5.
	_, _, ok = l.take("k", start.Add(75*time.Second))
	assert.True(t, ok)
	_, _, ok = l.take("k", start.Add(76*time.Second))
	assert.False(t, ok)

	// Two windows later the bucket is fresh.
	_, _, ok = l.take("k", start.Add(5*time.Minute))
	assert.True(t, ok)
}

func TestRateLimit_Evict(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.take("a", now)
	l.take("b", now.Add(2*time.Minute))

	l.evict(now.Add(2*time.Minute + time.Second))

	assert.NotContains(t, l.buckets, "a")
	assert.Contains(t, l.buckets, "b")
}

func TestRateLimit_BearerTokenSharesIPBudget(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	allowed := 0
	for i := range 50 {
		req := fromIP("10.0.0.1")
		req.Header.Set("Authorization", fmt.Sprintf("Bearer forged-%d", i))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)
}

func TestClientIP(t *testing.T) {
	for _, tt := range []struct {
		name   string
		header map[string]string
		want   string
	}{
		{name: "RemoteAddr", want: "192.0.2.10"},
		{name: "XForwardedFor", header: map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}, want: "203.0.113.50"},
		{name: "XRealIP", header: map[string]string{"X-Real-IP": "198.51.100.1"}, want: "198.51.100.1"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := fromIP("192.0.2.10")
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
