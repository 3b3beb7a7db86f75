package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*rateLimiter, *fakeClock) {
	t.Helper()
	rl := newRateLimiter(limit, window)
	t.Cleanup(rl.stop)
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, _ := rl.allow("10.0.0.1")
		require.True(t, ok, "request %d", i+1)
	}

	ok, wait := rl.allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)

	ok, _ = rl.allow("10.0.0.2")
	assert.True(t, ok, "other clients have their own window")
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, 2, 10*time.Second)

	ok, _ := rl.allow("c")
	require.True(t, ok)
	clock.advance(4 * time.Second)
	ok, _ = rl.allow("c")
	require.True(t, ok)

	clock.advance(time.Second)
	ok, wait := rl.allow("c")
	require.False(t, ok)
	assert.Equal(t, 5*time.Second, wait, "oldest request leaves the window at t=10s")

	// Rejected requests do not count, so only the first request has expired.
	clock.advance(5 * time.Second)
	ok, _ = rl.allow("c")
	assert.True(t, ok)
	ok, _ = rl.allow("c")
	assert.False(t, ok)
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl, clock := newTestLimiter(t, 5, time.Minute)

	rl.allow("idle")
	clock.advance(45 * time.Second)
	rl.allow("busy")
	clock.advance(30 * time.Second)

	rl.sweep()
	assert.Equal(t, 1, rl.tracked())

	clock.advance(time.Minute)
	rl.sweep()
	assert.Equal(t, 0, rl.tracked())
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	rl.stop()
	rl.stop()
}

func TestRateLimitMiddleware(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.RateLimit = 3 })

	get := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/live", nil)
		req.RemoteAddr = remote
		return env.do(req)
	}

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, get("192.168.1.1:12345").Code, "request %d", i+1)
	}

	rr := get("192.168.1.1:40000")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, msgRateLimited, decodeError(t, rr))
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.srv.metrics.throttled))

	assert.Equal(t, http.StatusOK, get("192.168.1.2:12345").Code)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Nil(t, env.srv.limiter)

	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusOK, env.get("/live").Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "ipv6 remote addr", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "remote addr without port", remoteAddr: "pipe", want: "pipe"},
		{name: "forwarded single", remoteAddr: "127.0.0.1:1", xff: "203.0.113.1", want: "203.0.113.1"},
		{name: "forwarded chain", remoteAddr: "127.0.0.1:1", xff: "203.0.113.1, 198.51.100.1", want: "203.0.113.1"},
		{name: "real ip", remoteAddr: "127.0.0.1:1", xri: " 203.0.113.5 ", want: "203.0.113.5"},
		{name: "forwarded wins", remoteAddr: "127.0.0.1:1", xff: "203.0.113.1", xri: "203.0.113.5", want: "203.0.113.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
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
