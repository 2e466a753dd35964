package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Allow_WithinBudget(t *testing.T) {
	t.Parallel()

	l := New(3, time.Minute, 0)
	defer l.Close()

	for i := 0; i < 3; i++ {
		d := l.Allow("1.2.3.4")
		assert.True(t, d.Allowed)
	}
}

func TestLimiter_Allow_RejectsOverBudget(t *testing.T) {
	t.Parallel()

	l := New(2, time.Minute, 0)
	defer l.Close()

	l.Allow("1.2.3.4")
	l.Allow("1.2.3.4")
	d := l.Allow("1.2.3.4")
	assert.False(t, d.Allowed)
	assert.GreaterOrEqual(t, d.RetryAfter, 1)
}

func TestLimiter_Allow_ResetsAfterWindow(t *testing.T) {
	t.Parallel()

	l := New(1, 20*time.Millisecond, 0)
	defer l.Close()

	d1 := l.Allow("k")
	require.True(t, d1.Allowed)
	d2 := l.Allow("k")
	require.False(t, d2.Allowed)

	time.Sleep(30 * time.Millisecond)
	d3 := l.Allow("k")
	assert.True(t, d3.Allowed)
}

func TestLimiter_Allow_KeysAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(1, time.Minute, 0)
	defer l.Close()

	assert.True(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("b").Allowed)
	assert.False(t, l.Allow("a").Allowed)
}

func TestLimiter_Allow_EmptyKeyFallsBackToUnknown(t *testing.T) {
	t.Parallel()

	l := New(1, time.Minute, 0)
	defer l.Close()

	l.Allow("")
	d := l.Allow("")
	assert.False(t, d.Allowed)
	assert.Contains(t, l.entries, "unknown")
}

func TestLimiter_Sweep_EvictsIdleEntries(t *testing.T) {
	t.Parallel()

	l := New(5, 10*time.Millisecond, 5*time.Millisecond)
	defer l.Close()

	l.Allow("idle")

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		_, present := l.entries["idle"]
		l.mu.Unlock()
		if !present {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected idle entry to be swept")
}

func TestClientKey_StripsPort(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.5:54321"
	assert.Equal(t, "203.0.113.5", ClientKey(r))
}

func TestClientKey_FallsBackToUnknown(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = ""
	assert.Equal(t, "unknown", ClientKey(r))
}

func TestMiddleware_RejectsWithRetryAfterHeader(t *testing.T) {
	t.Parallel()

	l := New(1, time.Minute, 0)
	defer l.Close()

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.9.9.9:1111"

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req)
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
	assert.NotEmpty(t, rec2.Header().Get("Retry-After"))
	assert.Contains(t, rec2.Body.String(), "rate_limited")
}

func TestMiddleware_ExemptsOptions(t *testing.T) {
	t.Parallel()

	l := New(0, time.Minute, 0)
	defer l.Close()

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.RemoteAddr = "9.9.9.9:1111"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
