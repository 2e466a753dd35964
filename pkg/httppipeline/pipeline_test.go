package httppipeline

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/ratelimit"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := Config{
		AllowedHosts: map[string]bool{"example.com": true},
		Health: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
		MCP: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		Download: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	}
	return Build(cfg)
}

func TestBuild_HealthServedForAllowedHost(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Host = "example.com"
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuild_RejectsDisallowedHost(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Host = "evil.example.org"
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBuild_AllowsLoopbackHostRegardlessOfAllowSet(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Host = "localhost"
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuild_RejectsDisallowedOrigin(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Host = "example.com"
	req.Header.Set("Origin", "https://evil.example.org")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBuild_ReflectsAllowedOriginWithVaryHeader(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Host = "example.com"
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Vary"), "Origin")
}

func TestBuild_OptionsPreflightReturnsNoContent(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Host = "example.com"
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBuild_RejectsDuplicateSingleValueHeader(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Host = "example.com"
	req.Header.Add("Authorization", "Bearer one")
	req.Header.Add("Authorization", "Bearer two")
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuild_RateLimiterRejectsOverBudget(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(1, time.Minute, 0)
	t.Cleanup(limiter.Close)
	cfg := Config{
		AllowedHosts: map[string]bool{"example.com": true},
		Limiter:      limiter,
		Health: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	}
	r := Build(cfg)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Host = "example.com"
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	first := do()
	second := do()

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestBuild_AuthMiddlewareAppliesToMCPButNotHealth(t *testing.T) {
	t.Parallel()

	cfg := Config{
		AllowedHosts: map[string]bool{"example.com": true},
		Auth: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			})
		},
		Health: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
		MCP: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	}
	r := Build(cfg)

	healthReq := httptest.NewRequest(http.MethodGet, "/health", nil)
	healthReq.Host = "example.com"
	healthRec := httptest.NewRecorder()
	r.ServeHTTP(healthRec, healthReq)
	assert.Equal(t, http.StatusOK, healthRec.Code)

	mcpReq := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
	mcpReq.Host = "example.com"
	mcpRec := httptest.NewRecorder()
	r.ServeHTTP(mcpRec, mcpReq)
	assert.Equal(t, http.StatusUnauthorized, mcpRec.Code)
}

func TestBuild_JSONBodyOverCapIsRejected(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	oversized := strings.NewReader(strings.Repeat("a", maxJSONBodyBytes+1))
	req := httptest.NewRequest(http.MethodPost, "/mcp", oversized)
	req.Host = "example.com"
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = maxJSONBodyBytes + 1
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":-32700`)
}

func TestBuild_JSONBodyOverCapOnNonMCPRouteGetsPlain400(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)
	oversized := strings.NewReader(strings.Repeat("a", maxJSONBodyBytes+1))
	req := httptest.NewRequest(http.MethodGet, "/mcp/downloads/markdown/abc", oversized)
	req.Host = "example.com"
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = maxJSONBodyBytes + 1
	rec := httptest.NewRecorder()

	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"jsonrpc"`)
}
