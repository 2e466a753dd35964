package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/apperrors"
)

// Middleware enforces the Limiter on every request except OPTIONS,
// rejecting with HTTP 429, a Retry-After header, and a JSON body of
// {"error": "...", "retryAfter": N} when the caller's key is over
// budget.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		decision := l.Allow(ClientKey(r))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfter))
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(struct {
			Error      string `json:"error"`
			RetryAfter int    `json:"retryAfter"`
		}{
			Error:      string(apperrors.CodeRateLimited),
			RetryAfter: decision.RetryAfter,
		})
	})
}
