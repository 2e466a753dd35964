// Package httppipeline assembles superFetch's HTTP request pipeline:
// header hygiene, host/origin enforcement, CORS, rate limiting, and
// JSON body reading, ahead of the /health, /mcp, and cache-download
// routes.
package httppipeline

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/ratelimit"
)

// serverRequestTimeout bounds how long any single request may run
// before the pipeline aborts it with a 504.
const serverRequestTimeout = 30 * time.Second

// singleValueHeaders must appear at most once; a request repeating any
// of them is rejected outright, since a duplicated auth, host, or
// session header is a sign of request smuggling rather than a client
// bug worth tolerating.
var singleValueHeaders = []string{
	"Authorization", "X-Api-Key", "Host", "Origin",
	"Content-Length", "Mcp-Session-Id", "X-Mcp-Session-Id",
}

// Config configures Build.
type Config struct {
	// AllowedHosts is the Host-header allow set, beyond loopback and
	// the server's own configured host.
	AllowedHosts map[string]bool
	// Limiter enforces per-IP request rate limiting.
	Limiter *ratelimit.Limiter
	// Auth wraps a handler with bearer/API-key authentication.
	Auth func(http.Handler) http.Handler
	// Health serves GET /health.
	Health http.HandlerFunc
	// MCP serves the /mcp session gateway (all methods).
	MCP http.Handler
	// Download serves GET /mcp/downloads/{namespace}/{hash}.
	Download http.HandlerFunc
}

// Build assembles the chi router implementing the specification's
// ordered pipeline stages. Chi's own routing matches step 7
// (dispatch); the middleware stack above it implements steps 1-6.
func Build(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(serverRequestTimeout))
	r.Use(rejectDuplicateHeaders)
	r.Use(hostOriginPolicy(cfg.AllowedHosts))
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, _ string) bool { return true },
		AllowedMethods:  []string{"GET", "POST", "OPTIONS", "DELETE"},
		AllowedHeaders: []string{
			"Authorization", "X-Api-Key", "Content-Type",
			"MCP-Protocol-Version", "MCP-Session-ID", "X-MCP-Session-ID", "Last-Event-ID",
		},
		ExposedHeaders:     []string{"MCP-Session-ID"},
		MaxAge:             600,
		OptionsPassthrough: true,
	}))
	// cors passes OPTIONS requests on after setting its headers; every
	// OPTIONS request ends here with 204.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.Middleware)
	}

	r.Get("/health", cfg.Health)

	r.Group(func(r chi.Router) {
		r.Use(jsonBodyLimit)
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}
		if cfg.Download != nil {
			r.Get("/mcp/downloads/{namespace}/{hash}", cfg.Download)
		}
		if cfg.MCP != nil {
			r.Handle("/mcp", cfg.MCP)
		}
	})

	return r
}
