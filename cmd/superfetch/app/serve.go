package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/apperrors"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/auth"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/cache"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/config"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/fetcher"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/httppipeline"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/logger"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/mcpgateway"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/mcptool"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/ratelimit"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/session"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/transform"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/urlguard"
)

const defaultGracefulTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the superFetch Streamable HTTP MCP gateway",
	Long:  "Start the superFetch MCP gateway over Streamable HTTP, serving /health, /mcp, and /mcp/downloads/{namespace}/{hash}.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	// SetForTest is the only exported hook into the logger's singleton;
	// reused here to apply LOG_LEVEL/UNSTRUCTURED_LOGS once config is
	// resolved, since the package-level logger is otherwise fixed at
	// import time from the raw environment.
	restoreLogger := logger.SetForTest(logger.NewLogger(cfg.LogLevel, cfg.UnstructuredLogs))
	defer restoreLogger()

	authenticator, err := buildAuthenticator(cfg)
	if err != nil {
		return err
	}
	authSvc := auth.NewService(auth.Mode(cfg.AuthMode), authenticator)

	guard := urlguard.New()
	f := fetcher.New(cfg.UserAgent, guard)

	poolCfg := transform.DefaultConfig()
	poolCfg.TaskTimeout = cfg.TransformTimeout
	pool := transform.New(poolCfg)

	contentCache := cache.New(cfg.CacheMaxEntries, cfg.CacheTTL, cfg.CacheTTL/4)

	limiter := ratelimit.New(cfg.RateLimitMaxRequests, cfg.RateLimitWindow, cfg.RateLimitCleanupInterval)

	sessionStore := session.New(cfg.MaxSessions, cfg.SessionTTL)
	stopSessionCleanup := sessionStore.StartCleanupLoop(cfg.SessionTTL/2, func(rec *session.Record) {
		logger.Infow("session expired", "sessionId", rec.ID)
	})

	tool := &mcptool.Service{Fetcher: f, Pool: pool, Cache: contentCache, CacheDisabled: !cfg.CacheEnabled}
	hmacKey := []byte(cfg.HMACKey)

	newServer := func(onInitialized func()) *mcp.Server {
		server := mcp.NewServer(
			&mcp.Implementation{Name: "superfetch", Version: "1.0.0"},
			&mcp.ServerOptions{
				InitializedHandler: func(_ context.Context, _ *mcp.InitializedRequest) { onInitialized() },
			},
		)
		tool.Register(server)
		return server
	}
	gateway := mcpgateway.New(sessionStore, newServer, hmacKey, cfg.SessionInitTimeout)

	router := httppipeline.Build(httppipeline.Config{
		AllowedHosts: cfg.AllowedHostSet(),
		Limiter:      limiter,
		Auth:         authSvc.Middleware,
		Health:       healthHandler,
		MCP:          gateway,
		Download:     downloadHandler(contentCache),
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("superfetch listening on %s", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case <-quit:
		logger.Info("shutting down superfetch...")
	}

	// Shutdown order per the specification: stop the rate limiter
	// sweeper, abort the session cleanup loop, close the listening
	// socket and drain inbound connections, clear the session store,
	// then close the worker pool and the content cache.
	limiter.Close()
	stopSessionCleanup()

	ctx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	}

	sessionStore.Clear()
	pool.Close()
	contentCache.Close()

	logger.Info("superfetch shutdown complete")
	return nil
}

func buildAuthenticator(cfg *config.Config) (auth.Authenticator, error) {
	switch cfg.AuthMode {
	case config.AuthModeOAuth:
		return auth.NewOAuthAuthenticator(auth.OAuthAuthenticatorConfig{
			IntrospectionURL: cfg.OAuthIntrospectionURL,
			ClientID:         cfg.OAuthClientID,
			ClientSecret:     cfg.OAuthClientSecret,
			ResourceURL:      cfg.OAuthResourceURL,
			Timeout:          cfg.OAuthIntrospectTimeout,
		}), nil
	case config.AuthModeStatic:
		tokens := cfg.AccessTokens
		if cfg.APIKey != "" {
			tokens = append(append([]string(nil), tokens...), cfg.APIKey)
		}
		return auth.NewStaticAuthenticator([]byte(cfg.HMACKey), tokens, nil), nil
	default:
		return nil, fmt.Errorf("serve: unsupported AUTH_MODE %q", cfg.AuthMode)
	}
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

func downloadHandler(c *cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := cache.Key{
			Namespace:   chi.URLParam(r, "namespace"),
			Fingerprint: chi.URLParam(r, "hash"),
		}
		entry, ok := c.Get(key)
		if !ok {
			ae := apperrors.New(apperrors.CodeInvalidURL, "cached content not found")
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(struct {
				Error string `json:"error"`
			}{Error: string(ae.Code)})
			return
		}
		w.Header().Set("Content-Type", entry.ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(entry.Body)
	}
}
