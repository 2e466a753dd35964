// Package config binds superFetch's environment/flag contract into a
// typed Config, the way cmd/thv-registry-api/app/serve.go binds its
// own flags through viper.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AuthMode selects the Auth Service implementation.
type AuthMode string

// Supported AUTH_MODE values.
const (
	AuthModeStatic AuthMode = "static"
	AuthModeOAuth  AuthMode = "oauth"
)

// Config is superFetch's fully resolved runtime configuration, bound
// from flags/environment/defaults via Load.
type Config struct {
	// Host and Port form the listen address.
	Host string
	Port int

	// AllowRemote permits binding to a non-loopback Host; validate
	// also requires AuthMode == oauth for a non-loopback Host.
	AllowRemote bool
	// AllowedHosts extends the Host/Origin allow-set beyond loopback
	// and the configured Host.
	AllowedHosts []string

	// AuthMode selects static-token or OAuth introspection auth.
	AuthMode AuthMode
	// AccessTokens is the static bearer token set (AuthMode == static).
	AccessTokens []string
	// APIKey, when set, is also accepted via X-API-Key in static mode.
	APIKey string
	// HMACKey signs static-token digests and session auth fingerprints.
	HMACKey string

	// OAuthIntrospectionURL and friends configure RFC 7662 introspection
	// (AuthMode == oauth).
	OAuthIntrospectionURL  string
	OAuthClientID          string
	OAuthClientSecret      string
	OAuthResourceURL       string
	OAuthIntrospectTimeout time.Duration

	// CacheEnabled toggles the content cache; CacheTTL and
	// CacheMaxEntries bound its lifetime and size.
	CacheEnabled    bool
	CacheTTL        time.Duration
	CacheMaxEntries int

	// TransformTimeout bounds a single HTML→Markdown conversion task.
	TransformTimeout time.Duration
	// MaxInlineContentChars is the fetch-url tool's inline markdown
	// size threshold before a resource link is returned instead.
	MaxInlineContentChars int

	// UserAgent is sent on every outbound fetch request.
	UserAgent string

	// LogLevel and UnstructuredLogs configure the logger.
	LogLevel         string
	UnstructuredLogs bool

	// RateLimitMaxRequests and RateLimitWindow configure the fixed-
	// window rate limiter; RateLimitCleanupInterval controls its
	// background sweeper.
	RateLimitMaxRequests     int
	RateLimitWindow          time.Duration
	RateLimitCleanupInterval time.Duration

	// MaxSessions and SessionTTL bound the MCP session store.
	MaxSessions int
	SessionTTL  time.Duration
	// SessionInitTimeout bounds how long a reserved session slot
	// waits for the client to complete the initialize handshake.
	SessionInitTimeout time.Duration
}

// bindings lists every flag this command accepts, alongside its
// environment variable name (per the specification's §6 contract) and
// default value. Flag name and viper key are always identical.
type binding struct {
	flag    string
	env     string
	def     any
	usage   string
	isSlice bool
}

var bindings = []binding{
	{flag: "host", env: "HOST", def: "127.0.0.1", usage: "address to bind the HTTP listener to"},
	{flag: "port", env: "PORT", def: 8080, usage: "port to bind the HTTP listener to"},
	{flag: "allow-remote", env: "ALLOW_REMOTE", def: false, usage: "permit binding to a non-loopback host"},
	{flag: "allowed-hosts", env: "ALLOWED_HOSTS", def: []string{}, usage: "extra Host/Origin allow-list entries", isSlice: true},
	{flag: "auth-mode", env: "AUTH_MODE", def: string(AuthModeStatic), usage: "static or oauth"},
	{flag: "access-tokens", env: "ACCESS_TOKENS", def: []string{}, usage: "static bearer tokens", isSlice: true},
	{flag: "api-key", env: "API_KEY", def: "", usage: "static-mode X-API-Key value"},
	{flag: "hmac-key", env: "HMAC_KEY", def: "", usage: "key for token digests and session fingerprints"},
	{flag: "oauth-introspection-url", env: "OAUTH_INTROSPECTION_URL", def: "", usage: "RFC 7662 introspection endpoint"},
	{flag: "oauth-client-id", env: "OAUTH_CLIENT_ID", def: "", usage: "introspection client ID"},
	{flag: "oauth-client-secret", env: "OAUTH_CLIENT_SECRET", def: "", usage: "introspection client secret"},
	{flag: "oauth-resource-url", env: "OAUTH_RESOURCE_URL", def: "", usage: "RFC 8707 resource indicator"},
	{flag: "oauth-introspect-timeout-ms", env: "OAUTH_INTROSPECT_TIMEOUT_MS", def: 5000, usage: "introspection round-trip timeout"},
	{flag: "cache-enabled", env: "CACHE_ENABLED", def: true, usage: "enable the content cache"},
	{flag: "cache-ttl-seconds", env: "CACHE_TTL", def: 900, usage: "cache entry time-to-live, in seconds"},
	{flag: "cache-max-entries", env: "CACHE_MAX_ENTRIES", def: 500, usage: "cache capacity"},
	{flag: "transform-timeout-ms", env: "TRANSFORM_TIMEOUT_MS", def: 30000, usage: "per-task HTML to Markdown conversion timeout"},
	{flag: "max-inline-content-chars", env: "MAX_INLINE_CONTENT_CHARS", def: 20000, usage: "inline markdown size threshold"},
	{flag: "user-agent", env: "USER_AGENT", def: "superFetch/1.0 (+https://github.com/j0hanz/super-fetch-mcp-server-sub000)", usage: "outbound User-Agent header"},
	{flag: "log-level", env: "LOG_LEVEL", def: "info", usage: "debug, info, warn, or error"},
	{flag: "unstructured-logs", env: "UNSTRUCTURED_LOGS", def: false, usage: "console-encode logs instead of JSON"},
	{flag: "rate-limit-max-requests", env: "RATE_LIMIT_MAX_REQUESTS", def: 60, usage: "requests admitted per key per window"},
	{flag: "rate-limit-window-ms", env: "RATE_LIMIT_WINDOW_MS", def: 60000, usage: "rate-limit fixed window size"},
	{flag: "rate-limit-cleanup-interval-ms", env: "RATE_LIMIT_CLEANUP_INTERVAL_MS", def: 300000, usage: "rate-limit sweeper interval"},
	{flag: "max-sessions", env: "MAX_SESSIONS", def: 100, usage: "maximum concurrent MCP sessions"},
	{flag: "session-ttl-seconds", env: "SESSION_TTL", def: 1800, usage: "idle session time-to-live, in seconds"},
	{flag: "session-init-timeout-ms", env: "SESSION_INIT_TIMEOUT_MS", def: 10000, usage: "initialize handshake timeout"},
}

// RegisterFlags declares every flag in bindings on fs and binds each
// to its environment variable through viper, mirroring
// cmd/thv-registry-api/app/serve.go's viper.BindPFlag pattern.
func RegisterFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	for _, b := range bindings {
		if fs.Lookup(b.flag) != nil {
			if err := v.BindPFlag(b.flag, fs.Lookup(b.flag)); err != nil {
				return fmt.Errorf("config: bind flag %q: %w", b.flag, err)
			}
			if err := v.BindEnv(b.flag, b.env); err != nil {
				return fmt.Errorf("config: bind env %q: %w", b.env, err)
			}
			continue
		}
		switch def := b.def.(type) {
		case string:
			fs.String(b.flag, def, b.usage)
		case int:
			fs.Int(b.flag, def, b.usage)
		case bool:
			fs.Bool(b.flag, def, b.usage)
		case []string:
			fs.StringSlice(b.flag, def, b.usage)
		default:
			return fmt.Errorf("config: unsupported default type for flag %q", b.flag)
		}
		if err := v.BindPFlag(b.flag, fs.Lookup(b.flag)); err != nil {
			return fmt.Errorf("config: bind flag %q: %w", b.flag, err)
		}
		if err := v.BindEnv(b.flag, b.env); err != nil {
			return fmt.Errorf("config: bind env %q: %w", b.env, err)
		}
	}
	return nil
}

// Load builds a Config from fs (already parsed) and the process
// environment, validating the boot precondition that a non-loopback
// Host requires AllowRemote and oauth auth.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	if err := RegisterFlags(fs, v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Host:                     v.GetString("host"),
		Port:                     v.GetInt("port"),
		AllowRemote:              v.GetBool("allow-remote"),
		AllowedHosts:             v.GetStringSlice("allowed-hosts"),
		AuthMode:                 AuthMode(strings.ToLower(v.GetString("auth-mode"))),
		AccessTokens:             v.GetStringSlice("access-tokens"),
		APIKey:                   v.GetString("api-key"),
		HMACKey:                  v.GetString("hmac-key"),
		OAuthIntrospectionURL:    v.GetString("oauth-introspection-url"),
		OAuthClientID:            v.GetString("oauth-client-id"),
		OAuthClientSecret:        v.GetString("oauth-client-secret"),
		OAuthResourceURL:         v.GetString("oauth-resource-url"),
		OAuthIntrospectTimeout:   time.Duration(v.GetInt("oauth-introspect-timeout-ms")) * time.Millisecond,
		CacheEnabled:             v.GetBool("cache-enabled"),
		CacheTTL:                 time.Duration(v.GetInt("cache-ttl-seconds")) * time.Second,
		CacheMaxEntries:          v.GetInt("cache-max-entries"),
		TransformTimeout:         time.Duration(v.GetInt("transform-timeout-ms")) * time.Millisecond,
		MaxInlineContentChars:    v.GetInt("max-inline-content-chars"),
		UserAgent:                v.GetString("user-agent"),
		LogLevel:                 v.GetString("log-level"),
		UnstructuredLogs:         v.GetBool("unstructured-logs"),
		RateLimitMaxRequests:     v.GetInt("rate-limit-max-requests"),
		RateLimitWindow:          time.Duration(v.GetInt("rate-limit-window-ms")) * time.Millisecond,
		RateLimitCleanupInterval: time.Duration(v.GetInt("rate-limit-cleanup-interval-ms")) * time.Millisecond,
		MaxSessions:              v.GetInt("max-sessions"),
		SessionTTL:               time.Duration(v.GetInt("session-ttl-seconds")) * time.Second,
		SessionInitTimeout:       time.Duration(v.GetInt("session-init-timeout-ms")) * time.Millisecond,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AuthMode != AuthModeStatic && c.AuthMode != AuthModeOAuth {
		return fmt.Errorf("config: AUTH_MODE must be %q or %q, got %q", AuthModeStatic, AuthModeOAuth, c.AuthMode)
	}

	if !c.isLoopbackHost() {
		if !c.AllowRemote {
			return fmt.Errorf("config: binding to non-loopback host %q requires ALLOW_REMOTE=true", c.Host)
		}
		if c.AuthMode != AuthModeOAuth {
			return fmt.Errorf("config: binding to non-loopback host %q requires AUTH_MODE=oauth", c.Host)
		}
	}

	if c.AuthMode == AuthModeOAuth && c.OAuthIntrospectionURL == "" {
		return fmt.Errorf("config: AUTH_MODE=oauth requires OAUTH_INTROSPECTION_URL")
	}
	if c.AuthMode == AuthModeStatic && len(c.AccessTokens) == 0 && c.APIKey == "" {
		return fmt.Errorf("config: AUTH_MODE=static requires at least one of ACCESS_TOKENS or API_KEY")
	}

	return nil
}

// isLoopbackHost reports whether c.Host resolves to the loopback
// interface by literal value, without performing any DNS lookup.
func (c *Config) isLoopbackHost() bool {
	if c.Host == "localhost" || c.Host == "" {
		return true
	}
	if ip := net.ParseIP(c.Host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// Addr is the listen address formed from Host and Port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

// AllowedHostSet returns AllowedHosts (plus Host itself) as a lookup
// set for pkg/httppipeline's Host/Origin policy.
func (c *Config) AllowedHostSet() map[string]bool {
	set := make(map[string]bool, len(c.AllowedHosts)+1)
	for _, h := range c.AllowedHosts {
		set[strings.ToLower(strings.TrimSpace(h))] = true
	}
	if c.Host != "" {
		set[strings.ToLower(c.Host)] = true
	}
	return set
}
