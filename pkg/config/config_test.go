package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *pflag.FlagSet {
	return pflag.NewFlagSet("test", pflag.ContinueOnError)
}

func TestLoad_DefaultsAreValidForLoopback(t *testing.T) {
	t.Setenv("ACCESS_TOKENS", "dev-token")

	fs := newFlagSet()
	cfg, err := Load(fs)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, AuthModeStatic, cfg.AuthMode)
	assert.Equal(t, []string{"dev-token"}, cfg.AccessTokens)
	assert.True(t, cfg.CacheEnabled)
}

func TestLoad_NonLoopbackHostRequiresAllowRemote(t *testing.T) {
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("AUTH_MODE", "oauth")
	t.Setenv("OAUTH_INTROSPECTION_URL", "https://auth.example.com/introspect")

	fs := newFlagSet()
	_, err := Load(fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALLOW_REMOTE")
}

func TestLoad_NonLoopbackHostRequiresOAuth(t *testing.T) {
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("ALLOW_REMOTE", "true")
	t.Setenv("ACCESS_TOKENS", "dev-token")

	fs := newFlagSet()
	_, err := Load(fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_MODE=oauth")
}

func TestLoad_NonLoopbackHostWithAllowRemoteAndOAuthSucceeds(t *testing.T) {
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("ALLOW_REMOTE", "true")
	t.Setenv("AUTH_MODE", "oauth")
	t.Setenv("OAUTH_INTROSPECTION_URL", "https://auth.example.com/introspect")

	fs := newFlagSet()
	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
}

func TestLoad_StaticModeRequiresTokenOrAPIKey(t *testing.T) {
	fs := newFlagSet()
	_, err := Load(fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_TOKENS or API_KEY")
}

func TestLoad_OAuthModeRequiresIntrospectionURL(t *testing.T) {
	t.Setenv("AUTH_MODE", "oauth")

	fs := newFlagSet()
	_, err := Load(fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OAUTH_INTROSPECTION_URL")
}

func TestLoad_RejectsUnknownAuthMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "carrier-pigeon")

	fs := newFlagSet()
	_, err := Load(fs)
	require.Error(t, err)
}

func TestLoad_FlagOverridesDefault(t *testing.T) {
	t.Setenv("ACCESS_TOKENS", "dev-token")

	fs := newFlagSet()
	fs.Int("port", 8080, "port to bind the HTTP listener to")
	require.NoError(t, fs.Set("port", "9090"))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
}

func TestConfig_AllowedHostSetIncludesHostItself(t *testing.T) {
	t.Setenv("ACCESS_TOKENS", "dev-token")
	t.Setenv("ALLOWED_HOSTS", "api.example.com")

	fs := newFlagSet()
	cfg, err := Load(fs)
	require.NoError(t, err)

	set := cfg.AllowedHostSet()
	assert.True(t, set["127.0.0.1"])
	assert.True(t, set["api.example.com"])
}

func TestConfig_Addr(t *testing.T) {
	t.Setenv("ACCESS_TOKENS", "dev-token")

	fs := newFlagSet()
	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
}
