package fetcher

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/apperrors"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/urlguard"
)

func TestFetcher_Fetch_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer server.Close()

	f := New("superfetch-test/1.0", urlguard.New()).WithPrivateIPs(true)
	result, err := f.Fetch(t.Context(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(result.Body), "hello")
	assert.Equal(t, http.StatusOK, result.StatusCode)
}

func TestFetcher_Fetch_RejectsBlockedHost(t *testing.T) {
	t.Parallel()

	f := New("superfetch-test/1.0", urlguard.New())
	_, err := f.Fetch(t.Context(), "http://printer.local/")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeBlockedHost, apperrors.CodeOf(err))
}

func TestFetcher_Fetch_RejectsUnsupportedContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0x00, 0x01})
	}))
	defer server.Close()

	f := New("superfetch-test/1.0", urlguard.New()).WithPrivateIPs(true)
	_, err := f.Fetch(t.Context(), server.URL)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnsupportedMediaType, apperrors.CodeOf(err))
}

func TestFetcher_Fetch_SizeCapExceeded(t *testing.T) {
	t.Parallel()

	big := strings.Repeat("a", MaxBodyBytes+1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(big))
	}))
	defer server.Close()

	f := New("superfetch-test/1.0", urlguard.New()).WithPrivateIPs(true)
	_, err := f.Fetch(t.Context(), server.URL)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeResponseTooLarge, apperrors.CodeOf(err))
}

func TestFetcher_Fetch_FollowsRedirectAndRevalidates(t *testing.T) {
	t.Parallel()

	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("final"))
	}))
	defer target.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer origin.Close()

	f := New("superfetch-test/1.0", urlguard.New()).WithPrivateIPs(true)
	result, err := f.Fetch(t.Context(), origin.URL)
	require.NoError(t, err)
	assert.Equal(t, "final", string(result.Body))
}

func TestFetcher_Fetch_TooManyRedirects(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/next", http.StatusFound)
	}))
	defer server.Close()

	f := New("superfetch-test/1.0", urlguard.New()).WithPrivateIPs(true)
	_, err := f.Fetch(t.Context(), server.URL)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeBlockedRedirect, apperrors.CodeOf(err))
}
