package mcptool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/cache"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/fetcher"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/transform"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/urlguard"
)

func newTestService() *Service {
	return &Service{
		Fetcher: fetcher.New("superfetch-test/1.0", urlguard.New()).WithPrivateIPs(true),
		Pool:    transform.New(transform.Config{MinCapacity: 1, MaxCapacity: 2, TaskTimeout: 5 * time.Second}),
		Cache:   cache.New(10, time.Minute, 0),
	}
}

func TestService_Run_FetchesAndConvertsHTML(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>My Page</title></head>
<body><article><h1>Hello</h1><p>` + strings100() + `</p></article></body></html>`))
	}))
	defer server.Close()

	s := newTestService()
	defer s.Pool.Close()
	defer s.Cache.Close()

	out, err := s.Run(context.Background(), Input{URL: server.URL})
	require.NoError(t, err)
	assert.Contains(t, out.Markdown, "Hello")
}

func TestService_Run_UsesCacheOnSecondCall(t *testing.T) {
	t.Parallel()

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><p>` + strings100() + `</p></body></html>`))
	}))
	defer server.Close()

	s := newTestService()
	defer s.Pool.Close()
	defer s.Cache.Close()

	_, err := s.Run(context.Background(), Input{URL: server.URL})
	require.NoError(t, err)
	_, err = s.Run(context.Background(), Input{URL: server.URL})
	require.NoError(t, err)

	assert.Equal(t, 1, hits, "second call should be served from cache")
}

func TestService_Run_ConcurrentRequestsForSameURLAreCoalesced(t *testing.T) {
	t.Parallel()

	var hits int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><p>` + strings100() + `</p></body></html>`))
	}))
	defer server.Close()

	s := newTestService()
	defer s.Pool.Close()
	defer s.Cache.Close()

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Run(context.Background(), Input{URL: server.URL})
		}(i)
	}

	// Give every goroutine a chance to reach Fetcher.Fetch before the
	// single outbound request is allowed to complete.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "concurrent callers should share one outbound fetch")
}

func TestService_Run_ForceRefreshBypassesCache(t *testing.T) {
	t.Parallel()

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><p>` + strings100() + `</p></body></html>`))
	}))
	defer server.Close()

	s := newTestService()
	defer s.Pool.Close()
	defer s.Cache.Close()

	_, err := s.Run(context.Background(), Input{URL: server.URL})
	require.NoError(t, err)
	_, err = s.Run(context.Background(), Input{URL: server.URL, ForceRefresh: true})
	require.NoError(t, err)

	assert.Equal(t, 2, hits)
}

func TestService_Run_LargeMarkdownReturnsResourceLink(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/markdown")
		_, _ = w.Write([]byte(repeat("x", 30000)))
	}))
	defer server.Close()

	s := newTestService()
	defer s.Pool.Close()
	defer s.Cache.Close()

	out, err := s.Run(context.Background(), Input{URL: server.URL, MaxInlineChars: 100})
	require.NoError(t, err)
	assert.Contains(t, out.Markdown, "superfetch://cache/markdown/")
}

func TestService_Run_ResolvedURLReflectsRedirectTarget(t *testing.T) {
	t.Parallel()

	var finalURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, finalURL, http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><p>` + strings100() + `</p></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	finalURL = server.URL + "/final"

	s := newTestService()
	defer s.Pool.Close()
	defer s.Cache.Close()

	out, err := s.Run(context.Background(), Input{URL: server.URL + "/start"})
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/start", out.InputURL)
	assert.Equal(t, finalURL, out.ResolvedURL)
}

func TestService_Run_BlockedHostRejected(t *testing.T) {
	t.Parallel()

	s := &Service{
		Fetcher: fetcher.New("superfetch-test/1.0", urlguard.New()),
		Pool:    transform.New(transform.Config{MinCapacity: 1, MaxCapacity: 1, TaskTimeout: time.Second}),
		Cache:   cache.New(10, time.Minute, 0),
	}
	defer s.Pool.Close()
	defer s.Cache.Close()

	_, err := s.Run(context.Background(), Input{URL: "http://169.254.169.254/latest/meta-data/"})
	require.Error(t, err)
}

func strings100() string {
	return repeat("lorem ipsum dolor sit amet consectetur adipiscing elit ", 10)
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
