// Package fetcher retrieves a single remote document over HTTP(S)
// while enforcing the SSRF defense order required of every outbound
// request: URL Guard, then DNS resolution, then an IP Blocklist check
// over every resolved address, then a dial to the specific resolved
// IP with the original hostname as SNI.
package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/apperrors"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/ipblock"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/urlguard"
)

const (
	// Timeout is the wall-clock budget for the entire fetch, including
	// redirects.
	Timeout = 15 * time.Second

	// MaxRedirects is the maximum number of redirect hops followed
	// before the fetch fails.
	MaxRedirects = 5

	// MaxBodyBytes is the maximum decoded response body size accepted;
	// exceeding it aborts the read.
	MaxBodyBytes = 10 * 1024 * 1024

	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 10 * time.Second
)

// acceptedContentTypes are the media types the Extractor/Converter
// pipeline knows how to handle.
var acceptedContentTypes = []string{
	"text/html",
	"application/xhtml+xml",
	"text/markdown",
	"text/plain",
}

// Result is the outcome of a successful Fetch.
type Result struct {
	Body        []byte
	ContentType string
	FinalURL    *url.URL
	StatusCode  int
}

// Fetcher performs SSRF-safe GET requests against a single URL.
type Fetcher struct {
	userAgent    string
	guard        *urlguard.Guard
	resolver     *net.Resolver
	client       *http.Client
	allowPrivate bool
}

// New builds a Fetcher that identifies itself with userAgent. guard
// is reused so redirect re-validation shares the same rewrite rules
// as the initial request.
func New(userAgent string, guard *urlguard.Guard) *Fetcher {
	f := &Fetcher{
		userAgent: userAgent,
		guard:     guard,
		resolver:  net.DefaultResolver,
	}

	transport := &http.Transport{
		DialContext:           f.dialContext,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	f.client = &http.Client{
		Timeout:       Timeout,
		Transport:     transport,
		CheckRedirect: f.checkRedirect,
	}

	return f
}

// WithPrivateIPs toggles whether loopback/private addresses are
// allowed through the IP Blocklist check. It exists for integration
// tests that dial a local httptest.Server; production wiring never
// calls it.
func (f *Fetcher) WithPrivateIPs(allow bool) *Fetcher {
	f.allowPrivate = allow
	return f
}

func (f *Fetcher) blocked(ip net.IP) bool {
	if f.allowPrivate {
		return false
	}
	return ipblock.IsBlocked(ip)
}

// Fetch retrieves rawURL, following at most MaxRedirects redirects,
// each re-validated through the URL Guard and IP Blocklist before the
// next hop opens.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	u, err := f.guard.Validate(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeInvalidURL, "failed to build request").WithCause(err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyDoError(err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !contentAccepted(contentType) && !urlguard.IsRawContentURL(resp.Request.URL) {
		return nil, apperrors.Newf(apperrors.CodeUnsupportedMediaType, "unsupported content type %q", contentType)
	}

	body, err := readBounded(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Result{
		Body:        body,
		ContentType: contentType,
		FinalURL:    resp.Request.URL,
		StatusCode:  resp.StatusCode,
	}, nil
}

func readBounded(r io.Reader) ([]byte, error) {
	limited := io.LimitReader(r, MaxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeFetchNetwork, "failed to read response body").WithCause(err)
	}
	if len(body) > MaxBodyBytes {
		return nil, apperrors.Newf(apperrors.CodeResponseTooLarge, "response exceeds %d bytes", MaxBodyBytes)
	}
	return body, nil
}

func contentAccepted(contentType string) bool {
	mediaType := contentType
	if idx := strings.IndexByte(contentType, ';'); idx >= 0 {
		mediaType = contentType[:idx]
	}
	mediaType = strings.TrimSpace(strings.ToLower(mediaType))
	for _, accepted := range acceptedContentTypes {
		if mediaType == accepted {
			return true
		}
	}
	return false
}

// checkRedirect re-validates the redirect target through the URL
// Guard and IP Blocklist before the next hop is allowed to open. No
// verdict from a previous hop is cached; every redirect is
// re-resolved and re-checked from scratch.
func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > MaxRedirects {
		return apperrors.Newf(apperrors.CodeBlockedRedirect, "exceeded %d redirects", MaxRedirects)
	}

	if _, err := f.guard.Validate(req.URL.String()); err != nil {
		return apperrors.New(apperrors.CodeBlockedRedirect, "redirect target rejected by url guard").WithCause(err)
	}

	if ipblock.IsBlockedHostname(strings.ToLower(req.URL.Hostname())) {
		return apperrors.New(apperrors.CodeBlockedRedirect, "redirect target is a blocked metadata host")
	}

	ips, err := f.resolver.LookupIP(req.Context(), "ip", req.URL.Hostname())
	if err != nil {
		return apperrors.New(apperrors.CodeBlockedRedirect, "redirect target did not resolve").WithCause(err)
	}
	for _, ip := range ips {
		if f.blocked(ip) {
			return apperrors.Newf(apperrors.CodeBlockedRedirect, "redirect target %s resolves to a blocked address", req.URL.Hostname())
		}
	}

	return nil
}

// dialContext implements the SSRF defense order for the first hop
// (and, transitively, for every hop the transport dials after
// checkRedirect accepted it): resolve the host, check every resolved
// IP, then dial the specific IP while keeping the original hostname
// available for TLS SNI via the address passed to DialContext.
func (f *Fetcher) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	if ipblock.IsBlockedHostname(strings.ToLower(host)) {
		return nil, apperrors.New(apperrors.CodeBlockedHost, "host is a blocked metadata hostname")
	}

	if literal := net.ParseIP(host); literal != nil {
		if f.blocked(literal) {
			return nil, apperrors.New(apperrors.CodeBlockedHost, "literal address is in a blocked range")
		}
		return dialResolved(ctx, network, literal.String(), port)
	}

	ips, err := f.resolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeFetchNetwork, "dns resolution failed").WithCause(err)
	}

	var chosen net.IP
	for _, ip := range ips {
		if f.blocked(ip) {
			return nil, apperrors.Newf(apperrors.CodeBlockedHost, "host %s resolves to a blocked address", host)
		}
		if chosen == nil {
			chosen = ip
		}
	}
	if chosen == nil {
		return nil, apperrors.New(apperrors.CodeFetchNetwork, "host did not resolve to any address")
	}

	return dialResolved(ctx, network, chosen.String(), port)
}

// dialResolved opens a TCP connection to a specific resolved IP. The
// original hostname is never passed here: http.Transport performs the
// TLS handshake itself once this returns, using the request's host as
// the SNI/ServerName, so the dial target and the TLS identity stay
// correctly separated per the SSRF defense order.
func dialResolved(ctx context.Context, network, ip, port string) (net.Conn, error) {
	dialer := &net.Dialer{}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

func classifyDoError(err error) error {
	if apperrors.IsCode(err, apperrors.CodeBlockedRedirect) {
		return err
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return apperrors.New(apperrors.CodeFetchTimeout, "fetch timed out").WithCause(err)
		}
		if inner := urlErr.Unwrap(); inner != nil && apperrors.CodeOf(inner) != apperrors.CodeInternal {
			return inner
		}
	}

	return apperrors.New(apperrors.CodeFetchNetwork, "fetch failed").WithCause(err)
}
