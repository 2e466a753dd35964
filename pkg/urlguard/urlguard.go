// Package urlguard validates and canonicalizes candidate URLs before
// they are ever handed to the Fetcher, and rewrites well-known
// repository hosts to their raw-content equivalents.
package urlguard

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/apperrors"
)

// MaxURLLength is the longest candidate URL this guard accepts.
const MaxURLLength = 2048

// Guard validates candidate URLs and rewrites known repository hosts
// to their raw-content equivalents.
type Guard struct{}

// New returns a ready-to-use Guard. Guard holds no state; it exists as
// a type so it composes into the same dependency-injection shape the
// rest of the pipeline uses.
func New() *Guard {
	return &Guard{}
}

// Validate parses raw, rejects it for any reason named by the
// specification, and returns the canonical (possibly rewritten) URL.
func (g *Guard) Validate(raw string) (*url.URL, error) {
	if len(raw) > MaxURLLength {
		return nil, apperrors.Newf(apperrors.CodeInvalidURL, "url exceeds maximum length of %d", MaxURLLength)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeInvalidURL, "url is not syntactically valid").WithCause(err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperrors.Newf(apperrors.CodeInvalidURL, "unsupported scheme %q", u.Scheme)
	}

	if u.User != nil {
		return nil, apperrors.New(apperrors.CodeInvalidURL, "url must not embed credentials")
	}

	host := u.Hostname()
	if host == "" {
		return nil, apperrors.New(apperrors.CodeInvalidURL, "url has no host")
	}
	lowerHost := strings.ToLower(host)
	if strings.HasSuffix(lowerHost, ".local") || strings.HasSuffix(lowerHost, ".internal") {
		return nil, apperrors.Newf(apperrors.CodeBlockedHost, "host %q is not routable", host)
	}

	return Rewrite(u), nil
}

var (
	githubBlobPath   = regexp.MustCompile(`^/([^/]+)/([^/]+)/blob/([^/]+)/(.+)$`)
	gitlabBlobPath   = regexp.MustCompile(`^/([^/]+(?:/[^/]+)*)/-/blob/([^/]+)/(.+)$`)
	bitbucketSrcPath = regexp.MustCompile(`^/([^/]+)/([^/]+)/src/([^/]+)/(.+)$`)
	gistPath         = regexp.MustCompile(`^/([^/]+)/([0-9a-fA-F]+)$`)
)

// Rewrite rewrites human-facing URLs on known repository hosts to
// their raw-content equivalent. It is idempotent: a URL that is
// already a raw-content URL, or does not match any known pattern, is
// returned unchanged. The fragment is dropped, matching the
// specification's "preserves fragments off."
func Rewrite(u *url.URL) *url.URL {
	out := *u
	out.Fragment = ""
	host := strings.ToLower(out.Hostname())

	switch host {
	case "github.com":
		if m := githubBlobPath.FindStringSubmatch(out.Path); m != nil {
			out.Scheme = "https"
			out.Host = "raw.githubusercontent.com"
			out.Path = "/" + m[1] + "/" + m[2] + "/" + m[3] + "/" + m[4]
		}
	case "gist.github.com":
		if m := gistPath.FindStringSubmatch(out.Path); m != nil {
			out.Scheme = "https"
			out.Host = "gist.githubusercontent.com"
			out.Path = "/" + m[1] + "/" + m[2] + "/raw"
		}
	case "gitlab.com":
		if m := gitlabBlobPath.FindStringSubmatch(out.Path); m != nil {
			out.Scheme = "https"
			out.Path = "/" + m[1] + "/-/raw/" + m[2] + "/" + m[3]
		}
	case "bitbucket.org":
		if m := bitbucketSrcPath.FindStringSubmatch(out.Path); m != nil {
			out.Scheme = "https"
			out.Path = "/" + m[1] + "/" + m[2] + "/raw/" + m[3] + "/" + m[4]
		}
	}

	return &out
}

// IsRawContentURL reports whether u is a known raw-content endpoint,
// used by the Fetcher to exempt non-HTML content types from the
// unsupported_media_type rejection.
func IsRawContentURL(u *url.URL) bool {
	switch strings.ToLower(u.Hostname()) {
	case "raw.githubusercontent.com", "gist.githubusercontent.com":
		return true
	case "gitlab.com":
		return strings.Contains(u.Path, "/-/raw/")
	case "bitbucket.org":
		return strings.Contains(u.Path, "/raw/")
	}
	return false
}
