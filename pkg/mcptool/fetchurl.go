// Package mcptool wires the URL Guard, Fetcher, Transform Worker Pool
// and Content Cache into the single MCP tool superFetch exposes:
// fetch-url.
package mcptool

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/net/html"
	"golang.org/x/sync/singleflight"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/apperrors"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/cache"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/converter"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/extractor"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/fetcher"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/transform"
)

// defaultMaxInlineContentChars is the inline markdown size above which
// the tool returns a resource_link instead of embedding the body.
const defaultMaxInlineContentChars = 20000

// Input is the fetch-url tool's JSON-RPC input schema.
type Input struct {
	URL              string `json:"url" jsonschema:"The public web page URL to fetch"`
	SkipNoiseRemoval bool   `json:"skipNoiseRemoval,omitempty" jsonschema:"Skip readability-style noise stripping"`
	ForceRefresh     bool   `json:"forceRefresh,omitempty" jsonschema:"Bypass the content cache"`
	MaxInlineChars   int    `json:"maxInlineChars,omitempty" jsonschema:"Maximum markdown characters to embed inline"`
}

// Output is the fetch-url tool's structuredContent on success.
type Output struct {
	URL         string `json:"url"`
	InputURL    string `json:"inputUrl"`
	ResolvedURL string `json:"resolvedUrl"`
	Title       string `json:"title,omitempty"`
	Markdown    string `json:"markdown,omitempty"`
}

// ErrorOutput is the fetch-url tool's structuredContent on failure.
type ErrorOutput struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Service holds the dependencies the fetch-url handler closes over.
type Service struct {
	Fetcher *fetcher.Fetcher
	Pool    *transform.Pool
	Cache   *cache.Cache

	// CacheDisabled skips both the cache read and write around a
	// fetch, leaving the zero value (caching on) as the default for
	// callers that never set it.
	CacheDisabled bool

	// group coalesces concurrent fetches of the same cache key so a
	// thundering herd of requests for one URL results in a single
	// outbound fetch. The zero value is ready to use.
	group singleflight.Group
}

// fetchResult is the coalesced outcome of a fresh fetch+transform,
// shared across every caller waiting on the same singleflight key.
type fetchResult struct {
	markdown    string
	title       string
	resolvedURL string
}

// Register adds the fetch-url tool to server.
func (s *Service) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "fetch-url",
		Description: "Fetch a single public web page and return LLM-ready Markdown plus metadata.",
	}, s.handle)
}

func (s *Service) handle(ctx context.Context, _ *mcp.CallToolRequest, in Input) (*mcp.CallToolResult, any, error) {
	out, err := s.Run(ctx, in)
	if err != nil {
		ae := apperrors.New(apperrors.CodeInternal, err.Error())
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: ae.Message}},
		}, ErrorOutput{URL: in.URL, Error: ae.Message}, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: out.Markdown}},
	}, out, nil
}

// Run executes the fetch-url contract directly, bypassing the MCP
// transport. The tool handler that Register installs calls it, so the
// HTTP gateway and stdio mode share this one code path.
func (s *Service) Run(ctx context.Context, in Input) (Output, error) {
	maxInline := in.MaxInlineChars
	if maxInline <= 0 {
		maxInline = defaultMaxInlineContentChars
	}

	canonicalURL := in.URL
	if u, err := url.Parse(in.URL); err == nil {
		u.Host = strings.ToLower(u.Host)
		u.Fragment = ""
		canonicalURL = u.String()
	}
	fingerprint := cache.Fingerprint(canonicalURL, true, in.SkipNoiseRemoval)
	key := cache.Key{Namespace: "markdown", Fingerprint: fingerprint}

	if !s.CacheDisabled && !in.ForceRefresh {
		if entry, ok := s.Cache.Get(key); ok {
			return s.buildOutput(in, string(entry.Body), entry.Title, entry.ResolvedURL, key, maxInline), nil
		}
	}

	// Fetch and transform are coalesced per cache key: callers racing
	// for the same URL (or retrying after a cache miss) share one
	// fetch rather than each opening their own outbound request. Note
	// the fetch inherits whichever caller's context started the
	// shared call — its cancellation can abort every waiter's fetch.
	v, err, _ := s.group.Do(fingerprint, func() (any, error) {
		result, err := s.Fetcher.Fetch(ctx, in.URL)
		if err != nil {
			return nil, err
		}
		resolvedURL := in.URL
		if result.FinalURL != nil {
			resolvedURL = result.FinalURL.String()
		}

		out, err := s.Pool.Submit(ctx, func(ctx context.Context) (transform.Output, error) {
			return transformBody(ctx, result, in)
		})
		if err != nil {
			return nil, err
		}

		if !s.CacheDisabled {
			s.Cache.Put(key, []byte(out.Markdown), "text/markdown", out.Title, resolvedURL)
		}
		return fetchResult{markdown: out.Markdown, title: out.Title, resolvedURL: resolvedURL}, nil
	})
	if err != nil {
		return Output{}, err
	}

	fr := v.(fetchResult)
	return s.buildOutput(in, fr.markdown, fr.title, fr.resolvedURL, key, maxInline), nil
}

func (s *Service) buildOutput(in Input, markdown, title, resolvedURL string, key cache.Key, maxInline int) Output {
	out := Output{
		URL:         in.URL,
		InputURL:    in.URL,
		ResolvedURL: resolvedURL,
		Title:       title,
	}
	if !s.CacheDisabled && len(markdown) > maxInline {
		out.Markdown = cache.ResourceURI(key)
		return out
	}
	out.Markdown = markdown
	return out
}

func transformBody(ctx context.Context, result *fetcher.Result, in Input) (transform.Output, error) {
	if err := ctx.Err(); err != nil {
		return transform.Output{}, apperrors.New(apperrors.CodeCanceled, "request canceled").WithCause(err)
	}

	if !strings.Contains(result.ContentType, "html") {
		md := strings.TrimSpace(string(result.Body))
		return transform.Output{Markdown: md}, nil
	}

	doc, err := html.Parse(strings.NewReader(string(result.Body)))
	if err != nil {
		return transform.Output{}, apperrors.New(apperrors.CodeParseError, "failed to parse HTML").WithCause(err)
	}

	extracted := extractor.Extract(doc)
	node := doc
	if in.SkipNoiseRemoval {
		// Extract strips noise from doc in place; convert a fresh parse.
		if raw, err := html.Parse(strings.NewReader(string(result.Body))); err == nil {
			node = raw
		}
	} else if extracted.Article != nil {
		node = extracted.Article
	}

	markdown := converter.Convert(node, converter.Options{BaseURL: result.FinalURL})
	markdown = prependMetadata(markdown, extracted.Metadata, result.FinalURL)

	return transform.Output{Markdown: markdown, Title: extracted.Metadata.Title}, nil
}

func prependMetadata(markdown string, meta extractor.Metadata, finalURL *url.URL) string {
	if meta.Title == "" && meta.Description == "" && meta.Author == "" {
		return markdown
	}

	var b strings.Builder
	b.WriteString("---\n")
	if meta.Title != "" {
		fmt.Fprintf(&b, "title: %q\n", meta.Title)
	}
	if meta.Description != "" {
		fmt.Fprintf(&b, "description: %q\n", meta.Description)
	}
	if meta.Author != "" {
		fmt.Fprintf(&b, "author: %q\n", meta.Author)
	}
	fmt.Fprintf(&b, "url: %q\n", finalURL.String())
	fmt.Fprintf(&b, "fetchedAt: %q\n", time.Now().UTC().Format(time.RFC3339))
	b.WriteString("---\n\n")
	b.WriteString(markdown)
	return b.String()
}
