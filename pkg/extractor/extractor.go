// Package extractor strips navigation/promotional noise from a parsed
// HTML document, extracts page metadata, and isolates the main
// article content using a readability-style heuristic gated by a
// quality check.
package extractor

import (
	"strings"

	"golang.org/x/net/html"
)

// minTextLengthForReadability is the threshold below which running
// the readability pass is skipped entirely; short documents are
// returned as-is, post noise-strip.
const minTextLengthForReadability = 400

// maxElemsToParse bounds how many elements the readability scorer
// walks, matching the specification's named readability parameter.
const maxElemsToParse = 20000

// qualityTextRatio, qualityHeadingRatio, and qualityPreRatio are the
// minimum fractions of the original document's text/headings/<pre>
// blocks that the extracted article must retain to be trusted instead
// of falling back to the whole (noise-stripped) document.
const (
	qualityTextRatio    = 0.15
	qualityHeadingRatio = 0.3
	qualityPreRatio     = 0.15
	qualityMinOriginal  = 100
)

var noiseTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"form": true, "button": true, "input": true, "select": true,
	"textarea": true, "nav": true, "aside": true, "footer": true,
}

// promoTokens are class/id substrings that mark an element as
// promotional chrome rather than article content.
var promoTokens = []string{
	"banner", "promo", "cta", "newsletter", "cookie", "modal",
	"pagination", "breadcrumb", "subscribe", "sidebar", "popup",
	"advert", "sponsor", "social-share", "related-posts",
}

// Metadata is the page-level metadata block, extracted with
// precedence og:* > twitter:* > standard tags.
type Metadata struct {
	Title       string
	Description string
	Author      string
}

// Result is the outcome of Extract.
type Result struct {
	Article  *html.Node // nil if no article-quality content was isolated
	Metadata Metadata
}

// Extract parses doc (already-parsed HTML), strips noise nodes,
// extracts metadata, and attempts to isolate the main article via a
// readability-style heuristic gated by a quality check. Parse
// failures upstream are the caller's concern: Extract itself never
// panics on a malformed-but-parseable tree.
func Extract(doc *html.Node) Result {
	meta := extractMetadata(doc)
	stripNoise(doc)

	original := textContent(doc)
	if len(strings.TrimSpace(original)) < minTextLengthForReadability {
		return Result{Article: nil, Metadata: meta}
	}

	candidate := findArticleCandidate(doc)
	if candidate == nil {
		return Result{Article: nil, Metadata: meta}
	}

	if !passesQualityGate(doc, candidate, original) {
		return Result{Article: nil, Metadata: meta}
	}

	return Result{Article: candidate, Metadata: meta}
}

// stripNoise removes noise-tag nodes and nodes whose class/id
// contains a promo token, in place.
func stripNoise(doc *html.Node) {
	var toRemove []*html.Node
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if noiseTags[n.Data] || isPromoNode(n) || isNavigationRole(n) || isFixedOverlay(n) {
			toRemove = append(toRemove, n)
		}
	})
	for _, n := range toRemove {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func isPromoNode(n *html.Node) bool {
	class := strings.ToLower(attr(n, "class"))
	id := strings.ToLower(attr(n, "id"))
	for _, token := range promoTokens {
		if strings.Contains(class, token) || strings.Contains(id, token) {
			return true
		}
	}
	return false
}

func isNavigationRole(n *html.Node) bool {
	role := strings.ToLower(attr(n, "role"))
	return role == "navigation" || role == "banner" || role == "complementary"
}

// isFixedOverlay approximates "fixed/sticky with high z-index" via
// inline style, since computed CSS is unavailable in a server-side
// DOM walk.
func isFixedOverlay(n *html.Node) bool {
	style := strings.ToLower(attr(n, "style"))
	if style == "" {
		return false
	}
	hasPosition := strings.Contains(style, "position:fixed") || strings.Contains(style, "position: fixed") ||
		strings.Contains(style, "position:sticky") || strings.Contains(style, "position: sticky")
	return hasPosition && strings.Contains(style, "z-index")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return sb.String()
}

func countHeadings(n *html.Node) int {
	count := 0
	walk(n, func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				count++
			}
		}
	})
	return count
}

func countPreBlocks(n *html.Node) int {
	count := 0
	walk(n, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "pre" {
			count++
		}
	})
	return count
}

func passesQualityGate(original *html.Node, candidate *html.Node, originalText string) bool {
	trimmedOriginal := strings.TrimSpace(originalText)
	candidateText := strings.TrimSpace(textContent(candidate))

	if len(trimmedOriginal) >= qualityMinOriginal {
		if float64(len(candidateText)) < qualityTextRatio*float64(len(trimmedOriginal)) {
			return false
		}
	}

	originalHeadings := countHeadings(original)
	if originalHeadings > 0 {
		retainedHeadings := countHeadings(candidate)
		if float64(retainedHeadings) < qualityHeadingRatio*float64(originalHeadings) {
			return false
		}
	}

	originalPre := countPreBlocks(original)
	if originalPre > 0 {
		retainedPre := countPreBlocks(candidate)
		if float64(retainedPre) < qualityPreRatio*float64(originalPre) {
			return false
		}
	}

	return true
}
