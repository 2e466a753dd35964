package converter

import (
	"strings"

	"golang.org/x/net/html"
)

// renderAnchor emits [text](href), resolving relative hrefs against
// the base URL. Anchor-only links (href="#...") and empty hrefs are
// written as their plain text content, since they carry no
// navigable destination once extracted from page context.
func renderAnchor(c *converterState, n *html.Node) bool {
	href, _ := attrOf(n, "href")
	text := strings.TrimSpace(textOf(n))
	if text == "" {
		return true
	}

	if href == "" || strings.HasPrefix(href, "#") {
		c.sb.WriteString(text)
		return true
	}

	resolved := resolveURL(c.opts.BaseURL, href)
	c.sb.WriteString("[" + escapeMarkdown(text) + "](" + resolved + ")")
	return true
}
