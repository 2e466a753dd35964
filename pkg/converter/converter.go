// Package converter walks a parsed HTML tree into GitHub-flavored
// Markdown, using a per-tag translator table in the same
// registry-of-handlers-keyed-by-type idiom the rest of this codebase
// uses for pluggable behavior.
package converter

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Options controls the conversion pass.
type Options struct {
	// BaseURL resolves relative hrefs/srcs. May be nil.
	BaseURL *url.URL
}

// translator renders n (and, if it wants to control recursion, its
// children) into sb. It returns false to signal "not handled, recurse
// into children with the default block/inline rules instead."
type translator func(c *converterState, n *html.Node) bool

// translators is the registry of tag-name to rendering function,
// mirroring the teacher's registry-of-handlers-keyed-by-type idiom
// (e.g. token.IntrospectorRegistry, auth/token/providers).
var translators map[string]translator

func init() {
	translators = map[string]translator{
		"pre":        renderPre,
		"code":       renderInlineCode,
		"img":        renderImage,
		"a":          renderAnchor,
		"table":      renderTable,
		"h1":         renderHeading(1),
		"h2":         renderHeading(2),
		"h3":         renderHeading(3),
		"h4":         renderHeading(4),
		"h5":         renderHeading(5),
		"h6":         renderHeading(6),
		"br":         renderBreak,
		"hr":         renderRule,
		"strong":     renderWrap("**", "**"),
		"b":          renderWrap("**", "**"),
		"em":         renderWrap("_", "_"),
		"i":          renderWrap("_", "_"),
		"del":        renderWrap("~~", "~~"),
		"strike":     renderWrap("~~", "~~"),
		"blockquote": renderBlockquote,
		"ul":         renderList(false),
		"ol":         renderList(true),
		"div":        renderDiv,
		"p":          renderParagraph,
	}
}

type converterState struct {
	sb      strings.Builder
	opts    Options
	listNum []int // stack of ordered-list counters for nested lists
}

// Convert renders doc (or a subtree, e.g. an extracted article) into
// Markdown text.
func Convert(doc *html.Node, opts Options) string {
	c := &converterState{opts: opts}
	c.renderChildren(doc)
	return postProcess(c.sb.String())
}

func (c *converterState) renderChildren(n *html.Node) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.render(child)
	}
}

func (c *converterState) render(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		c.sb.WriteString(escapeMarkdown(n.Data))
		return
	case html.ElementNode:
		if fn, ok := translators[n.Data]; ok {
			if fn(c, n) {
				return
			}
		}
		c.renderChildren(n)
	default:
		c.renderChildren(n)
	}
}

func renderHeading(level int) translator {
	prefix := strings.Repeat("#", level)
	return func(c *converterState, n *html.Node) bool {
		c.sb.WriteString("\n" + prefix + " ")
		c.renderChildren(n)
		c.sb.WriteString("\n\n")
		return true
	}
}

func renderBreak(c *converterState, _ *html.Node) bool {
	c.sb.WriteString("  \n")
	return true
}

func renderRule(c *converterState, _ *html.Node) bool {
	c.sb.WriteString("\n---\n\n")
	return true
}

func renderWrap(open, close string) translator {
	return func(c *converterState, n *html.Node) bool {
		text := strings.TrimSpace(textOf(n))
		if text == "" {
			return true
		}
		c.sb.WriteString(open)
		c.renderChildren(n)
		c.sb.WriteString(close)
		return true
	}
}

func renderParagraph(c *converterState, n *html.Node) bool {
	c.sb.WriteString("\n")
	c.renderChildren(n)
	c.sb.WriteString("\n\n")
	return true
}

func renderBlockquote(c *converterState, n *html.Node) bool {
	if admonitionType := detectAdmonitionType(n); admonitionType != "" {
		c.sb.WriteString("\n> [!" + admonitionType + "]\n")
		inner := renderSubtree(c.opts, n)
		for _, line := range strings.Split(strings.TrimSpace(inner), "\n") {
			c.sb.WriteString("> " + line + "\n")
		}
		c.sb.WriteString("\n")
		return true
	}

	inner := renderSubtree(c.opts, n)
	for _, line := range strings.Split(strings.TrimSpace(inner), "\n") {
		c.sb.WriteString("> " + line + "\n")
	}
	c.sb.WriteString("\n")
	return true
}

func renderDiv(c *converterState, n *html.Node) bool {
	if admonitionType := detectAdmonitionType(n); admonitionType != "" {
		c.sb.WriteString("\n> [!" + admonitionType + "]\n")
		inner := renderSubtree(c.opts, n)
		for _, line := range strings.Split(strings.TrimSpace(inner), "\n") {
			c.sb.WriteString("> " + line + "\n")
		}
		c.sb.WriteString("\n")
		return true
	}
	return false
}

var admonitionPattern = regexp.MustCompile(`(?i)\b(note|tip|info|warning|danger|caution|important)\b`)

func detectAdmonitionType(n *html.Node) string {
	class := classOf(n)
	if m := admonitionPattern.FindStringSubmatch(class); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

func renderList(ordered bool) translator {
	return func(c *converterState, n *html.Node) bool {
		c.sb.WriteString("\n")
		idx := 0
		for li := n.FirstChild; li != nil; li = li.NextSibling {
			if li.Type != html.ElementNode || li.Data != "li" {
				continue
			}
			idx++
			if ordered {
				c.sb.WriteString(strings.Repeat(" ", 0))
				c.sb.WriteString(itoa(idx) + ". ")
			} else {
				c.sb.WriteString("- ")
			}
			c.renderChildren(li)
			c.sb.WriteString("\n")
		}
		c.sb.WriteString("\n")
		return true
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// renderSubtree renders n's children into a standalone Markdown
// string, used by block-level translators (blockquote, admonition
// div) that need the inner content before deciding how to wrap it.
func renderSubtree(opts Options, n *html.Node) string {
	c := &converterState{opts: opts}
	c.renderChildren(n)
	return c.sb.String()
}

func textOf(n *html.Node) string {
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

func classOf(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return a.Val
		}
	}
	return ""
}

func attrOf(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// escapeMarkdown globally escapes Markdown-significant characters in
// plain text runs: backslash, backtick, asterisk, underscore, tilde.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		"`", "\\`",
		`*`, `\*`,
		`_`, `\_`,
		`~`, `\~`,
	)
	return replacer.Replace(s)
}

func resolveURL(base *url.URL, ref string) string {
	if base == nil || ref == "" {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
