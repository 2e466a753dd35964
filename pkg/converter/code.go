package converter

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var languageClassPattern = regexp.MustCompile(`(?:language|lang|highlight)-([a-zA-Z0-9+#]+)`)

// languageHeuristics are content signatures checked in order; the
// first match wins. This is a coarse heuristic, not a parser, matching
// the specification's explicit "heuristic" framing.
var languageHeuristics = []struct {
	lang    string
	pattern *regexp.Regexp
}{
	{"jsx", regexp.MustCompile(`</?[A-Z][A-Za-z0-9]*[\s/>]`)},
	{"tsx", regexp.MustCompile(`:\s*React\.FC|interface\s+\w+Props`)},
	{"rust", regexp.MustCompile(`\bfn\s+\w+\(|\blet\s+mut\b|::<`)},
	{"go", regexp.MustCompile(`\bfunc\s+\w*\(|\bpackage\s+\w+\b`)},
	{"python", regexp.MustCompile(`\bdef\s+\w+\(|\bimport\s+\w+\s*$|\bself\b`)},
	{"bash", regexp.MustCompile(`^#!/bin/(ba)?sh|\$\{?\w+\}?|\becho\b`)},
	{"yaml", regexp.MustCompile(`^[\w-]+:\s|^---\s*$`)},
	{"json", regexp.MustCompile(`^\s*[{\[]`)},
	{"sql", regexp.MustCompile(`(?i)\bselect\b.+\bfrom\b`)},
	{"html", regexp.MustCompile(`</?[a-z]+(\s[a-z-]+="[^"]*")*\s*/?>`)},
	{"css", regexp.MustCompile(`[.#]?[\w-]+\s*\{[^}]*:[^}]*\}`)},
	{"ts", regexp.MustCompile(`:\s*(string|number|boolean|void)\b`)},
	{"js", regexp.MustCompile(`\bfunction\s*\(|\bconst\s+\w+\s*=|=>`)},
}

// renderPre emits a fenced code block. Language is resolved from
// class/data attributes on the <pre> or a nested <code>, falling back
// to a content heuristic.
func renderPre(c *converterState, n *html.Node) bool {
	codeNode := n
	if first := n.FirstChild; first != nil && first.Type == html.ElementNode && first.Data == "code" {
		codeNode = first
	}

	content := strings.TrimRight(textOf(codeNode), "\n")
	lang := detectLanguage(n, codeNode, content)

	fence := longestBacktickRun(content) + 1
	if fence < 3 {
		fence = 3
	}
	ticks := strings.Repeat("`", fence)

	c.sb.WriteString("\n" + ticks + lang + "\n")
	c.sb.WriteString(content)
	c.sb.WriteString("\n" + ticks + "\n\n")
	return true
}

func detectLanguage(pre, code *html.Node, content string) string {
	for _, n := range []*html.Node{code, pre} {
		if n == nil {
			continue
		}
		class := classOf(n)
		if m := languageClassPattern.FindStringSubmatch(class); m != nil {
			return m[1]
		}
		if v, ok := attrOf(n, "data-language"); ok && v != "" {
			return v
		}
	}
	for _, h := range languageHeuristics {
		if h.pattern.MatchString(content) {
			return h.lang
		}
	}
	return ""
}

func longestBacktickRun(s string) int {
	longest := 0
	current := 0
	for _, r := range s {
		if r == '`' {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

// renderInlineCode emits inline code with a backtick-delimiter one
// longer than the longest backtick run in the content, padding with a
// single space if the content starts or ends with a backtick.
func renderInlineCode(c *converterState, n *html.Node) bool {
	content := textOf(n)
	runLen := longestBacktickRun(content)
	delim := strings.Repeat("`", runLen+1)

	pad := ""
	if strings.HasPrefix(content, "`") || strings.HasSuffix(content, "`") {
		pad = " "
	}

	c.sb.WriteString(delim + pad + content + pad + delim)
	return true
}
