package converter

import (
	"path"
	"strings"

	"golang.org/x/net/html"
)

var lazySrcAttrs = []string{"data-src", "data-lazy-src", "data-original", "data-srcset"}

const dataURLPlaceholder = "data-url-image"

// renderImage emits ![alt](src). src falls back through lazy-load
// attributes (data-srcset parsed for its first candidate same as
// srcset), then the first srcset candidate; a data: URL is replaced
// with a placeholder if no other source is available. Missing alt is
// derived by humanizing the filename stem.
func renderImage(c *converterState, n *html.Node) bool {
	src, _ := attrOf(n, "src")
	if src == "" || strings.HasPrefix(src, "data:") {
		for _, attr := range lazySrcAttrs {
			v, ok := attrOf(n, attr)
			if !ok || v == "" {
				continue
			}
			if attr == "data-srcset" {
				v = firstSrcsetCandidate(v)
			}
			if v != "" {
				src = v
				break
			}
		}
	}
	if src == "" || strings.HasPrefix(src, "data:") {
		if srcset, ok := attrOf(n, "srcset"); ok && srcset != "" {
			if candidate := firstSrcsetCandidate(srcset); candidate != "" {
				src = candidate
			}
		}
	}
	if src == "" {
		src = dataURLPlaceholder
	} else if strings.HasPrefix(src, "data:") {
		src = dataURLPlaceholder
	} else {
		src = resolveURL(c.opts.BaseURL, src)
	}

	alt, _ := attrOf(n, "alt")
	if strings.TrimSpace(alt) == "" {
		alt = humanizeFilename(src)
	}

	c.sb.WriteString("![" + escapeMarkdown(alt) + "](" + src + ")")
	return true
}

func firstSrcsetCandidate(srcset string) string {
	parts := strings.Split(srcset, ",")
	if len(parts) == 0 {
		return ""
	}
	first := strings.TrimSpace(parts[0])
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func humanizeFilename(src string) string {
	if src == dataURLPlaceholder || src == "" {
		return "image"
	}
	base := path.Base(src)
	if idx := strings.IndexByte(base, '?'); idx >= 0 {
		base = base[:idx]
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	stem = strings.ReplaceAll(stem, "-", " ")
	stem = strings.ReplaceAll(stem, "_", " ")
	stem = strings.TrimSpace(stem)
	if stem == "" {
		return "image"
	}
	return stem
}
