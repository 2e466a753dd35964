package extractor

import (
	"strings"

	"golang.org/x/net/html"
)

// extractMetadata walks doc's <head> meta tags with precedence
// og:* > twitter:* > standard, falling back to <title> for the title.
func extractMetadata(doc *html.Node) Metadata {
	var meta Metadata
	var title, ogTitle, twitterTitle string
	var description, ogDescription, twitterDescription string
	var author string

	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "title":
			if title == "" {
				title = strings.TrimSpace(textContent(n))
			}
		case "meta":
			name := strings.ToLower(attr(n, "name"))
			property := strings.ToLower(attr(n, "property"))
			content := strings.TrimSpace(attr(n, "content"))
			if content == "" {
				return
			}
			switch property {
			case "og:title":
				ogTitle = content
			case "og:description":
				ogDescription = content
			}
			switch name {
			case "twitter:title":
				twitterTitle = content
			case "twitter:description":
				twitterDescription = content
			case "description":
				description = content
			case "author":
				author = content
			}
		}
	})

	meta.Title = firstNonEmpty(ogTitle, twitterTitle, title)
	meta.Description = firstNonEmpty(ogDescription, twitterDescription, description)
	meta.Author = author
	return meta
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
