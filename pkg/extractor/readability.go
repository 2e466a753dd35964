package extractor

import (
	"strings"

	"golang.org/x/net/html"
)

// contentTags are the element types eligible to become (or contain)
// the article candidate's scoring unit.
var contentTags = map[string]float64{
	"p": 1, "pre": 1, "blockquote": 1,
	"article": 5, "section": 2, "main": 5,
	"div": 0.2,
}

var negativeIDClassTokens = []string{"comment", "sidebar", "footer", "header", "widget", "menu"}

// findArticleCandidate walks doc (bounded by maxElemsToParse) and
// returns the element subtree with the highest aggregate text-density
// score, mirroring the shape of a Readability-style scorer: score
// paragraph-like nodes by text length, propagate a fraction of the
// score to the parent, and return the highest-scoring ancestor.
func findArticleCandidate(doc *html.Node) *html.Node {
	scores := map[*html.Node]float64{}
	visited := 0

	var walkScore func(*html.Node)
	walkScore = func(n *html.Node) {
		if visited >= maxElemsToParse {
			return
		}
		if n.Type == html.ElementNode {
			visited++
			if weight, ok := contentTags[n.Data]; ok {
				text := strings.TrimSpace(textContent(n))
				if len(text) > 25 {
					score := float64(len(text)) * weight
					if hasNegativeToken(n) {
						score *= 0.25
					}
					if parent := n.Parent; parent != nil {
						scores[parent] += score * 0.5
						if grandparent := parent.Parent; grandparent != nil {
							scores[grandparent] += score * 0.2
						}
					}
					scores[n] += score
				}
			}
		}
		for c := n.FirstChild; c != nil && visited < maxElemsToParse; c = c.NextSibling {
			walkScore(c)
		}
	}
	walkScore(doc)

	var best *html.Node
	var bestScore float64
	for n, score := range scores {
		if score > bestScore {
			best = n
			bestScore = score
		}
	}
	return best
}

func hasNegativeToken(n *html.Node) bool {
	class := strings.ToLower(attr(n, "class"))
	id := strings.ToLower(attr(n, "id"))
	for _, token := range negativeIDClassTokens {
		if strings.Contains(class, token) || strings.Contains(id, token) {
			return true
		}
	}
	return false
}
