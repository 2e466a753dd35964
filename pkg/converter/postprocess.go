package converter

import (
	"regexp"
	"strings"
)

var (
	blankLinesPattern   = regexp.MustCompile(`\n{3,}`)
	emptyHeadingPattern = regexp.MustCompile(`(?m)^#{1,6}\s*$\n?`)
	orphanHeadingLine   = regexp.MustCompile(`(?m)^([A-Z][A-Za-z0-9 ]{2,60})$\n\n`)
)

// postProcess applies the Converter's final cleanup pass: drop empty
// headings, collapse runs of 3+ newlines to 2 (at most one blank
// line in a row), and promote orphan
// standalone lines that look like headings (a short, capitalized line
// followed by a blank line, with no heading markup) to an h3.
func postProcess(md string) string {
	md = emptyHeadingPattern.ReplaceAllString(md, "")
	md = promoteOrphanHeadings(md)
	md = collapseBlankLines(md)
	md = strings.TrimSpace(md) + "\n"
	return md
}

// promoteOrphanHeadings turns a short, capitalized standalone line
// followed by a blank line into an h3, on the theory that it was a
// heading whose markup the source page expressed purely through CSS
// rather than an <h1>-<h6> element.
func promoteOrphanHeadings(md string) string {
	return orphanHeadingLine.ReplaceAllString(md, "### $1\n\n")
}

func collapseBlankLines(md string) string {
	return blankLinesPattern.ReplaceAllString(md, "\n\n")
}
