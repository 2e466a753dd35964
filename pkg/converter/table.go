package converter

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// renderTable emits a GFM pipe table for simple tables, or falls back
// to verbatim HTML when any cell spans columns/rows (colspan/rowspan
// >= 2), since GFM pipe syntax cannot express spans.
func renderTable(c *converterState, n *html.Node) bool {
	rows := tableRows(n)
	if hasSpans(rows) {
		var buf bytes.Buffer
		_ = html.Render(&buf, n)
		c.sb.WriteString("\n" + buf.String() + "\n\n")
		return true
	}

	if len(rows) == 0 {
		return true
	}

	header := rows[0]
	c.sb.WriteString("\n")
	writeRow(c, header)
	c.sb.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
	for _, row := range rows[1:] {
		writeRow(c, row)
	}
	c.sb.WriteString("\n")
	return true
}

func writeRow(c *converterState, cells []*html.Node) {
	c.sb.WriteString("|")
	for _, cell := range cells {
		c.sb.WriteString(" ")
		inner := renderSubtree(c.opts, cell)
		inner = strings.ReplaceAll(strings.TrimSpace(inner), "\n", " ")
		inner = strings.ReplaceAll(inner, "|", "\\|")
		c.sb.WriteString(inner)
		c.sb.WriteString(" |")
	}
	c.sb.WriteString("\n")
}

func tableRows(table *html.Node) [][]*html.Node {
	var rows [][]*html.Node
	var walkRows func(*html.Node)
	walkRows = func(n *html.Node) {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.ElementNode && child.Data == "tr" {
				rows = append(rows, tableCells(child))
				continue
			}
			if child.Type == html.ElementNode {
				walkRows(child)
			}
		}
	}
	walkRows(table)
	return rows
}

func tableCells(tr *html.Node) []*html.Node {
	var cells []*html.Node
	for child := tr.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && (child.Data == "td" || child.Data == "th") {
			cells = append(cells, child)
		}
	}
	return cells
}

func hasSpans(rows [][]*html.Node) bool {
	for _, row := range rows {
		for _, cell := range row {
			if spanAtLeastTwo(cell, "colspan") || spanAtLeastTwo(cell, "rowspan") {
				return true
			}
		}
	}
	return false
}

func spanAtLeastTwo(n *html.Node, attr string) bool {
	v, ok := attrOf(n, attr)
	if !ok {
		return false
	}
	switch v {
	case "0", "1", "":
		return false
	default:
		return true
	}
}
