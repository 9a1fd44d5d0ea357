package htmlutil

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

// Collapse trims a string and squashes any run of inner whitespace
// (including newlines from nested tags) down to a single space.
func Collapse(s string) string {
	s = innerWhitespace.ReplaceAllString(s, " ")
	return strings.Trim(s, " \t\n")
}

// Table is an ordered sequence of rows, each row an ordered sequence of
// cell text.
type Table [][]string

// ExtractTables flattens every <table> in the document into cell text,
// in document order. Header and data cells are treated alike. Rows whose
// cells are all blank are kept as empty rows, callers filter them.
// A document without tables yields a nil slice.
func ExtractTables(doc *goquery.Document) []Table {
	var tables []Table

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var rows Table
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var cells []string
			row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
				for _, n := range cell.Nodes {
					cells = append(cells, Collapse(GetText(n)))
				}
			})
			rows = append(rows, cells)
		})
		tables = append(tables, rows)
	})

	return tables
}
