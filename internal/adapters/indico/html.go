package indico

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed
// plain text passes through unchanged apart from entity decoding
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}
	if !strings.Contains(s, "<") {
		return collapse(html.UnescapeString(s))
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapse(html.UnescapeString(s))
	}
	doc.Find("script, style").Remove()
	// block elements would otherwise glue adjacent words together
	doc.Find("br, p, div, li, tr").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
