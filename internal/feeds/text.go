package feeds

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips markup from an HTML fragment, separating text nodes with a
// single space and collapsing whitespace. Script and style contents are dropped.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("script, style").Remove()

	var parts []string
	collectText(doc.Selection, &parts)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func collectText(sel *goquery.Selection, parts *[]string) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			*parts = append(*parts, s.Text())
			return
		}
		collectText(s, parts)
	})
}
