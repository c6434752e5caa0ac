package digest

import (
	"fmt"
	"strings"

	"github.com/jimdaga/newsdigest/internal/feeds"
)

// BuildExcerptBlock renders articles as numbered plain-text sections separated by
// blank lines. Scraped full text, when present, follows the feed summary.
func BuildExcerptBlock(articles []feeds.ArticleRecord) string {
	sections := make([]string, 0, len(articles))
	for i, a := range articles {
		var b strings.Builder
		fmt.Fprintf(&b, "ARTICLE %d: %s\n", i+1, a.Title)
		fmt.Fprintf(&b, "Source: %s\n", a.Source)
		summary := feeds.PlainText(a.Summary)
		b.WriteString(summary)
		if a.Content != "" {
			if summary != "" {
				b.WriteString("\n")
			}
			b.WriteString(a.Content)
		}
		sections = append(sections, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(sections, "\n\n")
}

// WordCount counts whitespace-separated tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
