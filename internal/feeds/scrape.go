package feeds

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	// maxContentChars caps scraped article text handed to the summarizer.
	maxContentChars = 1500
	// minParagraphChars drops bylines, captions and other short fragments.
	minParagraphChars = 50
	// minContentChars is the shortest scrape worth keeping.
	minContentChars = 100

	scrapeUserAgent = "Mozilla/5.0 (compatible; newsdigest/1.0; +https://github.com/jimdaga/newsdigest)"
)

// articleSelectors are tried in order; the first match is treated as the article body.
var articleSelectors = []string{
	"article",
	`[role="article"]`,
	".article-body",
	".article-content",
	".story-body",
	".post-content",
	".entry-content",
	"main",
	".content",
}

// Scraper extracts the main text of an article page.
type Scraper struct {
	httpClient *http.Client
}

// NewScraper creates a scraper whose requests time out after timeout.
func NewScraper(timeout time.Duration) *Scraper {
	return &Scraper{httpClient: &http.Client{Timeout: timeout}}
}

// Scrape fetches link and returns its article text, or "" when nothing substantial was found.
func (s *Scraper) Scrape(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", scrapeUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse article: %w", err)
	}
	return extractArticle(doc), nil
}

func extractArticle(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside, iframe").Remove()

	body := doc.Find("body")
	for _, selector := range articleSelectors {
		if match := doc.Find(selector).First(); match.Length() > 0 {
			body = match
			break
		}
	}

	var parts []string
	body.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(text) > minParagraphChars {
			parts = append(parts, text)
		}
	})

	text := strings.Join(parts, " ")
	if runes := []rune(text); len(runes) > maxContentChars {
		text = string(runes[:maxContentChars]) + "..."
	}
	if utf8.RuneCountInString(text) <= minContentChars {
		return ""
	}
	return text
}
