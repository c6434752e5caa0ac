// Package feeds aggregates articles from RSS feeds selected by category and source keys.
package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// ArticleRecord is one normalized article.
type ArticleRecord struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Summary   string    `json:"summary"`
	Published time.Time `json:"published"`
	Source    string    `json:"source"`
	Content   string    `json:"content,omitempty"`
}

// Options configures an Aggregator. Zero values disable the cache and scraping.
type Options struct {
	Cache    Cache
	CacheTTL time.Duration
	Scraper  *Scraper
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Aggregator fetches articles for catalog keys.
type Aggregator struct {
	catalog  *Catalog
	parser   *gofeed.Parser
	scraper  *Scraper
	cache    Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewAggregator creates an aggregator over catalog.
func NewAggregator(catalog *Catalog, opts Options) *Aggregator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = scrapeUserAgent

	return &Aggregator{
		catalog:  catalog,
		parser:   parser,
		scraper:  opts.Scraper,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   logger.With("component", "feeds"),
	}
}

// Fetch returns up to maxPerGroup articles for each key, in key order. Unknown keys
// and feeds that fail to load are logged and skipped; only cancellation is an error.
func (a *Aggregator) Fetch(ctx context.Context, keys []string, maxPerGroup int) ([]ArticleRecord, error) {
	if maxPerGroup <= 0 {
		return nil, nil
	}

	var articles []ArticleRecord
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("feed aggregation cancelled: %w", err)
		}

		feed, ok := a.catalog.Lookup(key)
		if !ok {
			a.logger.Warn("unknown feed key, skipping", "key", key)
			continue
		}

		group, err := a.fetchGroup(ctx, key, feed, maxPerGroup)
		if err != nil {
			a.logger.Warn("failed to fetch feed", "key", key, "url", feed.URL, "error", err)
			continue
		}
		articles = append(articles, group...)
	}

	a.logger.Debug("aggregated articles", "keys", keys, "count", len(articles))
	return articles, nil
}

func (a *Aggregator) fetchGroup(ctx context.Context, key string, feed Feed, limit int) ([]ArticleRecord, error) {
	cacheKey := fmt.Sprintf("%s:%d", key, limit)
	if a.cache != nil {
		cached, hit, err := a.cache.Get(ctx, cacheKey)
		if err != nil {
			a.logger.Warn("feed cache read failed", "key", key, "error", err)
		} else if hit {
			return cached, nil
		}
	}

	parsed, err := a.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	source := strings.TrimSpace(parsed.Title)
	if source == "" {
		source = feed.Name
	}

	items := parsed.Items
	if len(items) > limit {
		items = items[:limit]
	}

	articles := make([]ArticleRecord, 0, len(items))
	for _, item := range items {
		article := ArticleRecord{
			Title:   strings.TrimSpace(item.Title),
			Link:    item.Link,
			Summary: item.Description,
			Source:  source,
		}
		if article.Title == "" {
			article.Title = "Untitled"
		}
		if item.PublishedParsed != nil {
			article.Published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			article.Published = item.UpdatedParsed.UTC()
		}

		if a.scraper != nil && article.Link != "" {
			content, err := a.scraper.Scrape(ctx, article.Link)
			if err != nil {
				a.logger.Debug("scrape failed, using feed summary", "link", article.Link, "error", err)
			}
			article.Content = content
		}
		articles = append(articles, article)
	}

	if a.cache != nil && a.cacheTTL > 0 {
		if err := a.cache.Set(ctx, cacheKey, articles, a.cacheTTL); err != nil {
			a.logger.Warn("feed cache write failed", "key", key, "error", err)
		}
	}
	return articles, nil
}
