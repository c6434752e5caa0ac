package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>%s</title>
  <link>https://example.com</link>
  <description>test feed</description>
  %s
</channel>
</rss>`

func rssItems(n int, link string) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `<item>
  <title>Headline %d</title>
  <link>%s/article/%d</link>
  <description>&lt;p&gt;Summary &lt;b&gt;%d&lt;/b&gt;&lt;/p&gt;</description>
  <pubDate>Mon, 02 Mar 2026 08:00:00 GMT</pubDate>
</item>`, i, link, i, i)
	}
	return b.String()
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]ArticleRecord
}

func (c *memCache) Get(_ context.Context, key string) ([]ArticleRecord, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.data[key]
	return a, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, articles []ArticleRecord, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = articles
	return nil
}

func newFeedServer(t *testing.T, title string, items int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	hits := new(atomic.Int32)
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, rssTemplate, title, rssItems(items, srv.URL))
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

func TestDefaultCatalog(t *testing.T) {
	c, err := DefaultCatalog()
	require.NoError(t, err)

	for _, key := range []string{"top_stories", "world", "technology", "business", "science", "health", "sports", "entertainment"} {
		_, ok := c.Lookup(key)
		require.True(t, ok, "missing category %s", key)
	}
	require.Equal(t, "business", c.CategoryKeys()[0])
	require.NotEmpty(t, c.SourceKeys())
}

func TestLoadCatalogRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  tech:\n    name: Tech\n    ulr: https://x\n"), 0o600))

	_, err := LoadCatalog(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("sources:\n  mine:\n    name: Mine\n    url: https://example.com/rss\n"), 0o600))
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	feed, ok := c.Lookup("mine")
	require.True(t, ok)
	require.Equal(t, "https://example.com/rss", feed.URL)
}

func TestFetchCapsEachGroup(t *testing.T) {
	tech, _ := newFeedServer(t, "Tech Daily", 8)
	biz, _ := newFeedServer(t, "", 2)

	catalog := &Catalog{
		Categories: map[string]Feed{"technology": {Name: "Technology", URL: tech.URL}},
		Sources:    map[string]Feed{"biz": {Name: "Biz Wire", URL: biz.URL}},
	}
	agg := NewAggregator(catalog, Options{Timeout: 5 * time.Second})

	articles, err := agg.Fetch(context.Background(), []string{"technology", "nope", "biz"}, 3)
	require.NoError(t, err)
	require.Len(t, articles, 5)

	require.Equal(t, "Headline 1", articles[0].Title)
	require.Equal(t, "Tech Daily", articles[0].Source)
	require.Equal(t, tech.URL+"/article/1", articles[0].Link)
	require.Contains(t, articles[0].Summary, "Summary")
	require.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), articles[0].Published)

	// falls back to the catalog name when the feed has no title
	require.Equal(t, "Biz Wire", articles[3].Source)
}

func TestFetchSkipsBrokenFeeds(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()
	ok, _ := newFeedServer(t, "Works", 1)

	catalog := &Catalog{Categories: map[string]Feed{
		"broken": {URL: broken.URL},
		"ok":     {URL: ok.URL},
	}}
	articles, err := NewAggregator(catalog, Options{}).Fetch(context.Background(), []string{"broken", "ok"}, 5)
	require.NoError(t, err)
	require.Len(t, articles, 1)
}

func TestFetchUsesCache(t *testing.T) {
	srv, hits := newFeedServer(t, "Cached", 4)
	catalog := &Catalog{Categories: map[string]Feed{"technology": {URL: srv.URL}}}
	cache := &memCache{data: map[string][]ArticleRecord{}}
	agg := NewAggregator(catalog, Options{Cache: cache, CacheTTL: time.Minute})

	for i := 0; i < 3; i++ {
		articles, err := agg.Fetch(context.Background(), []string{"technology"}, 2)
		require.NoError(t, err)
		require.Len(t, articles, 2)
	}
	require.EqualValues(t, 1, hits.Load())
	require.Contains(t, cache.data, "technology:2")
}

func TestFetchScrapesContent(t *testing.T) {
	para := strings.Repeat("This paragraph carries enough words to count as article text. ", 2)
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/article/") {
			fmt.Fprintf(w, "<html><body><nav><p>%s</p></nav><article><p>short</p><p>%s</p><p>%s</p></article></body></html>", para, para, para)
			return
		}
		fmt.Fprintf(w, rssTemplate, "Scraped", rssItems(1, srv.URL))
	}))
	defer srv.Close()

	catalog := &Catalog{Categories: map[string]Feed{"technology": {URL: srv.URL}}}
	agg := NewAggregator(catalog, Options{Scraper: NewScraper(5 * time.Second)})

	articles, err := agg.Fetch(context.Background(), []string{"technology"}, 1)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	require.Equal(t, strings.TrimSpace(para)+" "+strings.TrimSpace(para), articles[0].Content)
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	catalog := &Catalog{Categories: map[string]Feed{"technology": {URL: "http://127.0.0.1:1"}}}
	_, err := NewAggregator(catalog, Options{}).Fetch(ctx, []string{"technology"}, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExtractArticleCapsLength(t *testing.T) {
	long := strings.Repeat("word ", 600)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body><main><p>%s</p></main></body></html>", long)
	}))
	defer srv.Close()

	text, err := NewScraper(5*time.Second).Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, []rune(text), maxContentChars+3)
	require.True(t, strings.HasSuffix(text, "..."))
}

func TestScrapeDropsThinPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>Too short to matter.</p></body></html>")
	}))
	defer srv.Close()

	text, err := NewScraper(5*time.Second).Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  already   plain ", "already plain"},
		{"paragraphs", "<p>First</p><p>Second <b>bold</b></p>", "First Second bold"},
		{"entities", "Fish &amp; Chips", "Fish & Chips"},
		{"script", "<p>Keep</p><script>drop()</script>", "Keep"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, PlainText(tt.in))
		})
	}
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisCache(client)
	key := fmt.Sprintf("test:%d", time.Now().UnixNano())

	_, hit, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, hit)

	want := []ArticleRecord{{Title: "One", Link: "https://example.com/1", Source: "Test"}}
	require.NoError(t, cache.Set(ctx, key, want, time.Minute))

	got, hit, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, want, got)
	client.Del(ctx, cacheKeyPrefix+key)
}
