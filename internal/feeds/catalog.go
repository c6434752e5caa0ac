package feeds

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Feed is one RSS endpoint a category or source key resolves to.
type Feed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Catalog maps the category and source keys users select to feeds.
type Catalog struct {
	Categories map[string]Feed `yaml:"categories"`
	Sources    map[string]Feed `yaml:"sources"`
}

// LoadCatalog reads a catalog file. An empty path returns the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed catalog: %w", err)
	}
	return ParseCatalog(data)
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog decodes catalog YAML. Unknown keys are rejected to catch typos.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse feed catalog: %w", err)
	}

	for key, feed := range c.Categories {
		if feed.URL == "" {
			return nil, fmt.Errorf("feed catalog category %q missing required field: url", key)
		}
	}
	for key, feed := range c.Sources {
		if feed.URL == "" {
			return nil, fmt.Errorf("feed catalog source %q missing required field: url", key)
		}
	}
	if len(c.Categories)+len(c.Sources) == 0 {
		return nil, fmt.Errorf("feed catalog is empty")
	}

	return &c, nil
}

// Lookup resolves a key, checking categories before sources.
func (c *Catalog) Lookup(key string) (Feed, bool) {
	if feed, ok := c.Categories[key]; ok {
		return feed, true
	}
	feed, ok := c.Sources[key]
	return feed, ok
}

// CategoryKeys returns the category keys sorted by name.
func (c *Catalog) CategoryKeys() []string {
	return sortedKeys(c.Categories)
}

// SourceKeys returns the source keys sorted by name.
func (c *Catalog) SourceKeys() []string {
	return sortedKeys(c.Sources)
}

func sortedKeys(m map[string]Feed) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
