// Package digesttest provides in-memory collaborators for driving the digest pipeline in tests.
package digesttest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jimdaga/newsdigest/internal/events"
	"github.com/jimdaga/newsdigest/internal/feeds"
	"github.com/jimdaga/newsdigest/internal/notify"
)

// Articles returns n distinct articles.
func Articles(n int) []feeds.ArticleRecord {
	out := make([]feeds.ArticleRecord, n)
	for i := range out {
		out[i] = feeds.ArticleRecord{
			Title:   fmt.Sprintf("Headline %d", i+1),
			Link:    fmt.Sprintf("https://example.com/%d", i+1),
			Summary: fmt.Sprintf("<p>Summary of story %d.</p>", i+1),
			Source:  "Example Wire",
		}
	}
	return out
}

// Words returns a summary of exactly n words.
func Words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

// Aggregator returns Articles for every call and records the requested keys.
type Aggregator struct {
	mu       sync.Mutex
	Articles []feeds.ArticleRecord
	Err      error
	Calls    [][]string
	MaxSeen  []int
}

func (a *Aggregator) Fetch(_ context.Context, keys []string, maxPerGroup int) ([]feeds.ArticleRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls = append(a.Calls, append([]string{}, keys...))
	a.MaxSeen = append(a.MaxSeen, maxPerGroup)
	if a.Err != nil {
		return nil, a.Err
	}
	return a.Articles, nil
}

// Summarizer returns Summary, or Err when set.
type Summarizer struct {
	mu      sync.Mutex
	Summary string
	Err     error
	Targets []int
}

func (s *Summarizer) Summarize(_ context.Context, _ string, target int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Targets = append(s.Targets, target)
	return s.Summary, s.Err
}

// PDF returns a fixed document. PanicOnCall makes the nth call (1-based) panic.
type PDF struct {
	mu          sync.Mutex
	Err         error
	PanicOnCall int
	Calls       int
}

func (p *PDF) RenderPDF(_, _ string) ([]byte, error) {
	p.mu.Lock()
	p.Calls++
	call := p.Calls
	p.mu.Unlock()

	if call == p.PanicOnCall {
		panic("renderer exploded")
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return []byte("%PDF-1.3 fake"), nil
}

// Audio returns fixed MP3 bytes and counts calls.
type Audio struct {
	mu    sync.Mutex
	Err   error
	Calls int
	Voice string
}

func (a *Audio) RenderAudio(_ context.Context, _ string, voice string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls++
	a.Voice = voice
	if a.Err != nil {
		return nil, a.Err
	}
	return []byte("ID3 fake"), nil
}

// Notifier records sent messages. FailFor makes Send fail for that recipient.
type Notifier struct {
	mu      sync.Mutex
	Sent    []notify.Message
	Err     error
	FailFor string
}

func (n *Notifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	if n.FailFor != "" && msg.To == n.FailFor {
		return fmt.Errorf("mailbox unavailable: %s", msg.To)
	}
	n.Sent = append(n.Sent, msg)
	return nil
}

// Events records published events.
type Events struct {
	mu     sync.Mutex
	Events []events.Event
}

func (e *Events) Publish(_ context.Context, ev events.Event) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Events = append(e.Events, ev)
	return fmt.Sprintf("%d-0", len(e.Events)), nil
}
