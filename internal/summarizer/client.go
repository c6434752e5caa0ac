// Package summarizer calls the external AI summarization service.
package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jimdaga/newsdigest/internal/breaker"
)

// ErrUnavailable signals that no summary could be produced.
var ErrUnavailable = errors.New("summarizer unavailable")

// Request is the payload posted to the summarization service.
type Request struct {
	Text            string `json:"text"`
	TargetWordCount int    `json:"target_word_count"`
}

// Response is the service's reply.
type Response struct {
	Summary string `json:"summary"`
}

// Client handles communication with the summarization service
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	stubMode   bool
	breaker    *breaker.Breaker[string]
	logger     *slog.Logger
}

// NewClient creates a summarizer client. Calls time out after timeout.
func NewClient(baseURL, secret string, stubMode bool, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "summarizer")
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		stubMode:   stubMode,
		breaker:    breaker.New[string]("summarizer", 2*time.Minute, logger),
		logger:     logger,
	}
}

// Summarize condenses excerpt to roughly targetWordCount words. Every failure is
// reported as an error wrapping ErrUnavailable.
func (c *Client) Summarize(ctx context.Context, excerpt string, targetWordCount int) (string, error) {
	if c.stubMode {
		return stubSummary(excerpt, targetWordCount), nil
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("%w: no service URL configured", ErrUnavailable)
	}

	summary, err := c.breaker.Execute(func() (string, error) {
		return c.post(ctx, Request{Text: excerpt, TargetWordCount: targetWordCount})
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return summary, nil
}

func (c *Client) post(ctx context.Context, body Request) (string, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/summarize", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Summarizer-Secret", c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("summarizer returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return "", errors.New("summarizer returned an empty summary")
	}
	c.logger.Debug("summary generated", "target_words", body.TargetWordCount, "words", len(strings.Fields(summary)))
	return summary, nil
}

// stubSummary returns the first targetWordCount words of the excerpt under a heading.
func stubSummary(excerpt string, targetWordCount int) string {
	words := strings.Fields(excerpt)
	if len(words) > targetWordCount {
		words = words[:targetWordCount]
	}
	return "## News Summary\n\n" + strings.Join(words, " ")
}
