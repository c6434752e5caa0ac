package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jimdaga/newsdigest/internal/breaker"
)

const (
	// maxSpeechInput is the longest input the speech service accepts.
	maxSpeechInput = 4096
	speechModel    = "tts-1"
	noContentLine  = "No content available for audio."
)

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// AudioClient renders speech through an OpenAI-compatible text-to-speech endpoint.
type AudioClient struct {
	url        string
	secret     string
	httpClient *http.Client
	breaker    *breaker.Breaker[[]byte]
	logger     *slog.Logger
}

// NewAudioClient creates a client posting to url with a bearer secret.
func NewAudioClient(url, secret string, timeout time.Duration, logger *slog.Logger) *AudioClient {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tts")
	return &AudioClient{
		url:        url,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker.New[[]byte]("tts", 2*time.Minute, logger),
		logger:     logger,
	}
}

// RenderAudio returns MP3 bytes of text spoken in voice.
func (c *AudioClient) RenderAudio(ctx context.Context, text, voice string) ([]byte, error) {
	if c.url == "" {
		return nil, errors.New("text-to-speech URL not configured")
	}

	input := truncateRunes(SpeechText(text), maxSpeechInput)
	if input == "" {
		input = noContentLine
	}

	return c.breaker.Execute(func() ([]byte, error) {
		return c.post(ctx, speechRequest{
			Model:          speechModel,
			Input:          input,
			Voice:          voice,
			ResponseFormat: "mp3",
		})
	})
}

func (c *AudioClient) post(ctx context.Context, body speechRequest) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("text-to-speech returned status %d: %s", resp.StatusCode, string(respBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("text-to-speech returned no audio")
	}
	c.logger.Debug("audio rendered", "bytes", len(audio), "voice", body.Voice)
	return audio, nil
}
