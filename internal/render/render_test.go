package render

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRenderPDF(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }
	r := NewPDFRenderer(now)

	text := "## Top Stories\n\n**Markets rally**\nStocks rose on Monday — analysts cheered.\n\n---\n\n- A bullet with ünïcödé"
	out, err := r.RenderPDF(text, "AI News Summary")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	require.Contains(t, string(bytes.TrimSpace(out)), "%%EOF")
}

func TestRenderPDFLongTextPaginates(t *testing.T) {
	text := strings.Repeat("A long paragraph of summary text that keeps going.\n", 400)
	pdf := NewPDFRenderer(nil).layout(text, "Long")
	require.NoError(t, pdf.Error())
	require.Greater(t, pdf.PageCount(), 1)
}

func TestSpeechText(t *testing.T) {
	in := "# Headline\n\n**Bold** and *italic* and __strong__ and _em_.\n\n---\n\n- first item\n* second item\n\nSee [the report](https://example.com). Really? Yes!  Done"
	got := SpeechText(in)

	require.NotContains(t, got, "#")
	require.NotContains(t, got, "*")
	require.NotContains(t, got, "](")
	require.NotContains(t, got, "---")
	require.Contains(t, got, "Bold and italic and strong and em.")
	require.Contains(t, got, "first item\nsecond item")
	require.Contains(t, got, "See the report... Really?... Yes!... Done")
}

func TestTruncateRunes(t *testing.T) {
	require.Equal(t, "short", truncateRunes("short", 10))
	require.Equal(t, "one two", truncateRunes("one two three", 10))
	require.Equal(t, "ééé", truncateRunes("éééééé", 3))
}

func TestRenderAudio(t *testing.T) {
	var (
		got  speechRequest
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake-mp3"))
	}))
	defer srv.Close()

	c := NewAudioClient(srv.URL, "key", 5*time.Second, nil)
	audio, err := c.RenderAudio(context.Background(), "## Hello\n\n**World**", "nova")
	require.NoError(t, err)
	require.Equal(t, []byte("ID3fake-mp3"), audio)
	require.Equal(t, "Bearer key", auth)
	require.Equal(t, speechRequest{Model: speechModel, Input: "Hello\n\nWorld", Voice: "nova", ResponseFormat: "mp3"}, got)
}

func TestRenderAudioFailures(t *testing.T) {
	_, err := NewAudioClient("", "", time.Second, nil).RenderAudio(context.Background(), "text", "nova")
	require.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err = NewAudioClient(srv.URL, "", time.Second, nil).RenderAudio(context.Background(), "text", "nova")
	require.ErrorContains(t, err, "429")
}
