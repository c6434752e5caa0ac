package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSummarizePostsExcerpt(t *testing.T) {
	var (
		got    Request
		path   string
		secret string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		secret = r.Header.Get("X-Summarizer-Secret")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(Response{Summary: "  Short and sweet.  "})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "s3cret", false, 5*time.Second, nil)
	summary, err := c.Summarize(context.Background(), "ARTICLE 1: Title", 450)
	require.NoError(t, err)
	require.Equal(t, "Short and sweet.", summary)
	require.Equal(t, "/summarize", path)
	require.Equal(t, "s3cret", secret)
	require.Equal(t, Request{Text: "ARTICLE 1: Title", TargetWordCount: 450}, got)
}

func TestSummarizeFailuresAreUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}},
		{"empty summary", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"summary":"   "}`))
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(srv.URL, "", false, 50*time.Millisecond, nil)
			_, err := c.Summarize(context.Background(), "text", 200)
			require.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestSummarizeWithoutURL(t *testing.T) {
	_, err := NewClient("", "", false, time.Second, nil).Summarize(context.Background(), "text", 200)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestStubModeTruncatesToTarget(t *testing.T) {
	c := NewClient("", "", true, time.Second, nil)
	excerpt := strings.Repeat("word ", 300)

	summary, err := c.Summarize(context.Background(), excerpt, 200)
	require.NoError(t, err)
	// heading adds three tokens
	require.Len(t, strings.Fields(summary), 203)
}
