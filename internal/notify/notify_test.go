package notify

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jimdaga/newsdigest/internal/models"
)

func TestFeedbackURL(t *testing.T) {
	got := FeedbackURL("https://digest.example.com/", "abc-_123", models.RatingTooLong)
	require.Equal(t, "https://digest.example.com/api/feedback/abc-_123?rating=too_long", got)
}

func TestBuildDigest(t *testing.T) {
	sent := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	msg, err := BuildDigest("https://digest.example.com", Digest{
		To:            "reader@example.com",
		Summary:       "## Top Stories\n\n**Markets** rallied. <script>alert(1)</script>",
		PDF:           []byte("%PDF-1.3"),
		FeedbackToken: "tok",
		ExpiresAt:     sent.Add(7 * 24 * time.Hour),
		SentAt:        sent,
	})
	require.NoError(t, err)

	require.Equal(t, "reader@example.com", msg.To)
	require.Equal(t, "Your AI News Summary - March 02, 2026", msg.Subject)
	require.Len(t, msg.Attachments, 1)
	require.Equal(t, "news_summary_20260302.pdf", msg.Attachments[0].Filename)
	require.Equal(t, "application/pdf", msg.Attachments[0].MIMEType)

	require.Contains(t, msg.HTMLBody, "<h2>Top Stories</h2>")
	require.Contains(t, msg.HTMLBody, "<strong>Markets</strong>")
	require.NotContains(t, msg.HTMLBody, "<script>alert(1)</script>")
	require.NotContains(t, msg.HTMLBody, "Audio Summary")
	for _, r := range models.Ratings {
		link := FeedbackURL("https://digest.example.com", "tok", r)
		require.Contains(t, msg.HTMLBody, link)
		require.Contains(t, msg.TextBody, r.Label()+": "+link)
	}
	require.Contains(t, msg.HTMLBody, "March 09, 2026")
}

func TestBuildDigestWithAudio(t *testing.T) {
	sent := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)
	msg, err := BuildDigest("https://x", Digest{
		To: "a@example.com", Summary: "hi", PDF: []byte("pdf"), Audio: []byte("mp3"),
		FeedbackToken: "tok", SentAt: sent, ExpiresAt: sent,
	})
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 2)
	require.Equal(t, "news_summary_20260302.mp3", msg.Attachments[1].Filename)
	require.Equal(t, "audio/mpeg", msg.Attachments[1].MIMEType)
	require.Contains(t, msg.HTMLBody, "Audio Summary (MP3)")
}

func TestBuildMessageAttachments(t *testing.T) {
	m := buildMessage("from@example.com", Message{
		To:          "to@example.com",
		Subject:     "Subject",
		TextBody:    "plain",
		HTMLBody:    "<p>html</p>",
		Attachments: []Attachment{{Filename: "news_summary_20260302.pdf", Data: []byte("pdf-bytes"), MIMEType: "application/pdf"}},
	})

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	require.Contains(t, raw, "Subject: Subject")
	require.Contains(t, raw, `filename="news_summary_20260302.pdf"`)
	require.Contains(t, raw, "Content-Type: application/pdf")
	require.True(t, strings.Contains(raw, "text/html"))
}

func TestSendWithoutHost(t *testing.T) {
	n := NewSMTPNotifier("", 587, "", "", "", nil)
	err := n.Send(context.Background(), Message{To: "a@example.com"})
	require.ErrorContains(t, err, "not configured")
}

func TestSendHonorsContextWhenRelayStalls(t *testing.T) {
	// accepts connections but never writes the SMTP greeting
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	conns := make(chan net.Conn, 4)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			conns <- c
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		for {
			select {
			case c := <-conns:
				c.Close()
			default:
				return
			}
		}
	})

	port := ln.Addr().(*net.TCPAddr).Port
	n := NewSMTPNotifier("127.0.0.1", port, "", "", "digest@example.com", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	begin := time.Now()
	err = n.Send(ctx, Message{To: "reader@example.com", Subject: "Digest", TextBody: "hi"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(begin), 2*time.Second)
}
