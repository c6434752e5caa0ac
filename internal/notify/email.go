package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jimdaga/newsdigest/internal/models"
)

//go:embed templates/digest.html
var templateFS embed.FS

var digestTemplate = template.Must(template.ParseFS(templateFS, "templates/digest.html"))

var md = goldmark.New(
	goldmark.WithExtensions(
		extension.NewLinkify(
			extension.WithLinkifyAllowedProtocols([][]byte{
				[]byte("http:"),
				[]byte("https:"),
			}),
		),
	),
)

// Digest is everything needed to compose one digest email.
type Digest struct {
	To            string
	Summary       string
	PDF           []byte
	Audio         []byte
	FeedbackToken string
	ExpiresAt     time.Time
	SentAt        time.Time
}

type feedbackLink struct {
	Label string
	URL   string
}

// FeedbackURL builds the link a reader clicks to rate a digest.
func FeedbackURL(baseURL, token string, rating models.Rating) string {
	return fmt.Sprintf("%s/api/feedback/%s?rating=%s",
		strings.TrimRight(baseURL, "/"), url.PathEscape(token), url.QueryEscape(string(rating)))
}

// BuildDigest composes the digest email with HTML and text bodies, attachments
// and one feedback link per rating.
func BuildDigest(baseURL string, d Digest) (Message, error) {
	stamp := d.SentAt.Format("20060102")

	var attachments []Attachment
	var attachmentNames []string
	if len(d.PDF) > 0 {
		attachments = append(attachments, Attachment{
			Filename: "news_summary_" + stamp + ".pdf",
			Data:     d.PDF,
			MIMEType: "application/pdf",
		})
		attachmentNames = append(attachmentNames, "PDF Summary")
	}
	if len(d.Audio) > 0 {
		attachments = append(attachments, Attachment{
			Filename: "news_summary_" + stamp + ".mp3",
			Data:     d.Audio,
			MIMEType: "audio/mpeg",
		})
		attachmentNames = append(attachmentNames, "Audio Summary (MP3)")
	}

	links := make([]feedbackLink, 0, len(models.Ratings))
	for _, r := range models.Ratings {
		links = append(links, feedbackLink{Label: r.Label(), URL: FeedbackURL(baseURL, d.FeedbackToken, r)})
	}

	var summaryHTML bytes.Buffer
	if err := md.Convert([]byte(d.Summary), &summaryHTML); err != nil {
		return Message{}, fmt.Errorf("failed to render summary markdown: %w", err)
	}

	var html bytes.Buffer
	err := digestTemplate.Execute(&html, map[string]any{
		"Date":        d.SentAt.Format("January 02, 2006"),
		"Time":        d.SentAt.Format("03:04 PM MST"),
		"Summary":     template.HTML(summaryHTML.String()),
		"Attachments": attachmentNames,
		"Feedback":    links,
		"ExpiresOn":   d.ExpiresAt.Format("January 02, 2006"),
	})
	if err != nil {
		return Message{}, fmt.Errorf("failed to render email template: %w", err)
	}

	return Message{
		To:          d.To,
		Subject:     "Your AI News Summary - " + d.SentAt.Format("January 02, 2006"),
		HTMLBody:    html.String(),
		TextBody:    textBody(d.Summary, links),
		Attachments: attachments,
	}, nil
}

func textBody(summary string, links []feedbackLink) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(summary))
	b.WriteString("\n\n---\nHow was the length of this summary?\n")
	for _, l := range links {
		fmt.Fprintf(&b, "%s: %s\n", l.Label, l.URL)
	}
	return b.String()
}
