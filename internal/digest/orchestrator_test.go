package digest_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jimdaga/newsdigest/internal/digest"
	"github.com/jimdaga/newsdigest/internal/digest/digesttest"
	"github.com/jimdaga/newsdigest/internal/events"
	"github.com/jimdaga/newsdigest/internal/models"
	"github.com/jimdaga/newsdigest/internal/notify"
	"github.com/jimdaga/newsdigest/internal/store"
	"github.com/jimdaga/newsdigest/internal/store/storetest"
	"github.com/jimdaga/newsdigest/internal/summarizer"
)

var fixedNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type harness struct {
	store  *store.Store
	agg    *digesttest.Aggregator
	sum    *digesttest.Summarizer
	pdf    *digesttest.PDF
	audio  *digesttest.Audio
	mail   *digesttest.Notifier
	events *digesttest.Events
	orch   *digest.Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  storetest.New(t),
		agg:    &digesttest.Aggregator{Articles: digesttest.Articles(3)},
		sum:    &digesttest.Summarizer{Summary: digesttest.Words(480)},
		pdf:    &digesttest.PDF{},
		audio:  &digesttest.Audio{},
		mail:   &digesttest.Notifier{},
		events: &digesttest.Events{},
	}
	h.orch = digest.New(digest.Deps{
		Store:      h.store,
		Aggregator: h.agg,
		Summarizer: h.sum,
		PDF:        h.pdf,
		Audio:      h.audio,
		Notifier:   h.mail,
		Events:     h.events,
	}, digest.Config{
		BaseURL:     "https://digest.example.com",
		FeedbackTTL: 7 * 24 * time.Hour,
		CallTimeout: 5 * time.Second,
		Now:         func() time.Time { return fixedNow },
	})
	return h
}

func (h *harness) deliveries(t *testing.T, userID uint) []models.DeliveryLogEntry {
	t.Helper()
	entries, _, err := h.store.ListDeliveries(context.Background(), userID, 100, 0)
	require.NoError(t, err)
	return entries
}

func TestRunDeliversDigest(t *testing.T) {
	r := require.New(t)
	h := newHarness(t)
	h.agg.Articles = digesttest.Articles(3)
	user := storetest.CreateUser(t, h.store, storetest.UserOpts{
		Email:      "u@example.com",
		Scheduled:  true,
		Categories: []string{"technology", "business"},
		Sources:    []string{"bbc"},
	})

	out := h.orch.Run(context.Background(), user.ID)
	r.Equal(digest.StatusDelivered, out.Status, out.String())

	// one call for the category group, one for the source group: 3 + 3 articles
	r.Equal([][]string{{"technology", "business"}, {"bbc"}}, h.agg.Calls)
	r.Equal([]int{5, 5}, h.agg.MaxSeen)
	r.Equal([]int{500}, h.sum.Targets)

	entries := h.deliveries(t, user.ID)
	r.Len(entries, 1)
	e := entries[0]
	r.Equal(500, e.WordCountTarget)
	r.Equal(480, e.ActualWordCount)
	r.Equal(5, e.ItemsPerCategory)
	r.Equal("u@example.com", e.EmailSentTo)
	r.Equal([]string{"technology", "business"}, []string(e.CategoriesUsed))
	r.Equal([]string{"bbc"}, []string(e.SourcesUsed))
	r.True(e.PDFIncluded)
	r.False(e.AudioIncluded)
	r.True(e.DeliveredAt.Equal(fixedNow))
	r.True(e.FeedbackExpiresAt.Equal(fixedNow.Add(7 * 24 * time.Hour)))
	r.Nil(e.FeedbackReceived)
	r.NotEmpty(e.FeedbackToken)

	r.Len(h.mail.Sent, 1)
	msg := h.mail.Sent[0]
	r.Equal("u@example.com", msg.To)
	r.Equal("Your AI News Summary - March 02, 2026", msg.Subject)
	for _, rating := range models.Ratings {
		r.Contains(msg.HTMLBody, notify.FeedbackURL("https://digest.example.com", e.FeedbackToken, rating))
	}

	r.Len(h.events.Events, 1)
	r.Equal(events.TypeDigestDelivered, h.events.Events[0].Type)
	r.Equal(e.ID, h.events.Events[0].DeliveryID)
}

func TestRunPremiumGatesAudio(t *testing.T) {
	tests := []struct {
		name      string
		premium   bool
		wantAudio bool
	}{
		{"free user never gets audio", false, false},
		{"premium user gets audio", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			h := newHarness(t)
			user := storetest.CreateUser(t, h.store, storetest.UserOpts{Email: "u@example.com", Scheduled: true, Premium: tt.premium})

			out := h.orch.Run(context.Background(), user.ID)
			r.Equal(digest.StatusDelivered, out.Status, out.String())
			r.Equal(tt.wantAudio, out.Entry.AudioIncluded)
			r.True(out.Entry.PDFIncluded)

			msg := h.mail.Sent[0]
			var names []string
			for _, a := range msg.Attachments {
				names = append(names, a.Filename)
			}
			if tt.wantAudio {
				r.Equal(1, h.audio.Calls)
				r.Equal("nova", h.audio.Voice)
				r.Equal([]string{"news_summary_20260302.pdf", "news_summary_20260302.mp3"}, names)
			} else {
				r.Zero(h.audio.Calls)
				r.Equal([]string{"news_summary_20260302.pdf"}, names)
			}
		})
	}
}

func TestRunSkips(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, h *harness) uint
		reason string
	}{
		{
			name:   "unknown user",
			setup:  func(t *testing.T, h *harness) uint { return 4242 },
			reason: digest.ReasonUserNotFound,
		},
		{
			name: "scheduler disabled",
			setup: func(t *testing.T, h *harness) uint {
				return storetest.CreateUser(t, h.store, storetest.UserOpts{Email: "u@example.com"}).ID
			},
			reason: digest.ReasonSchedulerDisabled,
		},
		{
			name: "no notification email",
			setup: func(t *testing.T, h *harness) uint {
				u := storetest.CreateUser(t, h.store, storetest.UserOpts{Email: "u@example.com", Scheduled: true})
				_, err := h.store.UpdateSettings(context.Background(), u.ID, func(s *models.UserSettings) error {
					s.NotificationEmail = ""
					return nil
				})
				require.NoError(t, err)
				return u.ID
			},
			reason: digest.ReasonNoNotificationMail,
		},
		{
			name: "no articles",
			setup: func(t *testing.T, h *harness) uint {
				h.agg.Articles = nil
				return storetest.CreateUser(t, h.store, storetest.UserOpts{Email: "u@example.com", Scheduled: true}).ID
			},
			reason: digest.ReasonNoArticles,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			h := newHarness(t)
			userID := tt.setup(t, h)

			out := h.orch.Run(context.Background(), userID)
			r.Equal(digest.StatusSkipped, out.Status)
			r.Equal(tt.reason, out.Reason)
			r.NoError(out.Err)
			r.Empty(h.mail.Sent)
			r.Empty(h.deliveries(t, userID))
		})
	}
}

func TestRunFailuresWriteNoLedgerEntry(t *testing.T) {
	tests := []struct {
		name  string
		fault func(h *harness)
		step  digest.Step
	}{
		{"summarizer unavailable", func(h *harness) { h.sum.Err = summarizer.ErrUnavailable }, digest.StepSummarize},
		{"summarizer returns nothing", func(h *harness) { h.sum.Summary = "" }, digest.StepSummarize},
		{"aggregator error", func(h *harness) { h.agg.Err = context.DeadlineExceeded }, digest.StepAggregate},
		{"pdf error", func(h *harness) { h.pdf.Err = errors.New("font missing") }, digest.StepRenderPDF},
		{"pdf panic", func(h *harness) { h.pdf.PanicOnCall = 1 }, digest.StepRenderPDF},
		{"audio error", func(h *harness) { h.audio.Err = errors.New("quota") }, digest.StepRenderAudio},
		{"send error", func(h *harness) { h.mail.Err = errors.New("smtp down") }, digest.StepSend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			h := newHarness(t)
			user := storetest.CreateUser(t, h.store, storetest.UserOpts{Email: "u@example.com", Scheduled: true, Premium: true})
			tt.fault(h)

			out := h.orch.Run(context.Background(), user.ID)
			r.Equal(digest.StatusFailed, out.Status)
			r.Equal(tt.step, out.Step)
			r.Error(out.Err)
			r.Nil(out.Entry)
			r.Empty(h.mail.Sent)
			r.Empty(h.deliveries(t, user.ID))
			r.Empty(h.events.Events)
		})
	}
}

func TestRunSnapshotsSettingsAtSendTime(t *testing.T) {
	r := require.New(t)
	h := newHarness(t)
	ctx := context.Background()
	user := storetest.CreateUser(t, h.store, storetest.UserOpts{Email: "u@example.com", Scheduled: true, TargetWordCount: 700})

	out := h.orch.Run(ctx, user.ID)
	r.Equal(digest.StatusDelivered, out.Status, out.String())

	_, err := h.store.UpdateSettings(ctx, user.ID, func(s *models.UserSettings) error {
		s.TargetWordCount = 300
		s.Categories = []string{"sports"}
		s.MaxItemsPerCategory = 2
		return nil
	})
	r.NoError(err)

	e, err := h.store.GetDelivery(ctx, user.ID, out.Entry.ID)
	r.NoError(err)
	r.Equal(700, e.WordCountTarget)
	r.Equal(5, e.ItemsPerCategory)
	r.Equal(models.DefaultCategories, []string(e.CategoriesUsed))
}

func TestBuildExcerptBlock(t *testing.T) {
	block := digest.BuildExcerptBlock(digesttest.Articles(2))
	want := "ARTICLE 1: Headline 1\nSource: Example Wire\nSummary of story 1.\n\n" +
		"ARTICLE 2: Headline 2\nSource: Example Wire\nSummary of story 2."
	require.Equal(t, want, block)

	articles := digesttest.Articles(1)
	articles[0].Summary = ""
	articles[0].Content = "Full scraped text."
	require.Equal(t, "ARTICLE 1: Headline 1\nSource: Example Wire\nFull scraped text.", digest.BuildExcerptBlock(articles))
}

func TestWordCount(t *testing.T) {
	require.Equal(t, 0, digest.WordCount("  \n "))
	require.Equal(t, 3, digest.WordCount("one\ttwo\n\nthree"))
	require.Equal(t, 480, digest.WordCount(digesttest.Words(480)))
}

func TestFeedbackTokensAreUnique(t *testing.T) {
	const n = 2000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		tok, err := digest.NewFeedbackToken()
		require.NoError(t, err)
		require.Len(t, tok, 43)
		require.False(t, strings.ContainsAny(tok, "+/="))
		seen[tok] = struct{}{}
	}
	require.Len(t, seen, n)
}
