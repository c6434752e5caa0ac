// Package digest produces and delivers one user's news digest.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jimdaga/newsdigest/internal/events"
	"github.com/jimdaga/newsdigest/internal/feeds"
	"github.com/jimdaga/newsdigest/internal/metrics"
	"github.com/jimdaga/newsdigest/internal/models"
	"github.com/jimdaga/newsdigest/internal/notify"
	"github.com/jimdaga/newsdigest/internal/store"
)

const pdfTitle = "AI News Summary"

// Store is the persistence the orchestrator needs.
type Store interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetSettings(ctx context.Context, userID uint) (*models.UserSettings, error)
	CreateDeliveryLog(ctx context.Context, entry *models.DeliveryLogEntry) error
}

// Aggregator fetches articles for category or source keys.
type Aggregator interface {
	Fetch(ctx context.Context, keys []string, maxPerGroup int) ([]feeds.ArticleRecord, error)
}

// Summarizer condenses an excerpt block to about targetWordCount words.
type Summarizer interface {
	Summarize(ctx context.Context, excerpt string, targetWordCount int) (string, error)
}

// PDFRenderer turns summary text into a PDF document.
type PDFRenderer interface {
	RenderPDF(text, title string) ([]byte, error)
}

// AudioRenderer turns summary text into speech.
type AudioRenderer interface {
	RenderAudio(ctx context.Context, text, voice string) ([]byte, error)
}

// Notifier sends an email.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// EventPublisher announces deliveries. Optional.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) (string, error)
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Store      Store
	Aggregator Aggregator
	Summarizer Summarizer
	PDF        PDFRenderer
	Audio      AudioRenderer
	Notifier   Notifier
	Events     EventPublisher
}

// Config tunes an Orchestrator.
type Config struct {
	BaseURL     string
	Voice       string
	FeedbackTTL time.Duration
	// CallTimeout bounds each external call.
	CallTimeout time.Duration
	Now         func() time.Time
	NewToken    func() (string, error)
	Logger      *slog.Logger
}

// Orchestrator runs the digest pipeline for a single user.
type Orchestrator struct {
	deps     Deps
	baseURL  string
	voice    string
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
	newToken func() (string, error)
	logger   *slog.Logger
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	o := &Orchestrator{
		deps:     deps,
		baseURL:  cfg.BaseURL,
		voice:    cfg.Voice,
		ttl:      cfg.FeedbackTTL,
		timeout:  cfg.CallTimeout,
		now:      cfg.Now,
		newToken: cfg.NewToken,
		logger:   cfg.Logger,
	}
	if o.voice == "" {
		o.voice = "nova"
	}
	if o.ttl <= 0 {
		o.ttl = 7 * 24 * time.Hour
	}
	if o.timeout <= 0 {
		o.timeout = 60 * time.Second
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if o.newToken == nil {
		o.newToken = NewFeedbackToken
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "digest")
	return o
}

// Run produces and delivers userID's digest. It never panics and never returns a
// bare error: skips and failures are reported through the Outcome.
func (o *Orchestrator) Run(ctx context.Context, userID uint) (out Outcome) {
	started := time.Now()
	step := StepLoad
	logger := o.logger.With("user_id", userID)

	defer func() {
		if r := recover(); r != nil {
			out = failed(userID, step, fmt.Errorf("panic: %v", r))
		}
		o.observe(logger, out, time.Since(started))
	}()

	user, err := o.deps.Store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return skipped(userID, step, ReasonUserNotFound)
	}
	if err != nil {
		return failed(userID, step, fmt.Errorf("failed to load user: %w", err))
	}

	settings, err := o.deps.Store.GetSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return skipped(userID, step, ReasonSettingsNotFound)
	}
	if err != nil {
		return failed(userID, step, fmt.Errorf("failed to load settings: %w", err))
	}
	if !settings.SchedulerEnabled {
		return skipped(userID, step, ReasonSchedulerDisabled)
	}
	if settings.NotificationEmail == "" {
		return skipped(userID, step, ReasonNoNotificationMail)
	}

	// Snapshot the settings used for this send; the ledger records these values.
	snapshot := *settings
	logger.Info("processing digest",
		"interval_hours", snapshot.SchedulerIntervalHours,
		"max_items", snapshot.MaxItemsPerCategory,
		"target_words", snapshot.TargetWordCount,
	)

	step = StepAggregate
	articles, err := o.aggregate(ctx, snapshot)
	if err != nil {
		return failed(userID, step, err)
	}
	if len(articles) == 0 {
		return skipped(userID, step, ReasonNoArticles)
	}

	step = StepSummarize
	excerpt := BuildExcerptBlock(articles)
	logger.Debug("built excerpt block", "articles", len(articles), "chars", len(excerpt))
	summary, err := withTimeout(ctx, o.timeout, func(ctx context.Context) (string, error) {
		return o.deps.Summarizer.Summarize(ctx, excerpt, snapshot.TargetWordCount)
	})
	if err == nil && summary == "" {
		err = errors.New("summarizer returned no summary")
	}
	if err != nil {
		return failed(userID, step, err)
	}
	actualWords := WordCount(summary)

	step = StepRenderPDF
	pdf, err := o.deps.PDF.RenderPDF(summary, pdfTitle)
	if err != nil {
		return failed(userID, step, fmt.Errorf("failed to render pdf: %w", err))
	}

	// Audio is an entitlement: only premium users ever get it.
	var audio []byte
	if user.IsPremium {
		step = StepRenderAudio
		audio, err = withTimeout(ctx, o.timeout, func(ctx context.Context) ([]byte, error) {
			return o.deps.Audio.RenderAudio(ctx, summary, o.voice)
		})
		if err != nil {
			return failed(userID, step, fmt.Errorf("failed to render audio: %w", err))
		}
	}

	step = StepToken
	token, err := o.newToken()
	if err != nil {
		return failed(userID, step, err)
	}
	sentAt := o.now()
	expiresAt := sentAt.Add(o.ttl)

	step = StepCompose
	msg, err := notify.BuildDigest(o.baseURL, notify.Digest{
		To:            snapshot.NotificationEmail,
		Summary:       summary,
		PDF:           pdf,
		Audio:         audio,
		FeedbackToken: token,
		ExpiresAt:     expiresAt,
		SentAt:        sentAt,
	})
	if err != nil {
		return failed(userID, step, err)
	}

	step = StepSend
	_, err = withTimeout(ctx, o.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.deps.Notifier.Send(ctx, msg)
	})
	if err != nil {
		return failed(userID, step, err)
	}

	step = StepRecord
	entry := &models.DeliveryLogEntry{
		UserID:            userID,
		DeliveredAt:       sentAt,
		CategoriesUsed:    append([]string{}, snapshot.Categories...),
		SourcesUsed:       append([]string{}, snapshot.Sources...),
		ItemsPerCategory:  snapshot.MaxItemsPerCategory,
		WordCountTarget:   snapshot.TargetWordCount,
		ActualWordCount:   actualWords,
		EmailSentTo:       snapshot.NotificationEmail,
		PDFIncluded:       len(pdf) > 0,
		AudioIncluded:     len(audio) > 0,
		FeedbackToken:     token,
		FeedbackExpiresAt: expiresAt,
	}
	if err := o.deps.Store.CreateDeliveryLog(ctx, entry); err != nil {
		return failed(userID, step, err)
	}

	o.publish(ctx, logger, entry)
	return delivered(userID, entry)
}

// aggregate fetches category groups then source groups and concatenates them.
func (o *Orchestrator) aggregate(ctx context.Context, s models.UserSettings) ([]feeds.ArticleRecord, error) {
	var articles []feeds.ArticleRecord
	for _, keys := range [][]string{s.Categories, s.Sources} {
		if len(keys) == 0 {
			continue
		}
		group, err := withTimeout(ctx, o.timeout, func(ctx context.Context) ([]feeds.ArticleRecord, error) {
			return o.deps.Aggregator.Fetch(ctx, keys, s.MaxItemsPerCategory)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch articles: %w", err)
		}
		articles = append(articles, group...)
	}
	return articles, nil
}

func (o *Orchestrator) publish(ctx context.Context, logger *slog.Logger, entry *models.DeliveryLogEntry) {
	if o.deps.Events == nil {
		return
	}
	if _, err := o.deps.Events.Publish(ctx, events.DigestDelivered(entry)); err != nil {
		logger.Warn("failed to publish delivery event", "delivery_id", entry.ID, "error", err)
	}
}

func (o *Orchestrator) observe(logger *slog.Logger, out Outcome, elapsed time.Duration) {
	metrics.DigestsTotal.WithLabelValues(string(out.Status)).Inc()
	metrics.DigestDuration.Observe(elapsed.Seconds())

	switch out.Status {
	case StatusDelivered:
		logger.Info("digest delivered",
			"delivery_id", out.Entry.ID,
			"email", out.Entry.EmailSentTo,
			"actual_words", out.Entry.ActualWordCount,
			"audio", out.Entry.AudioIncluded,
			"duration", elapsed,
		)
	case StatusSkipped:
		logger.Info("digest skipped", "step", out.Step, "reason", out.Reason)
	case StatusFailed:
		metrics.DigestStepFailures.WithLabelValues(string(out.Step)).Inc()
		logger.Error("digest failed", "step", out.Step, "error", out.Err)
	}
}

// withTimeout runs fn under a child context that expires after d.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
