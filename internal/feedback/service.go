// Package feedback turns a click on a digest's feedback link into a recorded rating
// and an adjustment of the reader's target word count.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jimdaga/newsdigest/internal/events"
	"github.com/jimdaga/newsdigest/internal/metrics"
	"github.com/jimdaga/newsdigest/internal/models"
	"github.com/jimdaga/newsdigest/internal/store"
)

var (
	// ErrInvalidRating is returned for a rating outside too_short, just_right and too_long.
	ErrInvalidRating = errors.New("invalid rating")

	// ErrMalformedToken is returned for a token that could never have been issued.
	ErrMalformedToken = errors.New("malformed feedback token")
)

const maxTokenLength = 128

// Result is the terminal state a submission ends in.
type Result string

const (
	ResultRecorded         Result = "recorded"
	ResultAlreadySubmitted Result = "already_submitted"
	ResultExpired          Result = "expired"
	ResultNotFound         Result = "not_found"
)

// Outcome describes what a submission did.
type Outcome struct {
	Result Result
	// Rating is the rating now stored on the entry: the new one when recorded,
	// the earlier one when already submitted.
	Rating  models.Rating
	Change  store.WordCountChange
	Message string
}

// Success reports whether the outcome renders as a success page.
func (o Outcome) Success() bool {
	return o.Result == ResultRecorded || o.Result == ResultAlreadySubmitted
}

// Store is the persistence the service needs.
type Store interface {
	FindDeliveryByToken(ctx context.Context, token string) (*models.DeliveryLogEntry, error)
	RecordFeedback(ctx context.Context, entry *models.DeliveryLogEntry, rating models.Rating, at time.Time, adjust func(int) int) (store.WordCountChange, error)
}

// EventPublisher receives feedback.received events. It may be nil.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) (string, error)
}

// Service resolves feedback tokens.
type Service struct {
	store  Store
	events EventPublisher
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a Service. A nil now defaults to the UTC wall clock.
func NewService(st Store, pub EventPublisher, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		events: pub,
		now:    now,
		logger: logger.With("component", "feedback"),
	}
}

// Adjust returns the target word count after rating is applied to current.
func Adjust(rating models.Rating, current int) int {
	switch rating {
	case models.RatingTooLong:
		return max(models.MinTargetWordCount, current-models.WordCountStep)
	case models.RatingTooShort:
		return min(models.MaxTargetWordCount, current+models.WordCountStep)
	}
	return current
}

// Submit applies rawRating to the delivery identified by token. The rating is
// validated before the token is looked up.
func (s *Service) Submit(ctx context.Context, token, rawRating string) (Outcome, error) {
	rating, ok := models.ParseRating(rawRating)
	if !ok {
		metrics.FeedbackTotal.WithLabelValues("invalid", "invalid_rating").Inc()
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidRating, rawRating)
	}
	if !wellFormed(token) {
		metrics.FeedbackTotal.WithLabelValues(string(rating), "malformed_token").Inc()
		return Outcome{}, ErrMalformedToken
	}

	out, err := s.submit(ctx, token, rating)
	if err != nil {
		return Outcome{}, err
	}
	metrics.FeedbackTotal.WithLabelValues(string(rating), string(out.Result)).Inc()
	return out, nil
}

func (s *Service) submit(ctx context.Context, token string, rating models.Rating) (Outcome, error) {
	entry, err := s.store.FindDeliveryByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("feedback for unknown token", "rating", rating)
		return Outcome{Result: ResultNotFound, Message: "Feedback link not found or expired."}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to look up feedback token: %w", err)
	}

	logger := s.logger.With("user_id", entry.UserID, "delivery_id", entry.ID)

	if entry.Answered() {
		logger.Info("feedback already submitted", "rating", *entry.FeedbackReceived)
		return alreadySubmitted(*entry.FeedbackReceived), nil
	}

	now := s.now()
	if entry.Expired(now) {
		logger.Warn("feedback link expired", "expired_at", entry.FeedbackExpiresAt)
		return Outcome{Result: ResultExpired, Message: "This feedback link has expired."}, nil
	}

	change, err := s.store.RecordFeedback(ctx, entry, rating, now, func(current int) int {
		return Adjust(rating, current)
	})
	if errors.Is(err, store.ErrAlreadyAnswered) {
		// Lost a race with a concurrent click; report what the winner stored.
		winner, lookupErr := s.store.FindDeliveryByToken(ctx, token)
		if lookupErr != nil || !winner.Answered() {
			return alreadySubmitted(rating), nil
		}
		return alreadySubmitted(*winner.FeedbackReceived), nil
	}
	if err != nil {
		return Outcome{}, err
	}

	logger.Info("feedback recorded",
		"rating", rating,
		"old_word_count", change.Old,
		"new_word_count", change.New,
	)
	s.publish(ctx, logger, entry, rating, change, now)

	return Outcome{
		Result:  ResultRecorded,
		Rating:  rating,
		Change:  change,
		Message: adjustmentMessage(change),
	}, nil
}

func (s *Service) publish(ctx context.Context, logger *slog.Logger, entry *models.DeliveryLogEntry, rating models.Rating, change store.WordCountChange, at time.Time) {
	if s.events == nil {
		return
	}
	ev := events.FeedbackReceived(entry, rating, change.Old, change.New, at)
	if _, err := s.events.Publish(ctx, ev); err != nil {
		logger.Warn("failed to publish feedback event", "error", err)
	}
}

func alreadySubmitted(prior models.Rating) Outcome {
	return Outcome{
		Result:  ResultAlreadySubmitted,
		Rating:  prior,
		Message: "You already submitted feedback: " + prior.Label(),
	}
}

func adjustmentMessage(c store.WordCountChange) string {
	switch {
	case c.New < c.Old:
		return fmt.Sprintf("Summary length decreased: %d → %d words", c.Old, c.New)
	case c.New > c.Old:
		return fmt.Sprintf("Summary length increased: %d → %d words", c.Old, c.New)
	}
	return fmt.Sprintf("Summary length unchanged: %d words", c.Old)
}

// wellFormed accepts non-empty URL-safe base64 tokens of bounded length.
func wellFormed(token string) bool {
	if token == "" || len(token) > maxTokenLength {
		return false
	}
	for _, r := range token {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
