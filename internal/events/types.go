// Package events publishes delivery and feedback events to Redis Streams.
package events

import (
	"time"

	"github.com/jimdaga/newsdigest/internal/models"
)

// StreamDigestEvents is the stream every event is appended to.
const StreamDigestEvents = "digest:events"

// GroupEventLoggers is the consumer group used by the tail command.
const GroupEventLoggers = "event-loggers"

// SchemaVersionV1 tags the payload layout.
const SchemaVersionV1 = "v1"

// Event types
const (
	TypeDigestDelivered  = "digest.delivered"
	TypeFeedbackReceived = "feedback.received"
)

// Event is one message on the digest stream.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	UserID     uint           `json:"user_id"`
	DeliveryID uint           `json:"delivery_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// DigestDelivered describes a ledger entry that was just written.
func DigestDelivered(entry *models.DeliveryLogEntry) Event {
	return Event{
		Type:       TypeDigestDelivered,
		UserID:     entry.UserID,
		DeliveryID: entry.ID,
		OccurredAt: entry.DeliveredAt,
		Attributes: map[string]any{
			"email_sent_to":     entry.EmailSentTo,
			"word_count_target": entry.WordCountTarget,
			"actual_word_count": entry.ActualWordCount,
			"pdf_included":      entry.PDFIncluded,
			"audio_included":    entry.AudioIncluded,
		},
	}
}

// FeedbackReceived describes a recorded rating and the word count change it caused.
func FeedbackReceived(entry *models.DeliveryLogEntry, rating models.Rating, oldCount, newCount int, at time.Time) Event {
	return Event{
		Type:       TypeFeedbackReceived,
		UserID:     entry.UserID,
		DeliveryID: entry.ID,
		OccurredAt: at,
		Attributes: map[string]any{
			"rating":         string(rating),
			"old_word_count": oldCount,
			"new_word_count": newCount,
		},
	}
}
