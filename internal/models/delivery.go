package models

import (
	"time"

	"gorm.io/datatypes"
)

// Rating is the reader's verdict on a digest's length
type Rating string

// Rating values carried in feedback links
const (
	RatingTooShort  Rating = "too_short"
	RatingJustRight Rating = "just_right"
	RatingTooLong   Rating = "too_long"
)

// Ratings lists every rating in the order feedback links are rendered.
var Ratings = []Rating{RatingTooShort, RatingJustRight, RatingTooLong}

// ParseRating validates a raw rating string.
func ParseRating(s string) (Rating, bool) {
	switch r := Rating(s); r {
	case RatingTooShort, RatingJustRight, RatingTooLong:
		return r, true
	}
	return "", false
}

// Label returns the human-readable form shown on pages and in emails.
func (r Rating) Label() string {
	switch r {
	case RatingTooShort:
		return "Too Short"
	case RatingJustRight:
		return "Just Right"
	case RatingTooLong:
		return "Too Long"
	}
	return string(r)
}

// DeliveryLogEntry is an append-only record of one digest send. The snapshot fields
// capture the settings in effect at send time and are never updated afterwards.
type DeliveryLogEntry struct {
	ID                 uint                        `gorm:"primarykey"`
	UserID             uint                        `gorm:"not null;index:idx_delivery_logs_user_delivered,priority:1"`
	DeliveredAt        time.Time                   `gorm:"not null;index:idx_delivery_logs_user_delivered,priority:2,sort:desc"`
	CategoriesUsed     datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	SourcesUsed        datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	ItemsPerCategory   int                         `gorm:"not null"`
	WordCountTarget    int                         `gorm:"not null"`
	ActualWordCount    int                         `gorm:"not null"`
	EmailSentTo        string                      `gorm:"not null"`
	PDFIncluded        bool                        `gorm:"column:pdf_included;not null"`
	AudioIncluded      bool                        `gorm:"not null"`
	FeedbackToken      string                      `gorm:"not null;uniqueIndex"`
	FeedbackExpiresAt  time.Time                   `gorm:"not null"`
	FeedbackReceived   *Rating                     `gorm:"type:varchar(16)"`
	FeedbackReceivedAt *time.Time
}

// TableName pins the table name used by migrations.
func (DeliveryLogEntry) TableName() string {
	return "delivery_logs"
}

// Answered reports whether feedback was already recorded for this entry.
func (d *DeliveryLogEntry) Answered() bool {
	return d.FeedbackReceived != nil
}

// Expired reports whether the feedback window closed before now.
func (d *DeliveryLogEntry) Expired(now time.Time) bool {
	return now.After(d.FeedbackExpiresAt)
}
