package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jimdaga/newsdigest/internal/models"
	"gorm.io/gorm"
)

// maxWordCountAttempts bounds the compare-and-set loop on target_word_count.
const maxWordCountAttempts = 5

// CreateDeliveryLog appends a ledger entry.
func (s *Store) CreateDeliveryLog(ctx context.Context, entry *models.DeliveryLogEntry) error {
	if entry.FeedbackToken == "" {
		return errors.New("delivery log entry requires a feedback token")
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create delivery log: %w", err)
	}
	return nil
}

// LastDelivery returns the user's most recent ledger entry, or ErrNotFound.
func (s *Store) LastDelivery(ctx context.Context, userID uint) (*models.DeliveryLogEntry, error) {
	var entry models.DeliveryLogEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("delivered_at DESC").
		Order("id DESC").
		First(&entry).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// FindDeliveryByToken resolves a feedback token to its ledger entry.
func (s *Store) FindDeliveryByToken(ctx context.Context, token string) (*models.DeliveryLogEntry, error) {
	var entry models.DeliveryLogEntry
	if err := s.db.WithContext(ctx).Where("feedback_token = ?", token).First(&entry).Error; err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// ListDeliveries returns one page of a user's history, newest first, plus the total count.
func (s *Store) ListDeliveries(ctx context.Context, userID uint, limit, offset int) ([]models.DeliveryLogEntry, int64, error) {
	var total int64
	q := s.db.WithContext(ctx).Model(&models.DeliveryLogEntry{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count deliveries: %w", err)
	}

	var entries []models.DeliveryLogEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("delivered_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return entries, total, nil
}

// GetDelivery loads one entry owned by userID. Entries of other users are reported as not found.
func (s *Store) GetDelivery(ctx context.Context, userID, id uint) (*models.DeliveryLogEntry, error) {
	var entry models.DeliveryLogEntry
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&entry).Error; err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// WordCountChange reports the target word count before and after feedback was applied.
type WordCountChange struct {
	Old int
	New int
}

// RecordFeedback stores rating on the entry and applies adjust to the owner's target
// word count in one transaction. The rating is written with a conditional update on
// feedback_received IS NULL, so of two concurrent submissions for the same token only
// one gets past it; the other receives ErrAlreadyAnswered and changes nothing.
func (s *Store) RecordFeedback(ctx context.Context, entry *models.DeliveryLogEntry, rating models.Rating, at time.Time, adjust func(int) int) (WordCountChange, error) {
	var change WordCountChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DeliveryLogEntry{}).
			Where("id = ? AND feedback_received IS NULL", entry.ID).
			Updates(map[string]interface{}{
				"feedback_received":    string(rating),
				"feedback_received_at": at,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to record feedback: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyAnswered
		}

		for attempt := 0; attempt < maxWordCountAttempts; attempt++ {
			settings, err := settingsFor(tx, entry.UserID)
			if err != nil {
				return err
			}

			change = WordCountChange{Old: settings.TargetWordCount, New: adjust(settings.TargetWordCount)}
			if change.New == change.Old {
				return nil
			}

			res := tx.Model(&models.UserSettings{}).
				Where("id = ? AND target_word_count = ?", settings.ID, settings.TargetWordCount).
				Updates(map[string]interface{}{
					"target_word_count": change.New,
					"updated_at":        at,
				})
			if res.Error != nil {
				return fmt.Errorf("failed to update target word count: %w", res.Error)
			}
			if res.RowsAffected == 1 {
				return nil
			}
		}
		return fmt.Errorf("target word count for user %d changed concurrently %d times", entry.UserID, maxWordCountAttempts)
	})
	if err != nil {
		return WordCountChange{}, err
	}

	entry.FeedbackReceived = &rating
	entry.FeedbackReceivedAt = &at
	return change, nil
}
