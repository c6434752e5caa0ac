package database

import (
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/jimdaga/newsdigest/internal/models"
)

// DevFeedbackToken is the feedback token of the seeded delivery, so the feedback
// page can be exercised locally at /api/feedback/dev-feedback-token?rating=too_long.
const DevFeedbackToken = "dev-feedback-token"

const devAdminEmail = "dev@newsdigest.local"

// SeedDevData populates the database with development test data.
// Idempotent: skips if data already exists.
func SeedDevData(db *gorm.DB, logger *slog.Logger) error {
	// Check if seed data already exists
	var existing models.User
	err := db.Where("email = ?", devAdminEmail).First(&existing).Error
	if err == nil {
		logger.Info("Seed data already exists, skipping")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	return db.Transaction(func(tx *gorm.DB) error {
		admin := models.User{Email: devAdminEmail, IsActive: true, IsAdmin: true, IsPremium: true}
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		adminSettings := models.DefaultSettings(admin.ID)
		adminSettings.NotificationEmail = devAdminEmail
		adminSettings.EmailEnabled = true
		adminSettings.SchedulerEnabled = true
		adminSettings.Sources = []string{"bbc", "hacker_news"}
		if err := tx.Create(&adminSettings).Error; err != nil {
			return err
		}

		reader := models.User{Email: "reader@newsdigest.local", IsActive: true}
		if err := tx.Create(&reader).Error; err != nil {
			return err
		}
		readerSettings := models.DefaultSettings(reader.ID)
		readerSettings.NotificationEmail = reader.Email
		readerSettings.EmailEnabled = true
		readerSettings.SchedulerEnabled = true
		readerSettings.SchedulerIntervalHours = 24
		readerSettings.Categories = []string{"world", "science"}
		if err := tx.Create(&readerSettings).Error; err != nil {
			return err
		}

		// A recent delivery with an open feedback window
		delivery := models.DeliveryLogEntry{
			UserID:            admin.ID,
			DeliveredAt:       now.Add(-2 * time.Hour),
			CategoriesUsed:    adminSettings.Categories,
			SourcesUsed:       adminSettings.Sources,
			ItemsPerCategory:  adminSettings.MaxItemsPerCategory,
			WordCountTarget:   adminSettings.TargetWordCount,
			ActualWordCount:   487,
			EmailSentTo:       devAdminEmail,
			PDFIncluded:       true,
			AudioIncluded:     true,
			FeedbackToken:     DevFeedbackToken,
			FeedbackExpiresAt: now.Add(-2*time.Hour + 7*24*time.Hour),
		}
		if err := tx.Create(&delivery).Error; err != nil {
			return err
		}

		logger.Info("Seed data created",
			"admin_id", admin.ID,
			"reader_id", reader.ID,
			"delivery_id", delivery.ID,
		)
		return nil
	})
}
