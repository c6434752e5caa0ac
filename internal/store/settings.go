package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jimdaga/newsdigest/internal/models"
	"gorm.io/gorm"
)

// GetSettings returns the user's settings, creating the defaults on first access.
// It returns ErrNotFound when the user itself does not exist.
func (s *Store) GetSettings(ctx context.Context, userID uint) (*models.UserSettings, error) {
	var settings *models.UserSettings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		settings, err = settingsFor(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateSettings applies fn to the user's settings, validates the result and saves it.
func (s *Store) UpdateSettings(ctx context.Context, userID uint, fn func(*models.UserSettings) error) (*models.UserSettings, error) {
	var settings *models.UserSettings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		settings, err = settingsFor(tx, userID)
		if err != nil {
			return err
		}
		if err := fn(settings); err != nil {
			return err
		}
		settings.UserID = userID
		if err := settings.Validate(); err != nil {
			return &ValidationError{Err: err}
		}
		if err := tx.Save(settings).Error; err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// ListSchedulable returns the settings of active users that have scheduling
// enabled and a notification address, ordered by user ID.
func (s *Store) ListSchedulable(ctx context.Context) ([]models.UserSettings, error) {
	var settings []models.UserSettings
	err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = user_settings.user_id AND users.deleted_at IS NULL").
		Where("user_settings.scheduler_enabled = ?", true).
		Where("user_settings.notification_email <> ''").
		Where("users.is_active = ?", true).
		Order("user_settings.user_id ASC").
		Find(&settings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list schedulable users: %w", err)
	}
	return settings, nil
}

// ValidationError wraps a settings value that failed bounds checks.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// settingsFor loads or lazily creates settings inside tx.
func settingsFor(tx *gorm.DB, userID uint) (*models.UserSettings, error) {
	var settings models.UserSettings
	err := tx.Where("user_id = ?", userID).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if count == 0 {
		return nil, ErrNotFound
	}

	settings = models.DefaultSettings(userID)
	if err := tx.Create(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to create default settings: %w", err)
	}
	return &settings, nil
}
