package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jimdaga/newsdigest/internal/models"
	"gorm.io/gorm"
)

// CreateUser registers a user together with default settings. The very first
// user of an installation is promoted to admin and premium.
func (s *Store) CreateUser(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count users: %w", err)
		}

		user = models.User{
			Email:     email,
			IsActive:  true,
			IsAdmin:   count == 0,
			IsPremium: count == 0,
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		settings := models.DefaultSettings(user.ID)
		if err := tx.Create(&settings).Error; err != nil {
			return fmt.Errorf("failed to create default settings: %w", err)
		}
		user.Settings = &settings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser loads a user by ID.
func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// ListUsers returns every user ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// SetPremium grants or revokes the premium entitlement.
func (s *Store) SetPremium(ctx context.Context, id uint, premium bool) error {
	return s.setUserFlag(ctx, id, "is_premium", premium)
}

// SetActive enables or disables an account. Inactive users are never scheduled.
func (s *Store) SetActive(ctx context.Context, id uint, active bool) error {
	return s.setUserFlag(ctx, id, "is_active", active)
}

func (s *Store) setUserFlag(ctx context.Context, id uint, column string, value bool) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("failed to update %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
