package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account with its entitlement flags
type User struct {
	gorm.Model
	Email       string `gorm:"uniqueIndex:idx_users_email_not_deleted,where:deleted_at IS NULL;not null"`
	IsActive    bool   `gorm:"not null;default:true"`
	IsAdmin     bool   `gorm:"not null;default:false"`
	IsPremium   bool   `gorm:"not null;default:false"`
	LastLoginAt *time.Time

	// Associations
	Settings   *UserSettings      `gorm:"constraint:OnDelete:CASCADE;"`
	Deliveries []DeliveryLogEntry `gorm:"constraint:OnDelete:RESTRICT;"`
}
