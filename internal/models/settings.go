package models

import (
	"fmt"
	"slices"
	"time"

	"gorm.io/datatypes"
)

// Settings bounds and defaults
const (
	MinItemsPerCategory     = 1
	MaxItemsPerCategory     = 10
	DefaultItemsPerCategory = 5

	MinTargetWordCount     = 200
	MaxTargetWordCount     = 1000
	DefaultTargetWordCount = 500
	WordCountStep          = 50

	DefaultIntervalHours = 12

	ThemeLight = "light"
	ThemeDark  = "dark"
)

// AllowedIntervalHours lists the schedule intervals a user can pick.
var AllowedIntervalHours = []int{6, 12, 24, 48}

// DefaultCategories is assigned to settings created lazily for a new user.
var DefaultCategories = []string{"top_stories", "technology", "business"}

// UserSettings holds one user's digest preferences. Exactly one row exists per user.
type UserSettings struct {
	ID                     uint                        `gorm:"primarykey"`
	UserID                 uint                        `gorm:"not null;uniqueIndex"`
	Categories             datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Sources                datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	NotificationEmail      string                      `gorm:"not null;default:''"`
	EmailEnabled           bool                        `gorm:"not null;default:false"`
	SchedulerEnabled       bool                        `gorm:"not null;default:false;index"`
	SchedulerIntervalHours int                         `gorm:"not null;default:12"`
	MaxItemsPerCategory    int                         `gorm:"not null;default:5"`
	TargetWordCount        int                         `gorm:"not null;default:500"`
	Theme                  string                      `gorm:"not null;default:'light'"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// TableName pins the table name used by migrations.
func (UserSettings) TableName() string {
	return "user_settings"
}

// DefaultSettings returns the settings a user gets before editing anything.
func DefaultSettings(userID uint) UserSettings {
	return UserSettings{
		UserID:                 userID,
		Categories:             slices.Clone(DefaultCategories),
		Sources:                []string{},
		SchedulerIntervalHours: DefaultIntervalHours,
		MaxItemsPerCategory:    DefaultItemsPerCategory,
		TargetWordCount:        DefaultTargetWordCount,
		Theme:                  ThemeLight,
	}
}

// Interval returns the schedule interval as a duration.
func (s UserSettings) Interval() time.Duration {
	return time.Duration(s.SchedulerIntervalHours) * time.Hour
}

// Validate checks every bounded field.
func (s UserSettings) Validate() error {
	if !slices.Contains(AllowedIntervalHours, s.SchedulerIntervalHours) {
		return fmt.Errorf("invalid interval %d: must be one of %v hours", s.SchedulerIntervalHours, AllowedIntervalHours)
	}
	if s.MaxItemsPerCategory < MinItemsPerCategory || s.MaxItemsPerCategory > MaxItemsPerCategory {
		return fmt.Errorf("max items must be between %d and %d", MinItemsPerCategory, MaxItemsPerCategory)
	}
	if s.TargetWordCount < MinTargetWordCount || s.TargetWordCount > MaxTargetWordCount {
		return fmt.Errorf("target word count must be between %d and %d", MinTargetWordCount, MaxTargetWordCount)
	}
	if s.Theme != ThemeLight && s.Theme != ThemeDark {
		return fmt.Errorf("invalid theme %q", s.Theme)
	}
	return nil
}

// ClampWordCount keeps n inside the allowed target word count range.
func ClampWordCount(n int) int {
	return min(MaxTargetWordCount, max(MinTargetWordCount, n))
}
