package api

import (
	"time"

	"github.com/jimdaga/newsdigest/internal/models"
)

type userResponse struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"is_active"`
	IsAdmin     bool       `json:"is_admin"`
	IsPremium   bool       `json:"is_premium"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		IsActive:    u.IsActive,
		IsAdmin:     u.IsAdmin,
		IsPremium:   u.IsPremium,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

type settingsResponse struct {
	UserID                 uint      `json:"user_id"`
	Categories             []string  `json:"categories"`
	Sources                []string  `json:"sources"`
	NotificationEmail      string    `json:"notification_email"`
	EmailEnabled           bool      `json:"email_enabled"`
	SchedulerEnabled       bool      `json:"scheduler_enabled"`
	SchedulerIntervalHours int       `json:"scheduler_interval_hours"`
	MaxItemsPerCategory    int       `json:"max_items_per_category"`
	TargetWordCount        int       `json:"target_word_count"`
	Theme                  string    `json:"theme"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func newSettingsResponse(s *models.UserSettings) settingsResponse {
	return settingsResponse{
		UserID:                 s.UserID,
		Categories:             nonNil(s.Categories),
		Sources:                nonNil(s.Sources),
		NotificationEmail:      s.NotificationEmail,
		EmailEnabled:           s.EmailEnabled,
		SchedulerEnabled:       s.SchedulerEnabled,
		SchedulerIntervalHours: s.SchedulerIntervalHours,
		MaxItemsPerCategory:    s.MaxItemsPerCategory,
		TargetWordCount:        s.TargetWordCount,
		Theme:                  s.Theme,
		UpdatedAt:              s.UpdatedAt,
	}
}

// settingsUpdate is a partial update; nil fields are left unchanged.
type settingsUpdate struct {
	Categories             *[]string `json:"categories" binding:"omitempty,dive,required"`
	Sources                *[]string `json:"sources" binding:"omitempty,dive,required"`
	NotificationEmail      *string   `json:"notification_email" binding:"omitempty,email"`
	EmailEnabled           *bool     `json:"email_enabled"`
	SchedulerEnabled       *bool     `json:"scheduler_enabled"`
	SchedulerIntervalHours *int      `json:"scheduler_interval_hours" binding:"omitempty,oneof=6 12 24 48"`
	MaxItemsPerCategory    *int      `json:"max_items_per_category" binding:"omitempty,min=1,max=10"`
	TargetWordCount        *int      `json:"target_word_count" binding:"omitempty,min=200,max=1000"`
	Theme                  *string   `json:"theme" binding:"omitempty,oneof=light dark"`
}

func (u settingsUpdate) apply(s *models.UserSettings) {
	if u.Categories != nil {
		s.Categories = dedupe(*u.Categories)
	}
	if u.Sources != nil {
		s.Sources = dedupe(*u.Sources)
	}
	if u.NotificationEmail != nil {
		s.NotificationEmail = *u.NotificationEmail
	}
	if u.EmailEnabled != nil {
		s.EmailEnabled = *u.EmailEnabled
	}
	if u.SchedulerEnabled != nil {
		s.SchedulerEnabled = *u.SchedulerEnabled
	}
	if u.SchedulerIntervalHours != nil {
		s.SchedulerIntervalHours = *u.SchedulerIntervalHours
	}
	if u.MaxItemsPerCategory != nil {
		s.MaxItemsPerCategory = *u.MaxItemsPerCategory
	}
	if u.TargetWordCount != nil {
		s.TargetWordCount = *u.TargetWordCount
	}
	if u.Theme != nil {
		s.Theme = *u.Theme
	}
}

type deliveryResponse struct {
	ID                 uint           `json:"id"`
	DeliveredAt        time.Time      `json:"delivered_at"`
	CategoriesUsed     []string       `json:"categories_used"`
	SourcesUsed        []string       `json:"sources_used"`
	ItemsPerCategory   int            `json:"items_per_category"`
	WordCountTarget    int            `json:"word_count_target"`
	ActualWordCount    int            `json:"actual_word_count"`
	EmailSentTo        string         `json:"email_sent_to"`
	PDFIncluded        bool           `json:"pdf_included"`
	AudioIncluded      bool           `json:"audio_included"`
	FeedbackExpiresAt  time.Time      `json:"feedback_expires_at"`
	FeedbackReceived   *models.Rating `json:"feedback_received"`
	FeedbackReceivedAt *time.Time     `json:"feedback_received_at"`
}

// newDeliveryResponse omits the feedback token, which is a bearer credential.
func newDeliveryResponse(d models.DeliveryLogEntry) deliveryResponse {
	return deliveryResponse{
		ID:                 d.ID,
		DeliveredAt:        d.DeliveredAt,
		CategoriesUsed:     nonNil(d.CategoriesUsed),
		SourcesUsed:        nonNil(d.SourcesUsed),
		ItemsPerCategory:   d.ItemsPerCategory,
		WordCountTarget:    d.WordCountTarget,
		ActualWordCount:    d.ActualWordCount,
		EmailSentTo:        d.EmailSentTo,
		PDFIncluded:        d.PDFIncluded,
		AudioIncluded:      d.AudioIncluded,
		FeedbackExpiresAt:  d.FeedbackExpiresAt,
		FeedbackReceived:   d.FeedbackReceived,
		FeedbackReceivedAt: d.FeedbackReceivedAt,
	}
}

type deliveryPage struct {
	Items  []deliveryResponse `json:"items"`
	Total  int64              `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type outcomeResponse struct {
	UserID     uint   `json:"user_id"`
	Status     string `json:"status"`
	Step       string `json:"step,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
	DeliveryID uint   `json:"delivery_id,omitempty"`
}

type tickResponse struct {
	Checked   int               `json:"checked"`
	Due       int               `json:"due"`
	Delivered int               `json:"delivered"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Outcomes  []outcomeResponse `json:"outcomes"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
