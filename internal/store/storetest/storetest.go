// Package storetest provides an in-memory SQLite store for tests.
package storetest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jimdaga/newsdigest/internal/database"
	"github.com/jimdaga/newsdigest/internal/models"
	"github.com/jimdaga/newsdigest/internal/store"
	"github.com/stretchr/testify/require"
)

// New returns a Store backed by a fresh in-memory database private to t.
func New(t *testing.T) *store.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return store.New(db)
}

// UserOpts describes a user created by CreateUser.
type UserOpts struct {
	Email           string
	Premium         bool
	Scheduled       bool
	IntervalHours   int
	TargetWordCount int
	Categories      []string
	Sources         []string
}

// CreateUser inserts a user with settings shaped by opts. Scheduled users get a
// notification address equal to their login email.
func CreateUser(t *testing.T, s *store.Store, opts UserOpts) *models.User {
	t.Helper()
	ctx := context.Background()

	user, err := s.CreateUser(ctx, opts.Email)
	require.NoError(t, err)
	require.NoError(t, s.SetPremium(ctx, user.ID, opts.Premium))
	user.IsPremium = opts.Premium

	settings, err := s.UpdateSettings(ctx, user.ID, func(st *models.UserSettings) error {
		if opts.Scheduled {
			st.SchedulerEnabled = true
			st.EmailEnabled = true
			st.NotificationEmail = opts.Email
		}
		if opts.IntervalHours != 0 {
			st.SchedulerIntervalHours = opts.IntervalHours
		}
		if opts.TargetWordCount != 0 {
			st.TargetWordCount = opts.TargetWordCount
		}
		if opts.Categories != nil {
			st.Categories = opts.Categories
		}
		if opts.Sources != nil {
			st.Sources = opts.Sources
		}
		return nil
	})
	require.NoError(t, err)
	user.Settings = settings
	return user
}

// AddDelivery appends a ledger entry for user delivered at the given time.
func AddDelivery(t *testing.T, s *store.Store, userID uint, token string, deliveredAt time.Time) *models.DeliveryLogEntry {
	t.Helper()

	entry := &models.DeliveryLogEntry{
		UserID:            userID,
		DeliveredAt:       deliveredAt,
		CategoriesUsed:    []string{"technology"},
		SourcesUsed:       []string{},
		ItemsPerCategory:  5,
		WordCountTarget:   500,
		ActualWordCount:   480,
		EmailSentTo:       "reader@example.com",
		PDFIncluded:       true,
		FeedbackToken:     token,
		FeedbackExpiresAt: deliveredAt.Add(7 * 24 * time.Hour),
	}
	require.NoError(t, s.CreateDeliveryLog(context.Background(), entry))
	return entry
}
