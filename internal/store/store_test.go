package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jimdaga/newsdigest/internal/models"
	"github.com/jimdaga/newsdigest/internal/store"
	"github.com/jimdaga/newsdigest/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestCreateUserPromotesFirstUser(t *testing.T) {
	r := require.New(t)
	s := storetest.New(t)
	ctx := context.Background()

	first, err := s.CreateUser(ctx, "First@Example.com")
	r.NoError(err)
	r.Equal("first@example.com", first.Email)
	r.True(first.IsAdmin)
	r.True(first.IsPremium)

	second, err := s.CreateUser(ctx, "second@example.com")
	r.NoError(err)
	r.False(second.IsAdmin)
	r.False(second.IsPremium)

	settings, err := s.GetSettings(ctx, second.ID)
	r.NoError(err)
	r.Equal([]string{"top_stories", "technology", "business"}, []string(settings.Categories))
	r.Equal(5, settings.MaxItemsPerCategory)
	r.Equal(500, settings.TargetWordCount)
	r.Equal(12, settings.SchedulerIntervalHours)
	r.False(settings.SchedulerEnabled)
}

func TestGetSettingsCreatesDefaultsLazily(t *testing.T) {
	r := require.New(t)
	s := storetest.New(t)
	ctx := context.Background()

	user := models.User{Email: "bare@example.com", IsActive: true}
	r.NoError(s.DB().Create(&user).Error)

	settings, err := s.GetSettings(ctx, user.ID)
	r.NoError(err)
	r.Equal(user.ID, settings.UserID)
	r.Equal(models.DefaultTargetWordCount, settings.TargetWordCount)

	again, err := s.GetSettings(ctx, user.ID)
	r.NoError(err)
	r.Equal(settings.ID, again.ID, "settings must be created exactly once")

	_, err = s.GetSettings(ctx, 9999)
	r.ErrorIs(err, store.ErrNotFound)
}

func TestUpdateSettingsValidates(t *testing.T) {
	r := require.New(t)
	s := storetest.New(t)
	ctx := context.Background()
	user := storetest.CreateUser(t, s, storetest.UserOpts{Email: "a@example.com"})

	_, err := s.UpdateSettings(ctx, user.ID, func(st *models.UserSettings) error {
		st.SchedulerIntervalHours = 7
		return nil
	})
	var verr *store.ValidationError
	r.True(errors.As(err, &verr))

	_, err = s.UpdateSettings(ctx, user.ID, func(st *models.UserSettings) error {
		st.MaxItemsPerCategory = 11
		return nil
	})
	r.True(errors.As(err, &verr))

	updated, err := s.UpdateSettings(ctx, user.ID, func(st *models.UserSettings) error {
		st.SchedulerIntervalHours = 48
		st.Theme = models.ThemeDark
		return nil
	})
	r.NoError(err)
	r.Equal(48, updated.SchedulerIntervalHours)
	r.Equal(models.ThemeDark, updated.Theme)
}

func TestListSchedulable(t *testing.T) {
	r := require.New(t)
	s := storetest.New(t)
	ctx := context.Background()

	a := storetest.CreateUser(t, s, storetest.UserOpts{Email: "a@example.com", Scheduled: true})
	storetest.CreateUser(t, s, storetest.UserOpts{Email: "b@example.com"})
	c := storetest.CreateUser(t, s, storetest.UserOpts{Email: "c@example.com", Scheduled: true})
	d := storetest.CreateUser(t, s, storetest.UserOpts{Email: "d@example.com", Scheduled: true})
	r.NoError(s.SetActive(ctx, d.ID, false))

	// enabled but without an address
	e := storetest.CreateUser(t, s, storetest.UserOpts{Email: "e@example.com", Scheduled: true})
	_, err := s.UpdateSettings(ctx, e.ID, func(st *models.UserSettings) error {
		st.NotificationEmail = ""
		return nil
	})
	r.NoError(err)

	due, err := s.ListSchedulable(ctx)
	r.NoError(err)
	r.Len(due, 2)
	r.Equal(a.ID, due[0].UserID)
	r.Equal(c.ID, due[1].UserID)
}

func TestLastDeliveryAndHistory(t *testing.T) {
	r := require.New(t)
	s := storetest.New(t)
	ctx := context.Background()
	user := storetest.CreateUser(t, s, storetest.UserOpts{Email: "a@example.com"})
	other := storetest.CreateUser(t, s, storetest.UserOpts{Email: "b@example.com"})

	_, err := s.LastDelivery(ctx, user.ID)
	r.ErrorIs(err, store.ErrNotFound)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	storetest.AddDelivery(t, s, user.ID, "tok-1", base)
	latest := storetest.AddDelivery(t, s, user.ID, "tok-2", base.Add(12*time.Hour))
	foreign := storetest.AddDelivery(t, s, other.ID, "tok-3", base.Add(24*time.Hour))

	last, err := s.LastDelivery(ctx, user.ID)
	r.NoError(err)
	r.Equal(latest.ID, last.ID)
	r.True(last.DeliveredAt.Equal(base.Add(12 * time.Hour)))

	page, total, err := s.ListDeliveries(ctx, user.ID, 1, 0)
	r.NoError(err)
	r.EqualValues(2, total)
	r.Len(page, 1)
	r.Equal("tok-2", page[0].FeedbackToken)

	_, err = s.GetDelivery(ctx, user.ID, foreign.ID)
	r.ErrorIs(err, store.ErrNotFound)
}

func TestFeedbackTokenIsUnique(t *testing.T) {
	r := require.New(t)
	s := storetest.New(t)
	user := storetest.CreateUser(t, s, storetest.UserOpts{Email: "a@example.com"})

	now := time.Now().UTC()
	storetest.AddDelivery(t, s, user.ID, "same", now)

	dup := &models.DeliveryLogEntry{
		UserID:            user.ID,
		DeliveredAt:       now,
		EmailSentTo:       "a@example.com",
		FeedbackToken:     "same",
		FeedbackExpiresAt: now.Add(time.Hour),
	}
	r.Error(s.CreateDeliveryLog(context.Background(), dup))
}

func TestRecordFeedbackOnlyOnce(t *testing.T) {
	r := require.New(t)
	s := storetest.New(t)
	ctx := context.Background()
	user := storetest.CreateUser(t, s, storetest.UserOpts{Email: "a@example.com"})
	now := time.Now().UTC()
	entry := storetest.AddDelivery(t, s, user.ID, "tok", now)

	minus50 := func(n int) int { return models.ClampWordCount(n - 50) }

	change, err := s.RecordFeedback(ctx, entry, models.RatingTooLong, now, minus50)
	r.NoError(err)
	r.Equal(store.WordCountChange{Old: 500, New: 450}, change)

	stale, err := s.FindDeliveryByToken(ctx, "tok")
	r.NoError(err)
	r.NotNil(stale.FeedbackReceived)
	r.Equal(models.RatingTooLong, *stale.FeedbackReceived)

	// a second writer holding a stale copy loses
	stale.FeedbackReceived = nil
	_, err = s.RecordFeedback(ctx, stale, models.RatingTooShort, now, minus50)
	r.ErrorIs(err, store.ErrAlreadyAnswered)

	settings, err := s.GetSettings(ctx, user.ID)
	r.NoError(err)
	r.Equal(450, settings.TargetWordCount)
}
