// Package scheduler decides which users are due for a digest and runs them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jimdaga/newsdigest/internal/digest"
	"github.com/jimdaga/newsdigest/internal/metrics"
	"github.com/jimdaga/newsdigest/internal/models"
	"github.com/jimdaga/newsdigest/internal/store"
)

// ReasonInProgress is reported when a user's digest is already running.
const ReasonInProgress = "digest already in progress"

// Store is the persistence the evaluator reads.
type Store interface {
	ListSchedulable(ctx context.Context) ([]models.UserSettings, error)
	LastDelivery(ctx context.Context, userID uint) (*models.DeliveryLogEntry, error)
}

// Runner produces one user's digest.
type Runner interface {
	Run(ctx context.Context, userID uint) digest.Outcome
}

// IsDue reports whether a user whose last digest went out at last is due at now.
// A user that never received a digest is always due.
func IsDue(last *time.Time, interval time.Duration, now time.Time) bool {
	if last == nil {
		return true
	}
	return now.Sub(*last) >= interval
}

// TickResult summarizes one evaluation pass.
type TickResult struct {
	Checked  int
	Due      int
	Outcomes []digest.Outcome
}

// Count returns how many outcomes had status.
func (r TickResult) Count(status digest.Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Evaluator finds due users and runs their digests one at a time.
type Evaluator struct {
	store   Store
	runner  Runner
	now     func() time.Time
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	inflight map[uint]struct{}
}

// NewEvaluator creates an evaluator. userTimeout bounds a single user's run.
func NewEvaluator(s Store, runner Runner, now func() time.Time, userTimeout time.Duration, logger *slog.Logger) *Evaluator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if userTimeout <= 0 {
		userTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		store:    s,
		runner:   runner,
		now:      now,
		timeout:  userTimeout,
		logger:   logger.With("component", "scheduler"),
		inflight: make(map[uint]struct{}),
	}
}

// Tick runs the digest for every schedulable user that is due, in ascending user
// ID order. A failing user never stops the pass; only a failed user listing does.
func (e *Evaluator) Tick(ctx context.Context) (TickResult, error) {
	started := time.Now()
	defer func() {
		metrics.SchedulerTickDuration.Observe(time.Since(started).Seconds())
	}()

	candidates, err := e.store.ListSchedulable(ctx)
	if err != nil {
		return TickResult{}, fmt.Errorf("failed to list schedulable users: %w", err)
	}

	result := TickResult{Checked: len(candidates)}
	e.logger.Info("checking user schedules", "candidates", len(candidates))

	for _, settings := range candidates {
		if ctx.Err() != nil {
			e.logger.Warn("schedule check interrupted", "remaining_from_user", settings.UserID)
			break
		}

		due, err := e.isDue(ctx, settings)
		if err != nil {
			e.logger.Error("failed to evaluate schedule", "user_id", settings.UserID, "error", err)
			continue
		}
		if !due {
			continue
		}

		result.Due++
		result.Outcomes = append(result.Outcomes, e.RunUser(ctx, settings.UserID))
	}

	metrics.SchedulerDueUsers.Set(float64(result.Due))
	e.logger.Info("schedule check complete",
		"checked", result.Checked,
		"due", result.Due,
		"delivered", result.Count(digest.StatusDelivered),
		"skipped", result.Count(digest.StatusSkipped),
		"failed", result.Count(digest.StatusFailed),
		"duration", time.Since(started),
	)
	return result, nil
}

func (e *Evaluator) isDue(ctx context.Context, settings models.UserSettings) (bool, error) {
	last, err := e.store.LastDelivery(ctx, settings.UserID)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Debug("no previous delivery, digest due", "user_id", settings.UserID)
		return true, nil
	}
	if err != nil {
		return false, err
	}

	now := e.now()
	due := IsDue(&last.DeliveredAt, settings.Interval(), now)
	e.logger.Debug("schedule evaluated",
		"user_id", settings.UserID,
		"hours_since", now.Sub(last.DeliveredAt).Hours(),
		"interval_hours", settings.SchedulerIntervalHours,
		"due", due,
	)
	return due, nil
}

// RunUser runs one user's digest regardless of schedule, bounded by the per-user
// timeout. Panics are converted into failed outcomes, and a user already being
// processed is skipped.
func (e *Evaluator) RunUser(ctx context.Context, userID uint) (out digest.Outcome) {
	if !e.claim(userID) {
		e.logger.Info("digest skipped", "user_id", userID, "reason", ReasonInProgress)
		return digest.Outcome{UserID: userID, Status: digest.StatusSkipped, Reason: ReasonInProgress}
	}
	defer e.release(userID)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			e.logger.Error("digest run panicked", "user_id", userID, "error", err)
			out = digest.Outcome{UserID: userID, Status: digest.StatusFailed, Reason: err.Error(), Err: err}
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.runner.Run(runCtx, userID)
}

// Active returns the number of digests currently running.
func (e *Evaluator) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inflight)
}

func (e *Evaluator) claim(userID uint) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[userID]; busy {
		return false
	}
	e.inflight[userID] = struct{}{}
	return true
}

func (e *Evaluator) release(userID uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, userID)
}
