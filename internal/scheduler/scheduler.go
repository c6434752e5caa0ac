package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jimdaga/newsdigest/internal/digest"
)

// Modes a scheduler reports in its status.
const (
	ModeInProcess = "inprocess"
	ModeQueue     = "queue"
)

// Status is a point-in-time view of the scheduler.
type Status struct {
	Mode           string     `json:"mode"`
	Running        bool       `json:"running"`
	NextCheckTime  *time.Time `json:"next_check_time"`
	ActiveJobCount int        `json:"active_job_count"`
}

// Scheduler drives an Evaluator on a fixed interval. It is owned by the process
// composition root; there is no package-level instance.
type Scheduler struct {
	eval     *Evaluator
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	// tickMu serializes evaluation passes so a manual trigger-all cannot
	// overlap a timer tick and deliver twice.
	tickMu sync.Mutex

	mu        sync.Mutex
	running   bool
	queued    bool
	nextCheck time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a scheduler checking every interval.
func New(eval *Evaluator, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		eval:     eval,
		interval: interval,
		now:      eval.now,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start launches the check loop. The first check runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.nextCheck = s.now()
	s.mu.Unlock()

	s.logger.Info("starting scheduler", "check_interval", s.interval)
	go s.run(ctx)
	return nil
}

// Stop ends the loop and waits for an in-progress check to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	s.logger.Info("stopping scheduler")
	close(stopCh)
	<-doneCh

	s.mu.Lock()
	s.running = false
	s.nextCheck = time.Time{}
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning reports whether the check loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetQueueDriven records whether ticks come from the task queue's periodic
// schedule instead of this scheduler's own loop.
func (s *Scheduler) SetQueueDriven(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = on
}

// Status returns whether the loop runs, when it checks next and how many
// digests are in flight.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queued {
		return Status{Mode: ModeQueue, Running: true, ActiveJobCount: s.eval.Active()}
	}
	st := Status{Mode: ModeInProcess, Running: s.running, ActiveJobCount: s.eval.Active()}
	if s.running && !s.nextCheck.IsZero() {
		next := s.nextCheck
		st.NextCheckTime = &next
	}
	return st
}

// TriggerUser runs one user's digest now, ignoring the schedule.
func (s *Scheduler) TriggerUser(ctx context.Context, userID uint) digest.Outcome {
	s.logger.Info("manually triggering digest", "user_id", userID)
	return s.eval.RunUser(ctx, userID)
}

// TriggerAllDue runs one evaluation pass now.
func (s *Scheduler) TriggerAllDue(ctx context.Context) (TickResult, error) {
	s.logger.Info("manually triggering schedule check")
	return s.tick(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.check(ctx)

	for {
		select {
		case <-ticker.C:
			s.check(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) check(ctx context.Context) {
	// Stop cancels a check in progress between users.
	checkCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-checkCtx.Done():
		}
	}()

	if _, err := s.tick(checkCtx); err != nil {
		s.logger.Error("schedule check failed", "error", err)
	}

	s.mu.Lock()
	s.nextCheck = s.now().Add(s.interval)
	next := s.nextCheck
	s.mu.Unlock()
	s.logger.Info("next schedule check", "at", next)
}

func (s *Scheduler) tick(ctx context.Context) (TickResult, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	return s.eval.Tick(ctx)
}
