package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// StartScheduler registers a periodic digest:tick task so that, across any number
// of worker processes, one evaluation pass is queued per interval. It is the
// queue-backed alternative to the in-process scheduler. Returns a stop function.
func StartScheduler(redisURL string, interval time.Duration, logger *slog.Logger) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if interval < time.Minute {
		return nil, fmt.Errorf("tick interval must be at least 1m, got %s", interval)
	}

	logger = logger.With("component", "tick_scheduler")

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
			Logger:   &asynqLoggerAdapter{logger: logger},
		},
	)

	task := asynq.NewTask(
		TaskScheduleTick,
		nil, // Empty payload - handler lists schedulable users itself
		asynq.MaxRetry(1),
		asynq.Timeout(interval),
		asynq.Retention(24*time.Hour),
		asynq.Unique(interval/2), // Prevent duplicate if two schedulers fire together
	)

	spec := "@every " + interval.String()
	entryID, err := scheduler.Register(spec, task)
	if err != nil {
		return nil, fmt.Errorf("failed to register tick schedule: %w", err)
	}

	// Start scheduler (non-blocking)
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info("Tick scheduler started", "spec", spec, "entry_id", entryID)

	return func() { scheduler.Shutdown() }, nil
}
