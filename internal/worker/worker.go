package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jimdaga/newsdigest/internal/digest"
	"github.com/jimdaga/newsdigest/internal/scheduler"
)

const concurrency = 5

// Runner is the part of the schedule evaluator the task handlers drive.
type Runner interface {
	RunUser(ctx context.Context, userID uint) digest.Outcome
	Tick(ctx context.Context) (scheduler.TickResult, error)
}

// Run starts the Asynq worker server and blocks until shutdown signal.
// Use this for standalone worker mode.
func Run(redisURL string, runner Runner, logger *slog.Logger) error {
	srv, mux, err := newServer(redisURL, runner, logger)
	if err != nil {
		return err
	}
	return srv.Run(mux)
}

// Start starts the Asynq worker in non-blocking mode and returns a stop function.
// Use this for embedded mode so the caller can coordinate shutdown.
func Start(redisURL string, runner Runner, logger *slog.Logger) (stop func(), err error) {
	srv, mux, err := newServer(redisURL, runner, logger)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(redisURL string, runner Runner, logger *slog.Logger) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	logger = logger.With("component", "worker")

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     concurrency,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          &asynqLoggerAdapter{logger: logger},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskDeliverDigest, HandleDeliverDigest(logger, runner))
	mux.HandleFunc(TaskScheduleTick, HandleScheduleTick(logger, runner))

	logger.Info("Worker starting", "concurrency", concurrency)
	return srv, mux, nil
}

// HandleDeliverDigest runs one user's digest. Failures before the email went out
// are retried; a failure recording an already sent digest is not.
func HandleDeliverDigest(logger *slog.Logger, runner Runner) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload DeliverDigestPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			// Invalid payload - don't retry
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}
		if payload.UserID == 0 {
			return fmt.Errorf("payload has no user_id: %w", asynq.SkipRetry)
		}

		logger.Info("Processing digest:deliver task", "user_id", payload.UserID)

		out := runner.RunUser(ctx, payload.UserID)
		switch out.Status {
		case digest.StatusDelivered:
			return nil
		case digest.StatusSkipped:
			logger.Info("Digest skipped", "user_id", payload.UserID, "reason", out.Reason)
			return nil
		}

		if out.Step == digest.StepRecord {
			return fmt.Errorf("digest sent but not recorded: %v: %w", out.Err, asynq.SkipRetry)
		}
		return fmt.Errorf("digest failed at %s: %w", out.Step, out.Err)
	}
}

// HandleScheduleTick runs one evaluation pass over every schedulable user.
func HandleScheduleTick(logger *slog.Logger, runner Runner) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, _ *asynq.Task) error {
		result, err := runner.Tick(ctx)
		if err != nil {
			return err
		}
		logger.Info("Scheduled tick completed",
			"checked", result.Checked,
			"due", result.Due,
			"failed", result.Count(digest.StatusFailed),
		)
		return nil
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error(
			"Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)

		// Check if this is the final failure (task will move to dead letter queue)
		if retried >= maxRetry {
			logger.Error(
				"Task moved to dead letter queue (all retries exhausted)",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
