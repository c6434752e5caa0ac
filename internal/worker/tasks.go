package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskDeliverDigest = "digest:deliver"
	TaskScheduleTick  = "digest:tick"
)

// deliverUniqueFor keeps a second trigger for the same user from queueing while
// the first is still pending.
const deliverUniqueFor = 10 * time.Minute

// ErrAlreadyQueued is returned when a digest for the user is already queued.
var ErrAlreadyQueued = errors.New("digest already queued for user")

// DeliverDigestPayload is the body of a digest:deliver task.
type DeliverDigestPayload struct {
	UserID uint `json:"user_id"`
}

// NewDeliverDigestTask builds the task that runs one user's digest. Retries are
// capped low because a retry after a successful send would mail the user twice.
func NewDeliverDigestTask(userID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(DeliverDigestPayload{UserID: userID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDeliverDigest,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(deliverUniqueFor),
	), nil
}

// Client enqueues digest tasks.
type Client struct {
	client *asynq.Client
}

// NewClient connects to the Redis instance at redisURL.
func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

// Close closes the Asynq client connection gracefully.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueDeliverDigest queues userID's digest and returns the task ID.
// It returns ErrAlreadyQueued when one is still pending.
func (c *Client) EnqueueDeliverDigest(ctx context.Context, userID uint) (string, error) {
	task, err := NewDeliverDigestTask(userID)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task, asynq.TaskID(uuid.NewString()))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return "", ErrAlreadyQueued
	}
	if err != nil {
		return "", fmt.Errorf("failed to enqueue digest for user %d: %w", userID, err)
	}
	return info.ID, nil
}
