package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher appends events to the digest stream
type Publisher struct {
	rdb    *redis.Client
	stream string
}

// NewPublisher creates a Publisher on an existing Redis client.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb, stream: StreamDigestEvents}
}

// Publish appends ev to the stream and returns the stream entry ID.
// A missing event ID is filled with a random UUID.
func (p *Publisher) Publish(ctx context.Context, ev Event) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	result := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: 10000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"type":           ev.Type,
			"payload":        string(payload),
			"published_at":   ev.OccurredAt.Unix(),
			"schema_version": SchemaVersionV1,
		},
	})

	if result.Err() != nil {
		return "", fmt.Errorf("failed to publish to stream: %w", result.Err())
	}

	return result.Val(), nil
}
