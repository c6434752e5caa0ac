package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Consumer reads the digest stream through a consumer group.
type Consumer struct {
	rdb          *redis.Client
	stream       string
	groupName    string
	consumerName string
	logger       *slog.Logger
}

// NewConsumer joins (creating if needed) the consumer group on the digest stream.
// The client's read timeout must exceed the 5s block used by Consume.
func NewConsumer(ctx context.Context, rdb *redis.Client, group, consumerName string, logger *slog.Logger) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Start ID "0" reads the stream from the beginning for a new group
	err := rdb.XGroupCreateMkStream(ctx, StreamDigestEvents, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Consumer{
		rdb:          rdb,
		stream:       StreamDigestEvents,
		groupName:    group,
		consumerName: consumerName,
		logger:       logger.With("component", "events"),
	}, nil
}

// Consume blocks, passing each event to handler until ctx is cancelled. Events
// whose handler fails stay pending and are not acknowledged.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, Event) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.groupName,
			Consumer: c.consumerName,
			Streams:  []string{c.stream, ">"},
			Count:    10,
			Block:    5000,
		}).Result()

		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Blocking reads time out on idle streams
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			c.logger.Error("failed to read from stream", "error", err)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				c.handle(ctx, message, handler)
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, message redis.XMessage, handler func(context.Context, Event) error) {
	payload, ok := message.Values["payload"].(string)
	if !ok {
		c.logger.Error("invalid message payload", "message_id", message.ID)
		return
	}

	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		c.logger.Error("failed to unmarshal event", "error", err, "message_id", message.ID)
		return
	}

	if err := handler(ctx, ev); err != nil {
		c.logger.Error("event handler failed", "error", err, "event_id", ev.ID, "type", ev.Type)
		return
	}

	if err := c.rdb.XAck(ctx, c.stream, c.groupName, message.ID).Err(); err != nil {
		c.logger.Error("failed to ack message", "error", err, "message_id", message.ID)
	}
}
