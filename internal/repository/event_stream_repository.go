package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/cutroom-api/internal/models"
)

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// EventStreamRepository appends lifecycle events to a Redis stream that the
// notification service consumes.
type EventStreamRepository struct {
	client streamAdder
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewEventStreamRepository constructs the publisher. maxLen <= 0 disables trimming.
func NewEventStreamRepository(client streamAdder, stream string, maxLen int64, logger *zap.Logger) *EventStreamRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stream == "" {
		stream = "delivery_lifecycle"
	}
	return &EventStreamRepository{client: client, stream: stream, maxLen: maxLen, logger: logger}
}

// Publish appends the event and returns once Redis acknowledged it.
func (r *EventStreamRepository) Publish(ctx context.Context, event models.LifecycleEvent) error {
	if r.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.ID, err)
	}
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"id":          event.ID,
			"type":        string(event.Type),
			"delivery_id": event.DeliveryID,
			"payload":     string(payload),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	entryID, err := r.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("redis xadd %s: %w", r.stream, err)
	}
	r.logger.Debug("lifecycle event published",
		zap.String("stream", r.stream),
		zap.String("entry_id", entryID),
		zap.String("type", string(event.Type)),
	)
	return nil
}
