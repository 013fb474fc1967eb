package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/cutroom-api/internal/models"
	"github.com/noah-isme/cutroom-api/pkg/jobs"
)

const lifecycleJobType = "lifecycle_event"

// EventDispatcher hands lifecycle events to a publisher off the request
// path. Publishing is best-effort: failures are retried by the queue and
// never affect the state change that caused the event.
type EventDispatcher struct {
	publisher EventPublisher
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger
}

// EventDispatcherConfig tunes the worker pool.
type EventDispatcherConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// NewEventDispatcher constructs a dispatcher. Call Start before emitting.
func NewEventDispatcher(publisher EventPublisher, metrics *MetricsService, logger *zap.Logger, cfg EventDispatcherConfig) *EventDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &EventDispatcher{publisher: publisher, metrics: metrics, logger: logger}
	d.queue = jobs.NewQueue("lifecycle-events", d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnGiveUp: func(job jobs.Job, err error) {
			metrics.IncEventPublishFailure()
		},
	})
	return d
}

// Start launches the workers.
func (d *EventDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains nothing and waits for in-flight publishes to finish.
func (d *EventDispatcher) Stop() {
	d.queue.Stop()
}

// Emit queues the event. When the queue is not running or full the event is
// published inline so it is not silently dropped.
func (d *EventDispatcher) Emit(ctx context.Context, event models.LifecycleEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	err := d.queue.TryEnqueue(jobs.Job{ID: event.ID, Type: lifecycleJobType, Payload: event})
	if err == nil {
		return
	}
	d.logger.Warn("event queue unavailable, publishing inline", zap.String("event_id", event.ID), zap.Error(err))
	if err := d.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		d.metrics.IncEventPublishFailure()
		d.logger.Error("publish lifecycle event", zap.String("event_id", event.ID), zap.Error(err))
	}
}

func (d *EventDispatcher) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.LifecycleEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	return d.publisher.Publish(ctx, event)
}

// LogEventPublisher writes events to the log. Used when no broker is configured.
type LogEventPublisher struct {
	Logger *zap.Logger
}

// Publish implements EventPublisher.
func (p LogEventPublisher) Publish(_ context.Context, event models.LifecycleEvent) error {
	if p.Logger == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("project_id", event.Scope.ProjectID),
		zap.String("delivery_id", event.DeliveryID),
		zap.Bool("batch", event.Batch),
	}
	if event.Scope.BatchVideoID != nil {
		fields = append(fields, zap.String("batch_video_id", *event.Scope.BatchVideoID))
	}
	if event.PendingCommentCount != nil {
		fields = append(fields, zap.Int("pending_comments", *event.PendingCommentCount))
	}
	p.Logger.Info("lifecycle event", fields...)
	return nil
}
