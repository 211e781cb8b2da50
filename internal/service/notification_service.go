package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lesson-registration-api/internal/notify"
	"github.com/noah-isme/lesson-registration-api/pkg/jobs"
)

const notificationJobType = "registration_event"

type notificationMetrics interface {
	RecordNotification(event string, err error)
}

// NotificationConfig sizes the delivery worker pool.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService delivers registration events in the background. Notify never blocks the
// caller; events that do not fit the buffer are dropped and logged.
type NotificationService struct {
	publisher notify.Publisher
	queue     *jobs.Queue
	ids       IDGenerator
	metrics   notificationMetrics
	logger    *zap.Logger
}

// NewNotificationService constructs the service. Call Start before Notify.
func NewNotificationService(publisher notify.Publisher, cfg NotificationConfig, metrics notificationMetrics, logger *zap.Logger) *NotificationService {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{publisher: publisher, ids: UUIDGenerator{}, metrics: metrics, logger: logger}
	svc.queue = jobs.NewQueue("notifications", svc.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		OnGiveUp:   svc.giveUp,
		Logger:     logger,
	})
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes buffered events and stops the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify queues event for delivery.
func (s *NotificationService) Notify(_ context.Context, event notify.Event) {
	job := jobs.Job{ID: s.ids.NewID(), Type: notificationJobType, Payload: event}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.logger.Warn("registration event dropped",
			zap.String("event", event.Type), zap.String("registration_id", event.Registration.ID), zap.Error(err))
		s.record(event.Type, err)
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(notify.Event)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		return err
	}
	s.record(event.Type, nil)
	return nil
}

func (s *NotificationService) giveUp(job jobs.Job, err error) {
	if event, ok := job.Payload.(notify.Event); ok {
		s.record(event.Type, err)
	}
}

func (s *NotificationService) record(event string, err error) {
	if s.metrics != nil {
		s.metrics.RecordNotification(event, err)
	}
}
