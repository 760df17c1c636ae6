package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sekurigo/privacy-api/internal/models"
	"github.com/sekurigo/privacy-api/pkg/clock"
	"github.com/sekurigo/privacy-api/pkg/config"
	appErrors "github.com/sekurigo/privacy-api/pkg/errors"
	"github.com/sekurigo/privacy-api/pkg/jobs"
)

type auditStore interface {
	Append(ctx context.Context, event *models.AuditEvent) error
	ListBySubject(ctx context.Context, subjectID string) ([]models.AuditEvent, error)
}

// AuditService delivers compliance events asynchronously. Emit never fails the
// calling operation; delivery is at-least-once and the unique event id keeps
// redeliveries idempotent at the sink.
type AuditService struct {
	store   auditStore
	queue   *jobs.Queue
	clock   clock.Clock
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditService constructs the emitter and its delivery queue. Call Start
// before emitting and Stop on shutdown.
func NewAuditService(store auditStore, clk clock.Clock, metrics *MetricsService, logger *zap.Logger, cfg config.AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.New()
	}
	svc := &AuditService{
		store:   store,
		clock:   clk,
		metrics: metrics,
		logger:  logger,
	}
	svc.queue = jobs.NewQueue("audit", svc.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the delivery workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Emit assigns the event an id and timestamp and hands it to the queue.
// Failures are logged, never returned; audit must not block the operation
// that produced the event.
func (s *AuditService) Emit(ctx context.Context, event models.AuditEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      event.EventID,
		Type:    event.Action,
		Payload: event,
	})
	if s.metrics != nil {
		s.metrics.RecordAuditEmit(err == nil)
	}
	if err != nil {
		s.logger.Warn("audit event not queued",
			zap.String("event_id", event.EventID),
			zap.String("action", event.Action),
			zap.Error(err))
	}
}

// ListBySubject returns the audit trail for a data subject, newest first.
func (s *AuditService) ListBySubject(ctx context.Context, subjectID string) ([]models.AuditEvent, error) {
	if subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectId is required")
	}
	events, err := s.store.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list audit events")
	}
	return events, nil
}

func (s *AuditService) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.AuditEvent)
	if !ok {
		s.logger.Error("audit job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.store.Append(ctx, &event)
}
