package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

const auditJobType = "audit_event"

type auditRepository interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
	ListByTimetable(ctx context.Context, key string, limit int) ([]models.AuditEvent, error)
}

type auditQueue interface {
	Enqueue(job jobs.Job) error
}

// AuditService emits timetable edit events to audit_logs without blocking
// the edit that produced them.
type AuditService struct {
	repo    auditRepository
	queue   auditQueue
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
}

// NewAuditService builds the service. Call Handle from a jobs.Queue worker
// and attach that queue with UseQueue.
func NewAuditService(repo auditRepository, metrics *MetricsService, logger *zap.Logger, enabled bool) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, metrics: metrics, logger: logger, enabled: enabled}
}

// UseQueue attaches the queue Record enqueues onto.
func (s *AuditService) UseQueue(queue auditQueue) {
	s.queue = queue
}

// Record queues event for persistence. Events that cannot be queued are
// logged and counted, never returned to the caller.
func (s *AuditService) Record(event models.AuditEvent) {
	if s == nil || !s.enabled {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if s.queue == nil {
		s.drop(event, fmt.Errorf("audit queue not attached"))
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: event.ID, Type: auditJobType, Payload: event}); err != nil {
		s.drop(event, err)
	}
}

func (s *AuditService) drop(event models.AuditEvent, err error) {
	s.metrics.RecordAuditDropped()
	s.logger.Warn("audit event dropped",
		zap.String("action", event.Action),
		zap.String("session_id", event.SessionID),
		zap.Error(err),
	)
}

// Handle persists one queued event.
func (s *AuditService) Handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.AuditEvent)
	if !ok {
		s.logger.Error("unexpected audit payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	if err := s.repo.Insert(ctx, &event); err != nil {
		return fmt.Errorf("persist audit event %s: %w", event.ID, err)
	}
	return nil
}

// History returns the latest events recorded for a timetable key.
func (s *AuditService) History(ctx context.Context, key string, limit int) ([]models.AuditEvent, error) {
	if key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable key is required")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	events, err := s.repo.ListByTimetable(ctx, key, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load audit history")
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	return events, nil
}
