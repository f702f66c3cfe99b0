package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/practicas-api/internal/models"
	"github.com/noah-isme/practicas-api/pkg/jobs"
)

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService persists audit entries asynchronously through a worker
// queue so request handlers never block on the audit trail.
type AuditService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService wires the audit writer queue.
func NewAuditService(writer auditLogWriter, logger *zap.Logger, cfg jobs.QueueConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logger = logger

	handler := func(ctx context.Context, job jobs.Job) error {
		entry, ok := job.Payload.(*models.AuditLog)
		if !ok {
			return fmt.Errorf("unexpected audit payload type %T", job.Payload)
		}
		return writer.CreateAuditLog(ctx, entry)
	}

	return &AuditService{
		queue:  jobs.NewQueue("audit", handler, cfg),
		logger: logger,
	}
}

// Start boots the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the queue workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit entry. Failures are logged and dropped; the
// audit trail is best-effort and never fails the originating request.
func (s *AuditService) Record(log *models.AuditLog) {
	if log == nil {
		return
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	err := s.queue.Enqueue(jobs.Job{
		ID:      log.ID,
		Type:    log.Action,
		Payload: log,
	})
	if err != nil {
		s.logger.Sugar().Warnw("failed to enqueue audit entry", "action", log.Action, "error", err)
	}
}
