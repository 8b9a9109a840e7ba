package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
	"github.com/ekaya-inc/ekaya-datatools/pkg/repositories"
)

// AuditService records operator-visible events in the audit log.
type AuditService interface {
	// Record writes an audit entry. Failures are logged and never returned.
	Record(ctx context.Context, action, environment string, details map[string]any)

	// Recent returns the newest entries, optionally restricted to one action.
	Recent(ctx context.Context, action string, limit int) ([]*models.AuditLogEntry, error)
}

type auditService struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.Named("audit-service"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) Record(ctx context.Context, action, environment string, details map[string]any) {
	entry := &models.AuditLogEntry{
		Action:      action,
		Environment: environment,
		Details:     details,
	}

	// Audit logging shouldn't break the main operation.
	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("Failed to create audit log entry",
			zap.String("action", action),
			zap.String("environment", environment),
			zap.Error(err))
	}
}

func (s *auditService) Recent(ctx context.Context, action string, limit int) ([]*models.AuditLogEntry, error) {
	if limit <= 0 || limit > models.MaxRunListLimit {
		limit = models.DefaultRunListLimit
	}
	return s.repo.ListRecent(ctx, action, limit)
}
