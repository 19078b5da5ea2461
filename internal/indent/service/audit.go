package service

import (
	"context"

	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/internal/indent/repository"
	"github.com/medsupply/indent-backend/pkg/logger"
)

// AuditService turns domain events into append-only audit trail entries.
// Recording never fails the calling operation: a write error is logged and
// the entry is lost, the business mutation stands.
type AuditService struct {
	store  AuditStore
	logger *logger.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(store AuditStore, log *logger.Logger) *AuditService {
	return &AuditService{
		store:  store,
		logger: log.WithComponent("audit"),
	}
}

// Record appends one audit entry per domain event, in order.
func (s *AuditService) Record(ctx context.Context, plantID string, events []domain.Event) {
	for _, ev := range events {
		entry := &repository.AuditEntry{
			PlantID:     plantID,
			Module:      ev.Module,
			Action:      ev.Action,
			EntityID:    ev.EntityID,
			BeforeState: optional(ev.Before),
			AfterState:  optional(ev.After),
			Message:     ev.Message,
			PerformedBy: ev.Actor,
		}
		if err := s.store.Create(ctx, entry); err != nil {
			s.logger.Error().
				Err(err).
				Str("module", ev.Module).
				Str("action", ev.Action).
				Str("entity_id", ev.EntityID).
				Msg("failed to write audit entry")
		}
	}
}

// ListByEntity returns the audit trail of one entity, newest first.
func (s *AuditService) ListByEntity(ctx context.Context, plantID, module, entityID string, page, perPage int) ([]*repository.AuditEntry, int64, error) {
	return s.store.ListByEntity(ctx, plantID, module, entityID, page, perPage)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
