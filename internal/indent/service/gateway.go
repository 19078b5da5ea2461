package service

import (
	"context"

	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/internal/indent/repository"
	"github.com/medsupply/indent-backend/pkg/actor"
)

// The services depend on these consumer-side interfaces rather than the
// concrete repositories so the orchestration logic is testable with in-memory
// fakes. The repository types satisfy them directly.

// IndentStore persists indent headers.
type IndentStore interface {
	Create(ctx context.Context, ind *domain.Indent) error
	GetByID(ctx context.Context, id, plantID string) (*domain.Indent, error)
	List(ctx context.Context, plantID string, tier domain.Tier, status domain.Status, page, perPage int) ([]*domain.Indent, int64, error)
	Update(ctx context.Context, ind *domain.Indent) error
	MarkSubmitted(ctx context.Context, ind *domain.Indent) error
	MarkDecided(ctx context.Context, ind *domain.Indent) error
	Delete(ctx context.Context, id, plantID string) error
}

// ItemStore persists indent items.
type ItemStore interface {
	Create(ctx context.Context, item *domain.IndentItem) error
	GetByID(ctx context.Context, id, plantID string) (*domain.IndentItem, error)
	ListByIndent(ctx context.Context, indentID string) ([]*domain.IndentItem, error)
	Update(ctx context.Context, item *domain.IndentItem) error
	SumOutstandingRaised(ctx context.Context, medItemID, plantID, excludeItemID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// BatchStore persists batches and answers the stock queries built on them.
type BatchStore interface {
	ListByItem(ctx context.Context, itemID string) ([]*domain.Batch, error)
	ListForMedicine(ctx context.Context, medItemID, plantID string, tier domain.Tier) ([]*domain.Batch, error)
	SumAvailableForMedicine(ctx context.Context, medItemID, plantID string, tier domain.Tier) (int, error)
	GetExpiringBatches(ctx context.Context, plantID string, withinDays int) ([]*domain.Batch, error)
	ReplaceForItem(ctx context.Context, item *domain.IndentItem, batches []*domain.Batch, deltas []domain.BatchDelta, plantID string) error
}

// MedicineStore resolves catalog entries.
type MedicineStore interface {
	GetByID(ctx context.Context, id string) (*repository.Medicine, error)
	List(ctx context.Context) ([]*repository.Medicine, error)
}

// AuditStore persists audit trail entries.
type AuditStore interface {
	Create(ctx context.Context, entry *repository.AuditEntry) error
	ListByEntity(ctx context.Context, plantID, module, entityID string, page, perPage int) ([]*repository.AuditEntry, int64, error)
}

// EventPublisher pushes domain happenings onto the message bus. Publishing is
// fire-and-forget: implementations log failures and never propagate them.
type EventPublisher interface {
	IndentCreated(ctx context.Context, ind *domain.Indent, act actor.Actor)
	IndentUpdated(ctx context.Context, ind *domain.Indent, act actor.Actor)
	IndentDeleted(ctx context.Context, ind *domain.Indent, act actor.Actor)
	IndentSubmitted(ctx context.Context, ind *domain.Indent, act actor.Actor)
	IndentDecided(ctx context.Context, ind *domain.Indent, act actor.Actor)
	StockReconciled(ctx context.Context, item *domain.IndentItem, plantID string, deltas []domain.BatchDelta, act actor.Actor)
	BatchesCleared(ctx context.Context, item *domain.IndentItem, plantID string, act actor.Actor)
	AdvisoryOverridden(ctx context.Context, medItemID, plantID, selectedBatchNo, earliestBatchNo string, act actor.Actor)
	PrescriptionDispensed(ctx context.Context, prescriptionID, plantID, medItemID string, quantity int, act actor.Actor)
}
