package service

import (
	"context"
	"fmt"
	"time"

	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/medsupply/indent-backend/pkg/logger"
)

// StockService owns the batch ledger side of the pipeline: replacing an
// item's batch set with delta reconciliation against upstream store stock,
// the FIFO issue advisory and the expiry report.
type StockService struct {
	indents   IndentStore
	items     ItemStore
	batches   BatchStore
	audit     *AuditService
	publisher EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewStockService creates a new stock service
func NewStockService(indents IndentStore, items ItemStore, batches BatchStore, audit *AuditService, publisher EventPublisher, log *logger.Logger) *StockService {
	return &StockService{
		indents:   indents,
		items:     items,
		batches:   batches,
		audit:     audit,
		publisher: publisher,
		logger:    log.WithComponent("stock_service"),
		now:       time.Now,
	}
}

// SaveBatches replaces the batch set of an item. The net per-batch-number
// deltas against the previous set are applied to the matching upstream store
// batches in the same transaction; an empty row list clears the set and
// returns everything upstream. On success the item carries its refreshed
// received quantity and denormalized batch summary.
func (s *StockService) SaveBatches(ctx context.Context, act actor.Actor, itemID string, mode domain.ViewMode, rows []domain.BatchRow) (*domain.IndentItem, []*domain.Batch, error) {
	item, err := s.items.GetByID(ctx, itemID, act.PlantID)
	if err != nil {
		return nil, nil, err
	}
	ind, err := s.indents.GetByID(ctx, item.IndentID, act.PlantID)
	if err != nil {
		return nil, nil, err
	}
	siblings, err := s.items.ListByIndent(ctx, ind.IndentID)
	if err != nil {
		return nil, nil, err
	}

	perms := domain.ResolveItem(act.Role, ind.IsCreator(act.Username), ind, mode, item, domain.SummarizeItems(siblings))
	if err := domain.RequireEdit(perms, act, ind); err != nil {
		return nil, nil, err
	}

	if err := domain.ValidateBatchRows(rows, item.RaisedQuantity, s.now()); err != nil {
		return nil, nil, err
	}

	prev, err := s.batches.ListByItem(ctx, item.IndentItemID)
	if err != nil {
		return nil, nil, err
	}

	// Only compounder receipts issue from store lots; store receipts come
	// from external vendors and move no upstream stock.
	var deltas []domain.BatchDelta
	if ind.Tier == domain.TierCompounder {
		deltas = domain.ComputeDeltas(domain.TotalsByBatchNo(prev), domain.RowTotalsByBatchNo(rows))
	}
	next := domain.BatchesFromRows(item.IndentItemID, rows)
	if err := domain.ValidateBatchSet(item, next); err != nil {
		return nil, nil, err
	}

	summarizeItem(item, rows)
	if err := s.batches.ReplaceForItem(ctx, item, next, deltas, act.PlantID); err != nil {
		return nil, nil, err
	}

	if len(rows) == 0 {
		s.audit.Record(ctx, act.PlantID, []domain.Event{{
			Module:   domain.ModuleBatch,
			Action:   "clear",
			EntityID: item.IndentItemID,
			Message:  "all batches cleared, issued stock returned upstream",
			Actor:    act.Username,
		}})
		s.publisher.BatchesCleared(ctx, item, act.PlantID, act)
	} else {
		s.audit.Record(ctx, act.PlantID, []domain.Event{{
			Module:   domain.ModuleBatch,
			Action:   "reconcile",
			EntityID: item.IndentItemID,
			Message:  describeDeltas(deltas),
			Actor:    act.Username,
		}})
		s.publisher.StockReconciled(ctx, item, act.PlantID, deltas, act)
	}

	return item, next, nil
}

// BatchesForItem lists an item's batches, earliest expiry first.
func (s *StockService) BatchesForItem(ctx context.Context, act actor.Actor, itemID string) ([]*domain.Batch, error) {
	if _, err := s.items.GetByID(ctx, itemID, act.PlantID); err != nil {
		return nil, err
	}
	return s.batches.ListByItem(ctx, itemID)
}

// Availability reports the summed available stock of a medicine at a tier
// within the caller's plant.
func (s *StockService) Availability(ctx context.Context, act actor.Actor, medItemID string, tier domain.Tier) (int, error) {
	return s.batches.SumAvailableForMedicine(ctx, medItemID, act.PlantID, tier)
}

// CheckBatchSelection runs the FIFO advisory for a batch choice. It never
// blocks: a prompt only asks the caller to confirm issuing against a
// later-expiring batch while an earlier one still has stock.
func (s *StockService) CheckBatchSelection(ctx context.Context, act actor.Actor, medItemID string, tier domain.Tier, selectedBatchNo string) (domain.Advisory, error) {
	pool, err := s.batches.ListForMedicine(ctx, medItemID, act.PlantID, tier)
	if err != nil {
		return domain.Advisory{}, err
	}
	return domain.CheckFIFOSelection(pool, selectedBatchNo), nil
}

// ConfirmAdvisoryOverride records a user proceeding against the FIFO
// advisory. The decision lands in the audit trail and on the bus either way;
// proceeded distinguishes an override from a back-out.
func (s *StockService) ConfirmAdvisoryOverride(ctx context.Context, act actor.Actor, medItemID, selectedBatchNo, earliestBatchNo string, proceeded bool) {
	action := "override_declined"
	message := fmt.Sprintf("kept earliest batch %s over selected %s", earliestBatchNo, selectedBatchNo)
	if proceeded {
		action = "override_confirmed"
		message = fmt.Sprintf("issued against %s while %s expires earlier", selectedBatchNo, earliestBatchNo)
	}

	s.audit.Record(ctx, act.PlantID, []domain.Event{{
		Module:   domain.ModuleAdvisory,
		Action:   action,
		EntityID: medItemID,
		Message:  message,
		Actor:    act.Username,
	}})
	if proceeded {
		s.publisher.AdvisoryOverridden(ctx, medItemID, act.PlantID, selectedBatchNo, earliestBatchNo, act)
	}
}

// ExpiringBatches lists batches with remaining stock expiring within the
// given number of days.
func (s *StockService) ExpiringBatches(ctx context.Context, act actor.Actor, withinDays int) ([]*domain.Batch, error) {
	if withinDays <= 0 {
		withinDays = 30
	}
	return s.batches.GetExpiringBatches(ctx, act.PlantID, withinDays)
}

// summarizeItem refreshes the denormalized batch summary on the item from
// the incoming rows. A clear-all resets it.
func summarizeItem(item *domain.IndentItem, rows []domain.BatchRow) {
	if len(rows) == 0 {
		item.BatchNo = nil
		item.ExpiryDate = nil
		item.AvailableStock = nil
		return
	}

	first := rows[0]
	total := 0
	for _, row := range rows {
		total += row.ReceivedQuantity
	}
	item.BatchNo = &first.BatchNo
	item.ExpiryDate = &first.ExpiryDate
	item.AvailableStock = &total
}

func describeDeltas(deltas []domain.BatchDelta) string {
	if len(deltas) == 0 {
		return "batch set saved, no upstream stock movement"
	}
	msg := "upstream stock moved:"
	for _, d := range deltas {
		msg += fmt.Sprintf(" %s%+d", d.BatchNo, -d.Delta)
	}
	return msg
}
