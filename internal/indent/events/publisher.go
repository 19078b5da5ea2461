package events

import (
	"context"

	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/medsupply/indent-backend/pkg/logger"
	"github.com/medsupply/indent-backend/pkg/messaging"
)

// Publisher pushes indent pipeline events onto the message bus.
// Every publish is fire-and-forget: a broker failure is logged and swallowed
// so the write path never depends on messaging being up. A nil Publisher is
// valid and publishes nothing.
type Publisher struct {
	events *messaging.Publisher
	logger *logger.Logger
}

// NewPublisher creates an event publisher over the indent events exchange
func NewPublisher(events *messaging.Publisher, log *logger.Logger) *Publisher {
	return &Publisher{
		events: events,
		logger: log.WithComponent("events"),
	}
}

func (p *Publisher) publish(ctx context.Context, eventType string, data interface{}) {
	if p == nil || p.events == nil {
		return
	}
	if err := p.events.Publish(ctx, eventType, data); err != nil {
		p.logger.Warn().
			Err(err).
			Str("event_type", eventType).
			Msg("failed to publish event")
	}
}

type indentEvent struct {
	IndentID   string `json:"indent_id"`
	PlantID    string `json:"plant_id"`
	Tier       string `json:"tier"`
	Status     string `json:"status"`
	IndentType string `json:"indent_type"`
	Actor      string `json:"actor"`
}

func toIndentEvent(ind *domain.Indent, act actor.Actor) indentEvent {
	return indentEvent{
		IndentID:   ind.IndentID,
		PlantID:    ind.PlantID,
		Tier:       string(ind.Tier),
		Status:     string(ind.Status),
		IndentType: ind.IndentType(),
		Actor:      act.Username,
	}
}

// IndentCreated publishes an indent creation
func (p *Publisher) IndentCreated(ctx context.Context, ind *domain.Indent, act actor.Actor) {
	p.publish(ctx, messaging.EventIndentCreated, toIndentEvent(ind, act))
}

// IndentUpdated publishes an indent header update
func (p *Publisher) IndentUpdated(ctx context.Context, ind *domain.Indent, act actor.Actor) {
	p.publish(ctx, messaging.EventIndentUpdated, toIndentEvent(ind, act))
}

// IndentDeleted publishes an indent deletion
func (p *Publisher) IndentDeleted(ctx context.Context, ind *domain.Indent, act actor.Actor) {
	p.publish(ctx, messaging.EventIndentDeleted, toIndentEvent(ind, act))
}

// IndentSubmitted publishes a draft-to-pending transition
func (p *Publisher) IndentSubmitted(ctx context.Context, ind *domain.Indent, act actor.Actor) {
	p.publish(ctx, messaging.EventIndentSubmitted, messaging.IndentSubmittedEvent{
		IndentID:    ind.IndentID,
		PlantID:     ind.PlantID,
		Tier:        string(ind.Tier),
		SubmittedBy: act.Username,
	})
}

// IndentDecided publishes an approval decision
func (p *Publisher) IndentDecided(ctx context.Context, ind *domain.Indent, act actor.Actor) {
	comments := ""
	if ind.Comments != nil {
		comments = *ind.Comments
	}
	p.publish(ctx, messaging.EventIndentDecided, messaging.IndentDecidedEvent{
		IndentID:  ind.IndentID,
		PlantID:   ind.PlantID,
		Tier:      string(ind.Tier),
		Decision:  string(ind.Status),
		DecidedBy: act.Username,
		Comments:  comments,
	})
}

// StockReconciled publishes the upstream deltas applied by a batch save
func (p *Publisher) StockReconciled(ctx context.Context, item *domain.IndentItem, plantID string, deltas []domain.BatchDelta, act actor.Actor) {
	batchDeltas := make(map[string]int, len(deltas))
	for _, d := range deltas {
		batchDeltas[d.BatchNo] = d.Delta
	}
	p.publish(ctx, messaging.EventStockReconciled, messaging.StockReconciledEvent{
		ItemID:      item.IndentItemID,
		PlantID:     plantID,
		BatchDeltas: batchDeltas,
		PerformedBy: act.Username,
	})
}

// BatchesCleared publishes a clear-all batch save
func (p *Publisher) BatchesCleared(ctx context.Context, item *domain.IndentItem, plantID string, act actor.Actor) {
	p.publish(ctx, messaging.EventBatchesCleared, messaging.StockReconciledEvent{
		ItemID:      item.IndentItemID,
		PlantID:     plantID,
		BatchDeltas: map[string]int{},
		PerformedBy: act.Username,
	})
}

// AdvisoryOverridden publishes a confirmed issue against a later-expiring batch
func (p *Publisher) AdvisoryOverridden(ctx context.Context, medItemID, plantID, selectedBatchNo, earliestBatchNo string, act actor.Actor) {
	p.publish(ctx, messaging.EventAdvisoryOverridden, messaging.AdvisoryOverriddenEvent{
		MedItemID:       medItemID,
		PlantID:         plantID,
		SelectedBatchNo: selectedBatchNo,
		EarliestBatchNo: earliestBatchNo,
		PerformedBy:     act.Username,
	})
}

// PrescriptionDispensed publishes one dispensed prescription line
func (p *Publisher) PrescriptionDispensed(ctx context.Context, prescriptionID, plantID, medItemID string, quantity int, act actor.Actor) {
	p.publish(ctx, messaging.EventPrescriptionDispensed, messaging.PrescriptionDispensedEvent{
		PrescriptionID: prescriptionID,
		PlantID:        plantID,
		MedItemID:      medItemID,
		Quantity:       quantity,
		PerformedBy:    act.Username,
	})
}
