package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Indent lifecycle events
	EventIndentCreated   = "indent.created"
	EventIndentUpdated   = "indent.updated"
	EventIndentDeleted   = "indent.deleted"
	EventIndentSubmitted = "indent.submitted"
	EventIndentDecided   = "indent.decided"

	// Stock events
	EventStockReconciled    = "stock.reconciled"
	EventBatchesCleared     = "stock.batches.cleared"
	EventAdvisoryOverridden = "stock.advisory.overridden"

	// Prescription events
	EventPrescriptionDispensed = "prescription.dispensed"

	// Audit events
	EventAuditLogCreated = "audit.log.created"
)

// Exchange names
const (
	ExchangeIndentEvents = "indent.events"
	ExchangeAuditEvents  = "audit.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and payload
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
		Data:          payload,
	}, nil
}

// IndentSubmittedEvent is published when a draft indent moves to pending
type IndentSubmittedEvent struct {
	IndentID    string `json:"indent_id"`
	PlantID     string `json:"plant_id"`
	Tier        string `json:"tier"`
	SubmittedBy string `json:"submitted_by"`
}

// IndentDecidedEvent is published when a doctor approves or rejects an indent
type IndentDecidedEvent struct {
	IndentID  string `json:"indent_id"`
	PlantID   string `json:"plant_id"`
	Tier      string `json:"tier"`
	Decision  string `json:"decision"`
	DecidedBy string `json:"decided_by"`
	Comments  string `json:"comments"`
}

// StockReconciledEvent is published after a batch save applies upstream deltas
type StockReconciledEvent struct {
	ItemID      string         `json:"item_id"`
	PlantID     string         `json:"plant_id"`
	BatchDeltas map[string]int `json:"batch_deltas"`
	PerformedBy string         `json:"performed_by"`
}

// AdvisoryOverriddenEvent records a user issuing against a later-expiring batch
type AdvisoryOverriddenEvent struct {
	MedItemID       string `json:"med_item_id"`
	PlantID         string `json:"plant_id"`
	SelectedBatchNo string `json:"selected_batch_no"`
	EarliestBatchNo string `json:"earliest_batch_no"`
	PerformedBy     string `json:"performed_by"`
}

// PrescriptionDispensedEvent is published after a FIFO draw-down completes
type PrescriptionDispensedEvent struct {
	PrescriptionID string `json:"prescription_id"`
	PlantID        string `json:"plant_id"`
	MedItemID      string `json:"med_item_id"`
	Quantity       int    `json:"quantity"`
	PerformedBy    string `json:"performed_by"`
}
