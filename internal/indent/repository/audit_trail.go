package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/medsupply/indent-backend/pkg/database"
)

// AuditEntry is one append-only audit trail record. Entries are never
// updated or deleted.
type AuditEntry struct {
	ID          string    `db:"id" json:"id"`
	PlantID     string    `db:"plant_id" json:"plant_id"`
	Module      string    `db:"module" json:"module"`
	Action      string    `db:"action" json:"action"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	BeforeState *string   `db:"before_state" json:"before_state,omitempty"`
	AfterState  *string   `db:"after_state" json:"after_state,omitempty"`
	Message     string    `db:"message" json:"message"`
	PerformedBy string    `db:"performed_by" json:"performed_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AuditTrailRepository handles audit trail persistence, append-only.
type AuditTrailRepository struct {
	db *database.DB
}

// NewAuditTrailRepository creates a new audit trail repository
func NewAuditTrailRepository(db *database.DB) *AuditTrailRepository {
	return &AuditTrailRepository{db: db}
}

// Create appends an audit entry
func (r *AuditTrailRepository) Create(ctx context.Context, entry *AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO audit_trail (
			id, plant_id, module, action, entity_id,
			before_state, after_state, message, performed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	return r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.PlantID, entry.Module, entry.Action, entry.EntityID,
		entry.BeforeState, entry.AfterState, entry.Message, entry.PerformedBy,
	).Scan(&entry.CreatedAt)
}

// ListByEntity lists audit entries for a specific entity with pagination
func (r *AuditTrailRepository) ListByEntity(ctx context.Context, plantID, module, entityID string, page, perPage int) ([]*AuditEntry, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM audit_trail WHERE plant_id = $1 AND module = $2 AND entity_id = $3`
	if err := r.db.GetContext(ctx, &total, countQuery, plantID, module, entityID); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	query := `
		SELECT * FROM audit_trail
		WHERE plant_id = $1 AND module = $2 AND entity_id = $3
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`

	var entries []*AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, plantID, module, entityID, perPage, offset); err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
