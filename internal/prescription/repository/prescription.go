package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/pkg/database"
	"github.com/medsupply/indent-backend/pkg/errors"
)

// Prescription is one dispensing record drawn from compounder inventory.
type Prescription struct {
	PrescriptionID string    `db:"prescription_id" json:"prescription_id"`
	PlantID        string    `db:"plant_id" json:"plant_id"`
	PatientName    string    `db:"patient_name" json:"patient_name"`
	PrescribedBy   string    `db:"prescribed_by" json:"prescribed_by"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`

	Lines []*PrescriptionLine `db:"-" json:"lines,omitempty"`
}

// PrescriptionLine is one medicine draw within a prescription.
type PrescriptionLine struct {
	LineID         string `db:"line_id" json:"line_id"`
	PrescriptionID string `db:"prescription_id" json:"prescription_id"`
	MedItemID      string `db:"med_item_id" json:"med_item_id"`
	Quantity       int    `db:"quantity" json:"quantity"`
}

// PrescriptionRepository handles prescription persistence.
type PrescriptionRepository struct {
	db *database.DB
}

// NewPrescriptionRepository creates a new prescription repository
func NewPrescriptionRepository(db *database.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

// Create persists a prescription with its lines and applies its stock
// draw-down in one transaction. Each batch decrement is guarded in the
// UPDATE itself; a failed guard means another writer got there first, and a
// failed insert rolls every decrement back. Stock never moves without a
// prescription on file.
func (r *PrescriptionRepository) Create(ctx context.Context, p *Prescription, allocations []domain.Allocation) error {
	if p.PrescriptionID == "" {
		p.PrescriptionID = uuid.New().String()
	}

	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, a := range allocations {
			result, err := tx.ExecContext(ctx, `
				UPDATE indent_batches SET available_stock = available_stock - $2
				WHERE batch_id = $1 AND available_stock >= $2`,
				a.BatchID, a.Quantity,
			)
			if err != nil {
				return err
			}
			affected, _ := result.RowsAffected()
			if affected == 0 {
				return errors.StockInsufficient(0, a.Quantity)
			}
		}

		err := tx.QueryRowxContext(ctx, `
			INSERT INTO prescriptions (prescription_id, plant_id, patient_name, prescribed_by)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at`,
			p.PrescriptionID, p.PlantID, p.PatientName, p.PrescribedBy,
		).Scan(&p.CreatedAt)
		if err != nil {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}

		for _, line := range p.Lines {
			if line.LineID == "" {
				line.LineID = uuid.New().String()
			}
			line.PrescriptionID = p.PrescriptionID
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO prescription_lines (line_id, prescription_id, med_item_id, quantity)
				VALUES ($1, $2, $3, $4)`,
				line.LineID, line.PrescriptionID, line.MedItemID, line.Quantity,
			); err != nil {
				if appErr := database.MapPQError(err); appErr != nil {
					return appErr
				}
				return err
			}
		}
		return nil
	})
}

// GetByID gets a prescription with its lines within a plant
func (r *PrescriptionRepository) GetByID(ctx context.Context, id, plantID string) (*Prescription, error) {
	var p Prescription
	query := `SELECT * FROM prescriptions WHERE prescription_id = $1 AND plant_id = $2`
	if err := r.db.GetContext(ctx, &p, query, id, plantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundOrForbidden("prescription")
		}
		return nil, err
	}

	if err := r.db.SelectContext(ctx, &p.Lines,
		`SELECT * FROM prescription_lines WHERE prescription_id = $1 ORDER BY line_id`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// List lists a plant's prescriptions, newest first
func (r *PrescriptionRepository) List(ctx context.Context, plantID string, page, perPage int) ([]*Prescription, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM prescriptions WHERE plant_id = $1`, plantID); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	var prescriptions []*Prescription
	query := `
		SELECT * FROM prescriptions WHERE plant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &prescriptions, query, plantID, perPage, offset); err != nil {
		return nil, 0, err
	}
	return prescriptions, total, nil
}
