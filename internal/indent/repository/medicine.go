package repository

import (
	"context"
	"database/sql"

	"github.com/medsupply/indent-backend/pkg/database"
	"github.com/medsupply/indent-backend/pkg/errors"
)

// Medicine is a catalog entry. The catalog is read-only from this service:
// it only resolves display names, no business rule touches it.
type Medicine struct {
	MedItemID string `db:"med_item_id" json:"med_item_id"`
	Name      string `db:"name" json:"name"`
	Unit      string `db:"unit" json:"unit"`
	IsActive  bool   `db:"is_active" json:"is_active"`
}

// MedicineRepository is the read-only medicine catalog lookup
type MedicineRepository struct {
	db *database.DB
}

// NewMedicineRepository creates a new medicine repository
func NewMedicineRepository(db *database.DB) *MedicineRepository {
	return &MedicineRepository{db: db}
}

// GetByID gets a medicine by ID
func (r *MedicineRepository) GetByID(ctx context.Context, id string) (*Medicine, error) {
	var med Medicine
	query := `SELECT * FROM medicines WHERE med_item_id = $1 AND is_active = true`
	if err := r.db.GetContext(ctx, &med, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundOrForbidden("medicine")
		}
		return nil, err
	}
	return &med, nil
}

// List lists active medicines
func (r *MedicineRepository) List(ctx context.Context) ([]*Medicine, error) {
	var meds []*Medicine
	query := `SELECT * FROM medicines WHERE is_active = true ORDER BY name`
	if err := r.db.SelectContext(ctx, &meds, query); err != nil {
		return nil, err
	}
	return meds, nil
}
