package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/pkg/database"
	"github.com/medsupply/indent-backend/pkg/errors"
)

// IndentRepository handles indent header persistence. Every read and write
// is plant-scoped; a miss and a cross-plant hit are indistinguishable.
type IndentRepository struct {
	db *database.DB
}

// NewIndentRepository creates a new indent repository
func NewIndentRepository(db *database.DB) *IndentRepository {
	return &IndentRepository{db: db}
}

// Create creates a new indent header
func (r *IndentRepository) Create(ctx context.Context, ind *domain.Indent) error {
	if ind.IndentID == "" {
		ind.IndentID = uuid.New().String()
	}

	query := `
		INSERT INTO indents (
			indent_id, plant_id, tier, status, indent_date, created_by, comments
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_date
	`

	err := r.db.QueryRowxContext(ctx, query,
		ind.IndentID, ind.PlantID, ind.Tier, ind.Status, ind.IndentDate,
		ind.CreatedBy, ind.Comments,
	).Scan(&ind.CreatedDate)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets an indent by ID within a plant
func (r *IndentRepository) GetByID(ctx context.Context, id, plantID string) (*domain.Indent, error) {
	var ind domain.Indent
	query := `SELECT * FROM indents WHERE indent_id = $1 AND plant_id = $2`
	if err := r.db.GetContext(ctx, &ind, query, id, plantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundOrForbidden("indent")
		}
		return nil, err
	}
	return &ind, nil
}

// List lists indents in a plant, optionally filtered by tier and status
func (r *IndentRepository) List(ctx context.Context, plantID string, tier domain.Tier, status domain.Status, page, perPage int) ([]*domain.Indent, int64, error) {
	args := []interface{}{plantID}
	argIdx := 2

	countQuery := `SELECT COUNT(*) FROM indents WHERE plant_id = $1`
	query := `SELECT * FROM indents WHERE plant_id = $1`

	if tier != "" {
		countQuery += fmt.Sprintf(` AND tier = $%d`, argIdx)
		query += fmt.Sprintf(` AND tier = $%d`, argIdx)
		args = append(args, tier)
		argIdx++
	}

	if status != "" {
		countQuery += fmt.Sprintf(` AND status = $%d`, argIdx)
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, status)
		argIdx++
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_date DESC`
	offset := (page - 1) * perPage
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, argIdx, argIdx+1)
	args = append(args, perPage, offset)

	var indents []*domain.Indent
	if err := r.db.SelectContext(ctx, &indents, query, args...); err != nil {
		return nil, 0, err
	}

	return indents, total, nil
}

// Update updates the mutable header fields of an indent
func (r *IndentRepository) Update(ctx context.Context, ind *domain.Indent) error {
	query := `
		UPDATE indents SET indent_date = $3, comments = $4
		WHERE indent_id = $1 AND plant_id = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		ind.IndentID, ind.PlantID, ind.IndentDate, ind.Comments,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFoundOrForbidden("indent")
	}

	return nil
}

// MarkSubmitted persists a draft-to-pending transition. The status guard in
// the WHERE clause makes concurrent submissions of the same draft settle to
// exactly one winner.
func (r *IndentRepository) MarkSubmitted(ctx context.Context, ind *domain.Indent) error {
	query := `
		UPDATE indents SET status = $3, indent_date = $4
		WHERE indent_id = $1 AND plant_id = $2 AND status = 'draft'
	`

	result, err := r.db.ExecContext(ctx, query,
		ind.IndentID, ind.PlantID, ind.Status, ind.IndentDate,
	)
	if err != nil {
		return err
	}

	// Zero rows here means the indent already left draft; the submit is a
	// no-op by design, not an error.
	_, _ = result.RowsAffected()
	return nil
}

// MarkDecided persists an approval decision. The pending guard keeps two
// concurrent decisions from both landing.
func (r *IndentRepository) MarkDecided(ctx context.Context, ind *domain.Indent) error {
	query := `
		UPDATE indents SET status = $3, approved_by = $4, approved_date = $5, comments = $6
		WHERE indent_id = $1 AND plant_id = $2 AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query,
		ind.IndentID, ind.PlantID, ind.Status, ind.ApprovedBy, ind.ApprovedDate, ind.Comments,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.Conflict("indent is not pending approval")
	}

	return nil
}

// Delete deletes an indent and, through cascading constraints, its items
// and batches
func (r *IndentRepository) Delete(ctx context.Context, id, plantID string) error {
	query := `DELETE FROM indents WHERE indent_id = $1 AND plant_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, plantID)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFoundOrForbidden("indent")
	}

	return nil
}
