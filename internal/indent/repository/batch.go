package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/pkg/database"
	"github.com/medsupply/indent-backend/pkg/errors"
)

// BatchRepository handles batch persistence and the stock queries built on
// top of it. The reconciling write path is a single transaction: either the
// whole replacement batch set and every upstream delta land, or nothing does.
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// ListByItem lists the batches of an indent item, earliest expiry first
func (r *BatchRepository) ListByItem(ctx context.Context, itemID string) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	query := `SELECT * FROM indent_batches WHERE indent_item_id = $1 ORDER BY expiry_date, batch_id`
	if err := r.db.SelectContext(ctx, &batches, query, itemID); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListForMedicine lists batches with remaining stock for a medicine at a
// tier, earliest expiry first. This feeds the FIFO advisory and the
// prescription draw-down.
func (r *BatchRepository) ListForMedicine(ctx context.Context, medItemID, plantID string, tier domain.Tier) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	query := `
		SELECT b.* FROM indent_batches b
		JOIN indent_items it ON it.indent_item_id = b.indent_item_id
		JOIN indents i ON i.indent_id = it.indent_id
		WHERE it.med_item_id = $1 AND i.plant_id = $2 AND i.tier = $3
		  AND i.status IN ('approved', 'pending')
		  AND b.available_stock > 0
		ORDER BY b.expiry_date, b.batch_id
	`
	if err := r.db.SelectContext(ctx, &batches, query, medItemID, plantID, tier); err != nil {
		return nil, err
	}
	return batches, nil
}

// SumAvailableForMedicine computes the available stock for a medicine at a
// tier: the sum of batch availability across approved and pending indents in
// the plant.
func (r *BatchRepository) SumAvailableForMedicine(ctx context.Context, medItemID, plantID string, tier domain.Tier) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(b.available_stock) FROM indent_batches b
		JOIN indent_items it ON it.indent_item_id = b.indent_item_id
		JOIN indents i ON i.indent_id = it.indent_id
		WHERE it.med_item_id = $1 AND i.plant_id = $2 AND i.tier = $3
		  AND i.status IN ('approved', 'pending')
	`
	if err := r.db.GetContext(ctx, &total, query, medItemID, plantID, tier); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// GetExpiringBatches lists batches with remaining stock expiring within the
// given number of days, plant-scoped
func (r *BatchRepository) GetExpiringBatches(ctx context.Context, plantID string, withinDays int) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	query := `
		SELECT b.* FROM indent_batches b
		JOIN indent_items it ON it.indent_item_id = b.indent_item_id
		JOIN indents i ON i.indent_id = it.indent_id
		WHERE i.plant_id = $1 AND b.available_stock > 0
		  AND b.expiry_date <= NOW() + INTERVAL '1 day' * $2
		ORDER BY b.expiry_date
	`
	if err := r.db.SelectContext(ctx, &batches, query, plantID, withinDays); err != nil {
		return nil, err
	}
	return batches, nil
}

// ReplaceForItem atomically replaces the batch set of an item and applies
// the upstream stock deltas. Every delta is checked against the locked
// upstream store batch before any row changes; a single shortfall rolls the
// whole save back. The item's received quantity is refreshed to the new
// batch total in the same transaction.
func (r *BatchRepository) ReplaceForItem(ctx context.Context, item *domain.IndentItem, batches []*domain.Batch, deltas []domain.BatchDelta, plantID string) error {
	return r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		for _, d := range deltas {
			if err := applyUpstreamDelta(ctx, tx, d, item.MedItemID, plantID); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM indent_batches WHERE indent_item_id = $1`, item.IndentItemID); err != nil {
			return err
		}

		received := 0
		for _, b := range batches {
			if b.BatchID == "" {
				b.BatchID = uuid.New().String()
			}
			received += b.ReceivedQuantity
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO indent_batches (
					batch_id, indent_item_id, batch_no, expiry_date,
					received_quantity, vendor_code, available_stock
				) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				b.BatchID, b.IndentItemID, b.BatchNo, b.ExpiryDate,
				b.ReceivedQuantity, b.VendorCode, b.AvailableStock,
			); err != nil {
				if appErr := database.MapPQError(err); appErr != nil {
					return appErr
				}
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE indent_items SET
				received_quantity = $2, batch_no = $3, expiry_date = $4, available_stock = $5
			WHERE indent_item_id = $1`,
			item.IndentItemID, received, item.BatchNo, item.ExpiryDate, item.AvailableStock,
		); err != nil {
			return err
		}
		item.ReceivedQuantity = received

		return nil
	})
}

// applyUpstreamDelta moves stock on the matching upstream store batch.
// The row lock holds the read-check-write together; without it two
// concurrent saves could both pass the availability check.
func applyUpstreamDelta(ctx context.Context, tx *sqlx.Tx, d domain.BatchDelta, medItemID, plantID string) error {
	var upstream struct {
		BatchID        string `db:"batch_id"`
		AvailableStock int    `db:"available_stock"`
	}

	err := tx.GetContext(ctx, &upstream, `
		SELECT b.batch_id, b.available_stock FROM indent_batches b
		JOIN indent_items it ON it.indent_item_id = b.indent_item_id
		JOIN indents i ON i.indent_id = it.indent_id
		WHERE b.batch_no = $1 AND it.med_item_id = $2 AND i.plant_id = $3
		  AND i.tier = 'store' AND i.status IN ('approved', 'pending')
		ORDER BY b.expiry_date
		LIMIT 1
		FOR UPDATE OF b`,
		d.BatchNo, medItemID, plantID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// No upstream lot tracks this batch number; nothing to move.
			return nil
		}
		return err
	}

	newStock := upstream.AvailableStock - d.Delta
	if newStock < 0 {
		return errors.StockInsufficient(upstream.AvailableStock, d.Delta)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE indent_batches SET available_stock = $2 WHERE batch_id = $1`,
		upstream.BatchID, newStock,
	)
	return err
}
