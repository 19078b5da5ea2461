package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/pkg/database"
	"github.com/medsupply/indent-backend/pkg/errors"
)

// ItemRepository handles indent item persistence. Items are plant-scoped
// through their owning indent.
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create creates a new indent item
func (r *ItemRepository) Create(ctx context.Context, item *domain.IndentItem) error {
	if item.IndentItemID == "" {
		item.IndentItemID = uuid.New().String()
	}

	query := `
		INSERT INTO indent_items (
			indent_item_id, indent_id, med_item_id, vendor_code,
			raised_quantity, received_quantity, unit_price,
			batch_no, expiry_date, available_stock
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		item.IndentItemID, item.IndentID, item.MedItemID, item.VendorCode,
		item.RaisedQuantity, item.ReceivedQuantity, item.UnitPrice,
		item.BatchNo, item.ExpiryDate, item.AvailableStock,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets an item by ID within a plant. The plant scope goes through
// the owning indent.
func (r *ItemRepository) GetByID(ctx context.Context, id, plantID string) (*domain.IndentItem, error) {
	var item domain.IndentItem
	query := `
		SELECT it.* FROM indent_items it
		JOIN indents i ON i.indent_id = it.indent_id
		WHERE it.indent_item_id = $1 AND i.plant_id = $2
	`
	if err := r.db.GetContext(ctx, &item, query, id, plantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundOrForbidden("indent item")
		}
		return nil, err
	}
	return &item, nil
}

// ListByIndent lists the items of an indent
func (r *ItemRepository) ListByIndent(ctx context.Context, indentID string) ([]*domain.IndentItem, error) {
	var items []*domain.IndentItem
	query := `SELECT * FROM indent_items WHERE indent_id = $1 ORDER BY indent_item_id`
	if err := r.db.SelectContext(ctx, &items, query, indentID); err != nil {
		return nil, err
	}
	return items, nil
}

// Update updates the raised terms and denormalized summary of an item
func (r *ItemRepository) Update(ctx context.Context, item *domain.IndentItem) error {
	query := `
		UPDATE indent_items SET
			med_item_id = $2, vendor_code = $3, raised_quantity = $4,
			unit_price = $5, batch_no = $6, expiry_date = $7, available_stock = $8
		WHERE indent_item_id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		item.IndentItemID, item.MedItemID, item.VendorCode, item.RaisedQuantity,
		item.UnitPrice, item.BatchNo, item.ExpiryDate, item.AvailableStock,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFoundOrForbidden("indent item")
	}

	return nil
}

// SumOutstandingRaised sums the still-unfulfilled raised quantity for a
// medicine across live compounder indents in a plant. Raising a line
// reserves upstream stock even before any batch is issued against it;
// this query is the reservation side of the stock resolver.
// excludeItemID removes one item from the sum, used when re-validating an
// edit of that same item.
func (r *ItemRepository) SumOutstandingRaised(ctx context.Context, medItemID, plantID, excludeItemID string) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(it.raised_quantity - it.received_quantity) FROM indent_items it
		JOIN indents i ON i.indent_id = it.indent_id
		WHERE it.med_item_id = $1 AND i.plant_id = $2 AND i.tier = 'compounder'
		  AND i.status IN ('draft', 'pending', 'approved')
		  AND it.indent_item_id <> $3
	`
	if err := r.db.GetContext(ctx, &total, query, medItemID, plantID, excludeItemID); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// Delete deletes an item and its batches
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM indent_items WHERE indent_item_id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFoundOrForbidden("indent item")
	}

	return nil
}
