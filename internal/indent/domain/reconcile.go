package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/medsupply/indent-backend/pkg/errors"
)

// BatchRow is one incoming row of a batch save. The full batch set of an
// item is replaced wholesale on each save; rows with the same BatchNo
// represent repeated partial issuance from the same upstream lot.
type BatchRow struct {
	BatchNo          string    `json:"batch_no"`
	ExpiryDate       time.Time `json:"expiry_date"`
	ReceivedQuantity int       `json:"received_quantity"`
	VendorCode       *string   `json:"vendor_code,omitempty"`
}

// BatchDelta is the net stock movement for one batch number between the
// previous and the new batch set. A positive delta consumes upstream stock,
// a negative delta returns it.
type BatchDelta struct {
	BatchNo string
	Delta   int
}

// ValidateBatchRows checks every incoming row before anything is written.
// An empty row list is valid: it is the clear-all operation.
func ValidateBatchRows(rows []BatchRow, raisedQuantity int, today time.Time) error {
	day := today.Truncate(24 * time.Hour)
	total := 0
	for i, row := range rows {
		if row.BatchNo == "" {
			return errors.Validation(map[string]string{
				fmt.Sprintf("rows[%d].batch_no", i): "this field is required",
			})
		}
		if row.ReceivedQuantity <= 0 {
			return errors.Validation(map[string]string{
				fmt.Sprintf("rows[%d].received_quantity", i): "must be greater than zero",
			})
		}
		if row.ExpiryDate.Truncate(24 * time.Hour).Before(day) {
			return errors.Validation(map[string]string{
				fmt.Sprintf("rows[%d].expiry_date", i): "must not be in the past",
			})
		}
		total += row.ReceivedQuantity
	}
	if total > raisedQuantity {
		return errors.Validation(map[string]string{
			"rows": fmt.Sprintf("total received quantity %d exceeds raised quantity %d", total, raisedQuantity),
		})
	}
	return nil
}

// TotalsByBatchNo sums received quantity per batch number over an existing
// batch set.
func TotalsByBatchNo(batches []*Batch) map[string]int {
	totals := make(map[string]int, len(batches))
	for _, b := range batches {
		totals[b.BatchNo] += b.ReceivedQuantity
	}
	return totals
}

// RowTotalsByBatchNo sums received quantity per batch number over incoming
// rows.
func RowTotalsByBatchNo(rows []BatchRow) map[string]int {
	totals := make(map[string]int, len(rows))
	for _, row := range rows {
		totals[row.BatchNo] += row.ReceivedQuantity
	}
	return totals
}

// ComputeDeltas diffs the new per-batch totals against the previous ones.
// Every batch number present in either set is considered; zero deltas are
// dropped. The result is ordered by batch number so the upstream stock
// updates apply deterministically.
//
// Clearing all batches is the degenerate case: next is empty and every
// previously tracked batch number yields a negative delta, returning its
// full issued quantity upstream.
func ComputeDeltas(previous, next map[string]int) []BatchDelta {
	seen := make(map[string]struct{}, len(previous)+len(next))
	var deltas []BatchDelta

	add := func(batchNo string) {
		if _, ok := seen[batchNo]; ok {
			return
		}
		seen[batchNo] = struct{}{}
		d := next[batchNo] - previous[batchNo]
		if d != 0 {
			deltas = append(deltas, BatchDelta{BatchNo: batchNo, Delta: d})
		}
	}

	for batchNo := range previous {
		add(batchNo)
	}
	for batchNo := range next {
		add(batchNo)
	}

	sort.Slice(deltas, func(i, j int) bool { return deltas[i].BatchNo < deltas[j].BatchNo })
	return deltas
}

// BatchesFromRows materializes the replacement batch set for an item.
// Each row starts with its full received quantity still available.
func BatchesFromRows(itemID string, rows []BatchRow) []*Batch {
	batches := make([]*Batch, 0, len(rows))
	for _, row := range rows {
		batches = append(batches, &Batch{
			IndentItemID:     itemID,
			BatchNo:          row.BatchNo,
			ExpiryDate:       row.ExpiryDate,
			ReceivedQuantity: row.ReceivedQuantity,
			VendorCode:       row.VendorCode,
			AvailableStock:   row.ReceivedQuantity,
		})
	}
	return batches
}
