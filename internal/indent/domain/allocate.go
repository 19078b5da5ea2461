package domain

import "github.com/medsupply/indent-backend/pkg/errors"

// Allocation is a draw of quantity from one specific batch row.
type Allocation struct {
	BatchID  string `json:"batch_id"`
	BatchNo  string `json:"batch_no"`
	Quantity int    `json:"quantity"`
}

// AllocateFIFO spreads a requested quantity across batches in
// earliest-expiry-first order. The input must already be sorted by expiry
// (the repositories return it that way). Batches without available stock
// are skipped. When the pool cannot cover the request the allocation fails
// with a StockInsufficient rejection carrying the shortfall numbers.
func AllocateFIFO(batches []*Batch, quantity int) ([]Allocation, error) {
	if quantity <= 0 {
		return nil, errors.Validation(map[string]string{
			"quantity": "must be greater than zero",
		})
	}

	available := 0
	for _, b := range batches {
		if b.AvailableStock > 0 {
			available += b.AvailableStock
		}
	}
	if available < quantity {
		return nil, errors.StockInsufficient(available, quantity)
	}

	remaining := quantity
	var allocations []Allocation
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		if b.AvailableStock <= 0 {
			continue
		}
		take := b.AvailableStock
		if take > remaining {
			take = remaining
		}
		allocations = append(allocations, Allocation{
			BatchID:  b.BatchID,
			BatchNo:  b.BatchNo,
			Quantity: take,
		})
		remaining -= take
	}

	return allocations, nil
}
