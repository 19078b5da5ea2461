package domain_test

import (
	"testing"
	"time"

	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(offset int) time.Time {
	return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestCheckFIFOSelection(t *testing.T) {
	t.Run("later-expiring selection prompts", func(t *testing.T) {
		batches := []*domain.Batch{
			{BatchNo: "B-EARLY", ExpiryDate: day(10), AvailableStock: 5},
			{BatchNo: "B-LATE", ExpiryDate: day(90), AvailableStock: 8},
		}
		adv := domain.CheckFIFOSelection(batches, "B-LATE")
		assert.True(t, adv.RequiresPrompt)
		require.NotNil(t, adv.Earliest)
		assert.Equal(t, "B-EARLY", adv.Earliest.BatchNo)
		require.NotNil(t, adv.Selected)
		assert.Equal(t, "B-LATE", adv.Selected.BatchNo)
	})

	t.Run("earliest selection passes silently", func(t *testing.T) {
		batches := []*domain.Batch{
			{BatchNo: "B-EARLY", ExpiryDate: day(10), AvailableStock: 5},
			{BatchNo: "B-LATE", ExpiryDate: day(90), AvailableStock: 8},
		}
		adv := domain.CheckFIFOSelection(batches, "B-EARLY")
		assert.False(t, adv.RequiresPrompt)
	})

	t.Run("exhausted earlier batch does not prompt", func(t *testing.T) {
		// The earlier-expiring lot is empty, so issuing from the later one
		// is the FIFO choice.
		batches := []*domain.Batch{
			{BatchNo: "B-EARLY", ExpiryDate: day(10), AvailableStock: 0},
			{BatchNo: "B-LATE", ExpiryDate: day(90), AvailableStock: 8},
		}
		adv := domain.CheckFIFOSelection(batches, "B-LATE")
		assert.False(t, adv.RequiresPrompt)
	})

	t.Run("unknown selection never blocks", func(t *testing.T) {
		batches := []*domain.Batch{
			{BatchNo: "B-EARLY", ExpiryDate: day(10), AvailableStock: 5},
		}
		adv := domain.CheckFIFOSelection(batches, "B-MISSING")
		assert.False(t, adv.RequiresPrompt)
		assert.Nil(t, adv.Selected)
	})

	t.Run("empty pool", func(t *testing.T) {
		adv := domain.CheckFIFOSelection(nil, "B-001")
		assert.False(t, adv.RequiresPrompt)
	})
}

func TestAllocateFIFO(t *testing.T) {
	pool := func() []*domain.Batch {
		return []*domain.Batch{
			{BatchID: "id-1", BatchNo: "B-001", ExpiryDate: day(10), AvailableStock: 4},
			{BatchID: "id-2", BatchNo: "B-002", ExpiryDate: day(20), AvailableStock: 0},
			{BatchID: "id-3", BatchNo: "B-003", ExpiryDate: day(30), AvailableStock: 6},
		}
	}

	t.Run("spreads across earliest batches first", func(t *testing.T) {
		allocs, err := domain.AllocateFIFO(pool(), 7)
		require.NoError(t, err)
		require.Len(t, allocs, 2)
		assert.Equal(t, domain.Allocation{BatchID: "id-1", BatchNo: "B-001", Quantity: 4}, allocs[0])
		assert.Equal(t, domain.Allocation{BatchID: "id-3", BatchNo: "B-003", Quantity: 3}, allocs[1])
	})

	t.Run("single batch covers the draw", func(t *testing.T) {
		allocs, err := domain.AllocateFIFO(pool(), 3)
		require.NoError(t, err)
		require.Len(t, allocs, 1)
		assert.Equal(t, "id-1", allocs[0].BatchID)
	})

	t.Run("insufficient pool carries the numbers", func(t *testing.T) {
		_, err := domain.AllocateFIFO(pool(), 11)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "10 available, 11 requested")
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := domain.AllocateFIFO(pool(), 0)
		assert.Error(t, err)
	})
}
