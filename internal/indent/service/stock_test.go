package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/medsupply/indent-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedCompounderItem adds a pending compounder indent with one unreceived
// line for med-1 to the fixture plant.
func seedCompounderItem(f *fixture, raised int) {
	f.store.indents["comp-ind"] = &domain.Indent{
		IndentID: "comp-ind", PlantID: "plant-1", Tier: domain.TierCompounder,
		Status: domain.StatusPending, CreatedBy: "comp1",
	}
	f.store.items["comp-item"] = &domain.IndentItem{
		IndentItemID: "comp-item", IndentID: "comp-ind", MedItemID: "med-1",
		RaisedQuantity: raised,
	}
}

func upstreamAvailable(f *fixture) int {
	total := 0
	for _, b := range f.store.batches["store-item"] {
		total += b.AvailableStock
	}
	return total
}

func TestSaveBatches_IssueAndCorrect(t *testing.T) {
	f := newFixture(t)
	seedCompounderItem(f, 10)
	ctx := context.Background()
	expiry := time.Now().AddDate(1, 0, 0)

	// Receive 10 from the upstream lot B-001.
	item, batches, err := f.stock.SaveBatches(ctx, compounderActor, "comp-item", domain.ModeDefault, []domain.BatchRow{
		{BatchNo: "B-001", ExpiryDate: expiry, ReceivedQuantity: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, item.ReceivedQuantity)
	require.Len(t, batches, 1)
	assert.Equal(t, 10, batches[0].AvailableStock)
	assert.Equal(t, 90, upstreamAvailable(f))
	assert.Contains(t, f.publisher.events, "stock.reconciled")

	// Reading the batches back returns exactly what was saved.
	stored, err := f.stock.BatchesForItem(ctx, compounderActor, "comp-item")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "B-001", stored[0].BatchNo)
	assert.True(t, stored[0].ExpiryDate.Equal(expiry))
	assert.Equal(t, 10, stored[0].ReceivedQuantity)
	assert.Equal(t, 10, stored[0].AvailableStock)

	// Correct the receipt down to 4: the upstream lot gets 6 back.
	item, _, err = f.stock.SaveBatches(ctx, compounderActor, "comp-item", domain.ModeDefault, []domain.BatchRow{
		{BatchNo: "B-001", ExpiryDate: expiry, ReceivedQuantity: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, item.ReceivedQuantity)
	assert.Equal(t, 96, upstreamAvailable(f))
}

func TestSaveBatches_InsufficientUpstream(t *testing.T) {
	f := newFixture(t)
	seedCompounderItem(f, 150)
	ctx := context.Background()

	_, _, err := f.stock.SaveBatches(ctx, compounderActor, "comp-item", domain.ModeDefault, []domain.BatchRow{
		{BatchNo: "B-001", ExpiryDate: time.Now().AddDate(1, 0, 0), ReceivedQuantity: 150},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStockInsufficient))
	assert.Contains(t, err.Error(), "100 available, 150 requested")

	// Nothing moved and nothing was written.
	assert.Equal(t, 100, upstreamAvailable(f))
	assert.Empty(t, f.store.batches["comp-item"])
	assert.Equal(t, 0, f.store.items["comp-item"].ReceivedQuantity)
}

func TestSaveBatches_UnknownBatchNumberIsVendorReceipt(t *testing.T) {
	f := newFixture(t)
	seedCompounderItem(f, 10)

	// A batch number with no upstream lot moves no store stock.
	item, _, err := f.stock.SaveBatches(context.Background(), compounderActor, "comp-item", domain.ModeDefault, []domain.BatchRow{
		{BatchNo: "EXT-77", ExpiryDate: time.Now().AddDate(1, 0, 0), ReceivedQuantity: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, item.ReceivedQuantity)
	assert.Equal(t, 100, upstreamAvailable(f))
}

func TestSaveBatches_ClearAll(t *testing.T) {
	f := newFixture(t)
	seedCompounderItem(f, 10)
	ctx := context.Background()

	_, _, err := f.stock.SaveBatches(ctx, compounderActor, "comp-item", domain.ModeDefault, []domain.BatchRow{
		{BatchNo: "B-001", ExpiryDate: time.Now().AddDate(1, 0, 0), ReceivedQuantity: 10},
	})
	require.NoError(t, err)
	require.Equal(t, 90, upstreamAvailable(f))

	item, batches, err := f.stock.SaveBatches(ctx, compounderActor, "comp-item", domain.ModeDefault, nil)
	require.NoError(t, err)
	assert.Empty(t, batches)
	assert.Equal(t, 0, item.ReceivedQuantity)
	assert.Nil(t, item.BatchNo)
	assert.Equal(t, 100, upstreamAvailable(f))
	assert.Contains(t, f.publisher.events, "stock.batches.cleared")
}

func TestSaveBatches_OverRaise(t *testing.T) {
	f := newFixture(t)
	seedCompounderItem(f, 10)

	_, _, err := f.stock.SaveBatches(context.Background(), compounderActor, "comp-item", domain.ModeDefault, []domain.BatchRow{
		{BatchNo: "B-001", ExpiryDate: time.Now().AddDate(1, 0, 0), ReceivedQuantity: 11},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestSaveBatches_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	seedCompounderItem(f, 10)

	stranger := actor.Actor{Username: "other", Role: actor.RoleOthers, PlantID: "plant-1"}
	_, _, err := f.stock.SaveBatches(context.Background(), stranger, "comp-item", domain.ModeDefault, []domain.BatchRow{
		{BatchNo: "B-001", ExpiryDate: time.Now().AddDate(1, 0, 0), ReceivedQuantity: 1},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPermissionDenied))
}

func TestCheckBatchSelection(t *testing.T) {
	f := newFixture(t)

	// Add a second, earlier-expiring store lot for the same medicine.
	f.store.batches["store-item"] = append(f.store.batches["store-item"], &domain.Batch{
		BatchID: "store-batch-2", IndentItemID: "store-item", BatchNo: "B-000",
		ExpiryDate:       time.Now().AddDate(0, 1, 0),
		ReceivedQuantity: 20, AvailableStock: 20,
	})

	adv, err := f.stock.CheckBatchSelection(context.Background(), storeActor, "med-1", domain.TierStore, "B-001")
	require.NoError(t, err)
	assert.True(t, adv.RequiresPrompt)
	require.NotNil(t, adv.Earliest)
	assert.Equal(t, "B-000", adv.Earliest.BatchNo)

	adv, err = f.stock.CheckBatchSelection(context.Background(), storeActor, "med-1", domain.TierStore, "B-000")
	require.NoError(t, err)
	assert.False(t, adv.RequiresPrompt)
}

func TestConfirmAdvisoryOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.stock.ConfirmAdvisoryOverride(ctx, storeActor, "med-1", "B-001", "B-000", true)
	require.NotEmpty(t, f.store.audits)
	assert.Equal(t, "override_confirmed", f.store.audits[len(f.store.audits)-1].Action)
	assert.Contains(t, f.publisher.events, "stock.advisory.overridden")

	before := len(f.publisher.events)
	f.stock.ConfirmAdvisoryOverride(ctx, storeActor, "med-1", "B-001", "B-000", false)
	assert.Equal(t, "override_declined", f.store.audits[len(f.store.audits)-1].Action)
	assert.Len(t, f.publisher.events, before)
}

func TestAvailability(t *testing.T) {
	f := newFixture(t)

	available, err := f.stock.Availability(context.Background(), compounderActor, "med-1", domain.TierStore)
	require.NoError(t, err)
	assert.Equal(t, 100, available)
}
