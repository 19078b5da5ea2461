package service_test

import (
	"context"
	"fmt"
	"sort"

	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/internal/indent/repository"
	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/medsupply/indent-backend/pkg/errors"
)

// fakeStore is an in-memory double for every persistence interface the
// services consume, faithful to the repository contracts: plant scoping,
// status guards and the upstream delta arithmetic behave like the SQL layer.
type fakeStore struct {
	indents map[string]*domain.Indent
	items   map[string]*domain.IndentItem
	batches map[string][]*domain.Batch
	meds    map[string]*repository.Medicine
	audits  []*repository.AuditEntry

	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		indents: map[string]*domain.Indent{},
		items:   map[string]*domain.IndentItem{},
		batches: map[string][]*domain.Batch{},
		meds:    map[string]*repository.Medicine{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// --- IndentStore ---

func (f *fakeStore) Create(ctx context.Context, ind *domain.Indent) error {
	if ind.IndentID == "" {
		ind.IndentID = f.id("ind")
	}
	cp := *ind
	f.indents[ind.IndentID] = &cp
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id, plantID string) (*domain.Indent, error) {
	ind, ok := f.indents[id]
	if !ok || ind.PlantID != plantID {
		return nil, errors.NotFoundOrForbidden("indent")
	}
	cp := *ind
	return &cp, nil
}

func (f *fakeStore) List(ctx context.Context, plantID string, tier domain.Tier, status domain.Status, page, perPage int) ([]*domain.Indent, int64, error) {
	var out []*domain.Indent
	for _, ind := range f.indents {
		if ind.PlantID != plantID {
			continue
		}
		if tier != "" && ind.Tier != tier {
			continue
		}
		if status != "" && ind.Status != status {
			continue
		}
		cp := *ind
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) Update(ctx context.Context, ind *domain.Indent) error {
	stored, ok := f.indents[ind.IndentID]
	if !ok || stored.PlantID != ind.PlantID {
		return errors.NotFoundOrForbidden("indent")
	}
	stored.IndentDate = ind.IndentDate
	stored.Comments = ind.Comments
	return nil
}

func (f *fakeStore) MarkSubmitted(ctx context.Context, ind *domain.Indent) error {
	stored, ok := f.indents[ind.IndentID]
	if !ok || stored.PlantID != ind.PlantID {
		return errors.NotFoundOrForbidden("indent")
	}
	if stored.Status != domain.StatusDraft {
		return nil
	}
	stored.Status = ind.Status
	stored.IndentDate = ind.IndentDate
	return nil
}

func (f *fakeStore) MarkDecided(ctx context.Context, ind *domain.Indent) error {
	stored, ok := f.indents[ind.IndentID]
	if !ok || stored.PlantID != ind.PlantID {
		return errors.NotFoundOrForbidden("indent")
	}
	if stored.Status != domain.StatusPending {
		return errors.Conflict("indent is not pending approval")
	}
	stored.Status = ind.Status
	stored.ApprovedBy = ind.ApprovedBy
	stored.ApprovedDate = ind.ApprovedDate
	stored.Comments = ind.Comments
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id, plantID string) error {
	ind, ok := f.indents[id]
	if !ok || ind.PlantID != plantID {
		return errors.NotFoundOrForbidden("indent")
	}
	delete(f.indents, id)
	for itemID, item := range f.items {
		if item.IndentID == id {
			delete(f.items, itemID)
			delete(f.batches, itemID)
		}
	}
	return nil
}

// --- ItemStore ---

func (f *fakeStore) CreateItem(ctx context.Context, item *domain.IndentItem) error {
	if item.IndentItemID == "" {
		item.IndentItemID = f.id("item")
	}
	cp := *item
	f.items[item.IndentItemID] = &cp
	return nil
}

func (f *fakeStore) GetItemByID(ctx context.Context, id, plantID string) (*domain.IndentItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, errors.NotFoundOrForbidden("indent item")
	}
	ind, indOK := f.indents[item.IndentID]
	if !indOK || ind.PlantID != plantID {
		return nil, errors.NotFoundOrForbidden("indent item")
	}
	cp := *item
	return &cp, nil
}

func (f *fakeStore) ListByIndent(ctx context.Context, indentID string) ([]*domain.IndentItem, error) {
	var out []*domain.IndentItem
	for _, item := range f.items {
		if item.IndentID == indentID {
			cp := *item
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IndentItemID < out[j].IndentItemID })
	return out, nil
}

func (f *fakeStore) UpdateItem(ctx context.Context, item *domain.IndentItem) error {
	stored, ok := f.items[item.IndentItemID]
	if !ok {
		return errors.NotFoundOrForbidden("indent item")
	}
	cp := *item
	cp.ReceivedQuantity = stored.ReceivedQuantity
	f.items[item.IndentItemID] = &cp
	return nil
}

func (f *fakeStore) SumOutstandingRaised(ctx context.Context, medItemID, plantID, excludeItemID string) (int, error) {
	total := 0
	for _, item := range f.items {
		if item.MedItemID != medItemID || item.IndentItemID == excludeItemID {
			continue
		}
		ind, ok := f.indents[item.IndentID]
		if !ok || ind.PlantID != plantID || ind.Tier != domain.TierCompounder {
			continue
		}
		if ind.Status == domain.StatusRejected {
			continue
		}
		total += item.RaisedQuantity - item.ReceivedQuantity
	}
	return total, nil
}

func (f *fakeStore) DeleteItem(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return errors.NotFoundOrForbidden("indent item")
	}
	delete(f.items, id)
	delete(f.batches, id)
	return nil
}

// --- BatchStore ---

func (f *fakeStore) ListByItem(ctx context.Context, itemID string) ([]*domain.Batch, error) {
	batches := f.batches[itemID]
	out := make([]*domain.Batch, 0, len(batches))
	for _, b := range batches {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out, nil
}

func (f *fakeStore) poolFor(medItemID, plantID string, tier domain.Tier) []*domain.Batch {
	var out []*domain.Batch
	for itemID, batches := range f.batches {
		item, ok := f.items[itemID]
		if !ok || item.MedItemID != medItemID {
			continue
		}
		ind, ok := f.indents[item.IndentID]
		if !ok || ind.PlantID != plantID || ind.Tier != tier {
			continue
		}
		if ind.Status != domain.StatusApproved && ind.Status != domain.StatusPending {
			continue
		}
		out = append(out, batches...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out
}

func (f *fakeStore) ListForMedicine(ctx context.Context, medItemID, plantID string, tier domain.Tier) ([]*domain.Batch, error) {
	var out []*domain.Batch
	for _, b := range f.poolFor(medItemID, plantID, tier) {
		if b.AvailableStock > 0 {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) SumAvailableForMedicine(ctx context.Context, medItemID, plantID string, tier domain.Tier) (int, error) {
	total := 0
	for _, b := range f.poolFor(medItemID, plantID, tier) {
		total += b.AvailableStock
	}
	return total, nil
}

func (f *fakeStore) GetExpiringBatches(ctx context.Context, plantID string, withinDays int) ([]*domain.Batch, error) {
	return nil, nil
}

func (f *fakeStore) ReplaceForItem(ctx context.Context, item *domain.IndentItem, batches []*domain.Batch, deltas []domain.BatchDelta, plantID string) error {
	// Validate every delta against the upstream pool before committing any
	// change, mirroring the transactional repository.
	type update struct {
		batch    *domain.Batch
		newStock int
	}
	var updates []update
	for _, d := range deltas {
		upstream := f.upstreamBatch(d.BatchNo, item.MedItemID, plantID)
		if upstream == nil {
			continue
		}
		newStock := upstream.AvailableStock - d.Delta
		if newStock < 0 {
			return errors.StockInsufficient(upstream.AvailableStock, d.Delta)
		}
		updates = append(updates, update{batch: upstream, newStock: newStock})
	}
	for _, u := range updates {
		u.batch.AvailableStock = u.newStock
	}

	received := 0
	stored := make([]*domain.Batch, 0, len(batches))
	for _, b := range batches {
		if b.BatchID == "" {
			b.BatchID = f.id("batch")
		}
		received += b.ReceivedQuantity
		cp := *b
		stored = append(stored, &cp)
	}
	f.batches[item.IndentItemID] = stored

	if storedItem, ok := f.items[item.IndentItemID]; ok {
		storedItem.ReceivedQuantity = received
		storedItem.BatchNo = item.BatchNo
		storedItem.ExpiryDate = item.ExpiryDate
		storedItem.AvailableStock = item.AvailableStock
	}
	item.ReceivedQuantity = received
	return nil
}

func (f *fakeStore) upstreamBatch(batchNo, medItemID, plantID string) *domain.Batch {
	for _, b := range f.poolFor(medItemID, plantID, domain.TierStore) {
		if b.BatchNo != batchNo {
			continue
		}
		// poolFor returns copies; find the stored row.
		for _, stored := range f.batches[b.IndentItemID] {
			if stored.BatchID == b.BatchID {
				return stored
			}
		}
	}
	return nil
}

// --- MedicineStore ---

func (f *fakeStore) GetMedicineByID(ctx context.Context, id string) (*repository.Medicine, error) {
	med, ok := f.meds[id]
	if !ok {
		return nil, errors.NotFoundOrForbidden("medicine")
	}
	return med, nil
}

func (f *fakeStore) ListMedicines(ctx context.Context) ([]*repository.Medicine, error) {
	var out []*repository.Medicine
	for _, med := range f.meds {
		out = append(out, med)
	}
	return out, nil
}

// --- AuditStore ---

func (f *fakeStore) CreateAudit(ctx context.Context, entry *repository.AuditEntry) error {
	f.audits = append(f.audits, entry)
	return nil
}

func (f *fakeStore) ListByEntity(ctx context.Context, plantID, module, entityID string, page, perPage int) ([]*repository.AuditEntry, int64, error) {
	var out []*repository.AuditEntry
	for _, entry := range f.audits {
		if entry.PlantID == plantID && entry.Module == module && entry.EntityID == entityID {
			out = append(out, entry)
		}
	}
	return out, int64(len(out)), nil
}

// Adapters: Create/GetByID/Update/Delete collide across the store
// interfaces, so the item, medicine and audit views get thin wrappers.

type fakeItemStore struct{ *fakeStore }

func (s fakeItemStore) Create(ctx context.Context, item *domain.IndentItem) error {
	return s.CreateItem(ctx, item)
}
func (s fakeItemStore) GetByID(ctx context.Context, id, plantID string) (*domain.IndentItem, error) {
	return s.GetItemByID(ctx, id, plantID)
}
func (s fakeItemStore) Update(ctx context.Context, item *domain.IndentItem) error {
	return s.UpdateItem(ctx, item)
}
func (s fakeItemStore) Delete(ctx context.Context, id string) error {
	return s.DeleteItem(ctx, id)
}

type fakeMedicineStore struct{ *fakeStore }

func (s fakeMedicineStore) GetByID(ctx context.Context, id string) (*repository.Medicine, error) {
	return s.GetMedicineByID(ctx, id)
}
func (s fakeMedicineStore) List(ctx context.Context) ([]*repository.Medicine, error) {
	return s.ListMedicines(ctx)
}

type fakeAuditStore struct{ *fakeStore }

func (s fakeAuditStore) Create(ctx context.Context, entry *repository.AuditEntry) error {
	return s.CreateAudit(ctx, entry)
}

// --- EventPublisher ---

type fakePublisher struct {
	events []string
}

func (p *fakePublisher) record(name string) { p.events = append(p.events, name) }

func (p *fakePublisher) IndentCreated(ctx context.Context, ind *domain.Indent, act actor.Actor) {
	p.record("indent.created")
}
func (p *fakePublisher) IndentUpdated(ctx context.Context, ind *domain.Indent, act actor.Actor) {
	p.record("indent.updated")
}
func (p *fakePublisher) IndentDeleted(ctx context.Context, ind *domain.Indent, act actor.Actor) {
	p.record("indent.deleted")
}
func (p *fakePublisher) IndentSubmitted(ctx context.Context, ind *domain.Indent, act actor.Actor) {
	p.record("indent.submitted")
}
func (p *fakePublisher) IndentDecided(ctx context.Context, ind *domain.Indent, act actor.Actor) {
	p.record("indent.decided")
}
func (p *fakePublisher) StockReconciled(ctx context.Context, item *domain.IndentItem, plantID string, deltas []domain.BatchDelta, act actor.Actor) {
	p.record("stock.reconciled")
}
func (p *fakePublisher) BatchesCleared(ctx context.Context, item *domain.IndentItem, plantID string, act actor.Actor) {
	p.record("stock.batches.cleared")
}
func (p *fakePublisher) AdvisoryOverridden(ctx context.Context, medItemID, plantID, selectedBatchNo, earliestBatchNo string, act actor.Actor) {
	p.record("stock.advisory.overridden")
}
func (p *fakePublisher) PrescriptionDispensed(ctx context.Context, prescriptionID, plantID, medItemID string, quantity int, act actor.Actor) {
	p.record("prescription.dispensed")
}
