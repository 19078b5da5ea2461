package service

import (
	"context"
	"fmt"
	"time"

	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/medsupply/indent-backend/pkg/errors"
	"github.com/medsupply/indent-backend/pkg/logger"
)

// IndentService orchestrates the indent lifecycle: creation, item
// maintenance, submission and approval. All rule decisions are delegated to
// the domain package; this layer loads state, gates on the resolved
// permissions and persists the outcome, then hands the produced events to
// the audit sink and the publisher.
type IndentService struct {
	indents   IndentStore
	items     ItemStore
	batches   BatchStore
	medicines MedicineStore
	audit     *AuditService
	publisher EventPublisher
	logger    *logger.Logger
	now       func() time.Time
}

// NewIndentService creates a new indent service
func NewIndentService(indents IndentStore, items ItemStore, batches BatchStore, medicines MedicineStore, audit *AuditService, publisher EventPublisher, log *logger.Logger) *IndentService {
	return &IndentService{
		indents:   indents,
		items:     items,
		batches:   batches,
		medicines: medicines,
		audit:     audit,
		publisher: publisher,
		logger:    log.WithComponent("indent_service"),
		now:       time.Now,
	}
}

// ItemInput carries the raised terms of one medicine line.
type ItemInput struct {
	MedItemID      string
	VendorCode     *string
	RaisedQuantity int
	UnitPrice      float64
}

// CreateIndentInput carries a new indent with its initial lines.
type CreateIndentInput struct {
	Tier     domain.Tier
	Comments *string
	Items    []ItemInput
}

// UpdateIndentInput carries the mutable header fields.
type UpdateIndentInput struct {
	IndentDate *time.Time
	Comments   *string
}

// CreateIndent creates a draft indent with its initial items. Compounder
// lines are stock-checked against the store pool before anything is written:
// raising a line reserves upstream availability, so the check accounts for
// every other outstanding raise as well as earlier lines of this request.
func (s *IndentService) CreateIndent(ctx context.Context, act actor.Actor, in CreateIndentInput) (*domain.Indent, error) {
	if err := requireRequester(act, in.Tier); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, errors.Validation(map[string]string{"items": "at least one item is required"})
	}

	now := s.now()
	ind := &domain.Indent{
		PlantID:    act.PlantID,
		Tier:       in.Tier,
		Status:     domain.StatusDraft,
		IndentDate: now,
		CreatedBy:  act.Username,
		Comments:   in.Comments,
	}

	requestedByMed := map[string]int{}
	items := make([]*domain.IndentItem, 0, len(in.Items))
	for _, itemIn := range in.Items {
		item := itemFromInput(itemIn)
		if err := item.Validate(); err != nil {
			return nil, err
		}
		if _, err := s.medicines.GetByID(ctx, item.MedItemID); err != nil {
			return nil, err
		}
		if in.Tier == domain.TierCompounder {
			if err := s.requireStock(ctx, act.PlantID, item.MedItemID, "", item.RaisedQuantity+requestedByMed[item.MedItemID]); err != nil {
				return nil, err
			}
		}
		requestedByMed[item.MedItemID] += item.RaisedQuantity
		items = append(items, item)
	}

	if err := s.indents.Create(ctx, ind); err != nil {
		return nil, err
	}
	for _, item := range items {
		item.IndentID = ind.IndentID
		if err := s.items.Create(ctx, item); err != nil {
			return nil, err
		}
	}
	ind.Items = items

	s.audit.Record(ctx, act.PlantID, []domain.Event{{
		Module:   domain.ModuleForTier(ind.Tier),
		Action:   "create",
		EntityID: ind.IndentID,
		After:    ind.IndentType(),
		Message:  fmt.Sprintf("indent created with %d items", len(items)),
		Actor:    act.Username,
	}})
	s.publisher.IndentCreated(ctx, ind, act)

	return ind, nil
}

// GetIndent loads an indent with its items and resolves the caller's
// header permissions for the given view mode.
func (s *IndentService) GetIndent(ctx context.Context, act actor.Actor, id string, mode domain.ViewMode) (*domain.Indent, domain.Permissions, error) {
	ind, items, err := s.load(ctx, act, id)
	if err != nil {
		return nil, domain.Permissions{}, err
	}
	perms := domain.Resolve(act.Role, ind.IsCreator(act.Username), ind, mode, domain.SummarizeItems(items))
	return ind, perms, nil
}

// ListIndents lists the plant's indents for a tier, optionally filtered to
// one lifecycle state.
func (s *IndentService) ListIndents(ctx context.Context, act actor.Actor, tier domain.Tier, status domain.Status, page, perPage int) ([]*domain.Indent, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, errors.Validation(map[string]string{"status": "unknown status"})
	}
	return s.indents.List(ctx, act.PlantID, tier, status, page, perPage)
}

// UpdateIndent updates the mutable header fields of an indent.
func (s *IndentService) UpdateIndent(ctx context.Context, act actor.Actor, id string, mode domain.ViewMode, in UpdateIndentInput) (*domain.Indent, error) {
	ind, items, err := s.load(ctx, act, id)
	if err != nil {
		return nil, err
	}

	perms := domain.Resolve(act.Role, ind.IsCreator(act.Username), ind, mode, domain.SummarizeItems(items))
	if err := domain.RequireEdit(perms, act, ind); err != nil {
		return nil, err
	}

	if in.IndentDate != nil {
		ind.IndentDate = *in.IndentDate
	}
	if in.Comments != nil {
		ind.Comments = in.Comments
	}

	if err := s.indents.Update(ctx, ind); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, act.PlantID, []domain.Event{{
		Module:   domain.ModuleForTier(ind.Tier),
		Action:   "update",
		EntityID: ind.IndentID,
		After:    ind.IndentType(),
		Message:  "indent header updated",
		Actor:    act.Username,
	}})
	s.publisher.IndentUpdated(ctx, ind, act)

	return ind, nil
}

// DeleteIndent deletes an indent with its items and batches. Issued stock on
// compounder items is returned upstream first, line by line, so a delete
// never strands availability.
func (s *IndentService) DeleteIndent(ctx context.Context, act actor.Actor, id string, mode domain.ViewMode) error {
	ind, items, err := s.load(ctx, act, id)
	if err != nil {
		return err
	}

	perms := domain.Resolve(act.Role, ind.IsCreator(act.Username), ind, mode, domain.SummarizeItems(items))
	if err := domain.RequireDelete(perms, act, ind); err != nil {
		return err
	}

	if ind.Tier == domain.TierCompounder {
		for _, item := range items {
			if err := s.returnIssuedStock(ctx, act, item); err != nil {
				return err
			}
		}
	}

	if err := s.indents.Delete(ctx, id, act.PlantID); err != nil {
		return err
	}

	s.audit.Record(ctx, act.PlantID, []domain.Event{{
		Module:   domain.ModuleForTier(ind.Tier),
		Action:   "delete",
		EntityID: ind.IndentID,
		Before:   ind.IndentType(),
		Message:  "indent deleted",
		Actor:    act.Username,
	}})
	s.publisher.IndentDeleted(ctx, ind, act)

	return nil
}

// AddItem appends a line to an indent.
func (s *IndentService) AddItem(ctx context.Context, act actor.Actor, indentID string, mode domain.ViewMode, in ItemInput) (*domain.IndentItem, error) {
	ind, items, err := s.load(ctx, act, indentID)
	if err != nil {
		return nil, err
	}

	perms := domain.Resolve(act.Role, ind.IsCreator(act.Username), ind, mode, domain.SummarizeItems(items))
	if err := domain.RequireEdit(perms, act, ind); err != nil {
		return nil, err
	}

	item := itemFromInput(in)
	item.IndentID = ind.IndentID
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.medicines.GetByID(ctx, item.MedItemID); err != nil {
		return nil, err
	}
	if ind.Tier == domain.TierCompounder {
		if err := s.requireStock(ctx, act.PlantID, item.MedItemID, "", item.RaisedQuantity); err != nil {
			return nil, err
		}
	}

	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, act.PlantID, []domain.Event{{
		Module:   domain.ModuleForTier(ind.Tier),
		Action:   "item_add",
		EntityID: ind.IndentID,
		Message:  fmt.Sprintf("item added: %s x%d", item.MedItemID, item.RaisedQuantity),
		Actor:    act.Username,
	}})
	s.publisher.IndentUpdated(ctx, ind, act)

	return item, nil
}

// UpdateItem changes the raised terms of a line.
func (s *IndentService) UpdateItem(ctx context.Context, act actor.Actor, itemID string, mode domain.ViewMode, in ItemInput) (*domain.IndentItem, error) {
	item, err := s.items.GetByID(ctx, itemID, act.PlantID)
	if err != nil {
		return nil, err
	}
	ind, items, err := s.load(ctx, act, item.IndentID)
	if err != nil {
		return nil, err
	}

	perms := domain.ResolveItem(act.Role, ind.IsCreator(act.Username), ind, mode, item, domain.SummarizeItems(items))
	if err := domain.RequireEdit(perms, act, ind); err != nil {
		return nil, err
	}

	item.MedItemID = in.MedItemID
	item.VendorCode = in.VendorCode
	item.RaisedQuantity = in.RaisedQuantity
	item.UnitPrice = in.UnitPrice
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.medicines.GetByID(ctx, item.MedItemID); err != nil {
		return nil, err
	}
	if ind.Tier == domain.TierCompounder {
		// The item's own outstanding raise is excluded: only the change in
		// demand competes for the remaining pool.
		if err := s.requireStock(ctx, act.PlantID, item.MedItemID, item.IndentItemID, item.PendingQuantity()); err != nil {
			return nil, err
		}
	}

	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, act.PlantID, []domain.Event{{
		Module:   domain.ModuleForTier(ind.Tier),
		Action:   "item_update",
		EntityID: ind.IndentID,
		Message:  fmt.Sprintf("item updated: %s x%d", item.MedItemID, item.RaisedQuantity),
		Actor:    act.Username,
	}})
	s.publisher.IndentUpdated(ctx, ind, act)

	return item, nil
}

// DeleteItem removes a line, returning any issued stock upstream first.
func (s *IndentService) DeleteItem(ctx context.Context, act actor.Actor, itemID string, mode domain.ViewMode) error {
	item, err := s.items.GetByID(ctx, itemID, act.PlantID)
	if err != nil {
		return err
	}
	ind, items, err := s.load(ctx, act, item.IndentID)
	if err != nil {
		return err
	}

	perms := domain.ResolveItem(act.Role, ind.IsCreator(act.Username), ind, mode, item, domain.SummarizeItems(items))
	if err := domain.RequireDelete(perms, act, ind); err != nil {
		return err
	}

	if ind.Tier == domain.TierCompounder {
		if err := s.returnIssuedStock(ctx, act, item); err != nil {
			return err
		}
	}
	if err := s.items.Delete(ctx, itemID); err != nil {
		return err
	}

	s.audit.Record(ctx, act.PlantID, []domain.Event{{
		Module:   domain.ModuleForTier(ind.Tier),
		Action:   "item_delete",
		EntityID: ind.IndentID,
		Message:  fmt.Sprintf("item removed: %s", item.MedItemID),
		Actor:    act.Username,
	}})
	s.publisher.IndentUpdated(ctx, ind, act)

	return nil
}

// Submit moves a draft indent to pending. Submitting an indent that already
// left draft is a no-op and returns the indent unchanged.
func (s *IndentService) Submit(ctx context.Context, act actor.Actor, id string) (*domain.Indent, error) {
	ind, err := s.indents.GetByID(ctx, id, act.PlantID)
	if err != nil {
		return nil, err
	}

	events, err := domain.Submit(ind, act, s.now())
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return ind, nil
	}

	if err := s.indents.MarkSubmitted(ctx, ind); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, act.PlantID, events)
	s.publisher.IndentSubmitted(ctx, ind, act)

	return ind, nil
}

// Decide approves or rejects a pending indent. The decision comment is
// mandatory. Repeating a decision on a settled indent yields the same
// conflict every time and never moves stock.
func (s *IndentService) Decide(ctx context.Context, act actor.Actor, id string, decision domain.Status, comments string) (*domain.Indent, error) {
	ind, err := s.indents.GetByID(ctx, id, act.PlantID)
	if err != nil {
		return nil, err
	}

	events, err := domain.Decide(ind, decision, comments, act, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.indents.MarkDecided(ctx, ind); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, act.PlantID, events)
	s.publisher.IndentDecided(ctx, ind, act)

	return ind, nil
}

// ReasonedItemInput carries the doctor-mediated stock corrections.
type ReasonedItemInput struct {
	AvailableStock *int
	UnitPrice      *float64
	VendorCode     *string
}

// EditItemWithReason applies a doctor's correction to an approved compounder
// inventory item. The reason is mandatory and lands verbatim in the audit
// trail.
func (s *IndentService) EditItemWithReason(ctx context.Context, act actor.Actor, itemID string, mode domain.ViewMode, reason string, in ReasonedItemInput) (*domain.IndentItem, error) {
	item, err := s.items.GetByID(ctx, itemID, act.PlantID)
	if err != nil {
		return nil, err
	}
	ind, err := s.indents.GetByID(ctx, item.IndentID, act.PlantID)
	if err != nil {
		return nil, err
	}

	if !domain.CanDoctorEditWithReason(act.Role, ind, mode) {
		return nil, errors.PermissionDenied("reasoned edits apply to approved compounder inventory items only", map[string]string{
			"role":   string(act.Role),
			"status": string(ind.Status),
			"mode":   string(mode),
		})
	}
	if err := domain.ValidateComments(reason); err != nil {
		return nil, err
	}

	before := item.AvailableStock
	if in.AvailableStock != nil {
		item.AvailableStock = in.AvailableStock
	}
	if in.UnitPrice != nil {
		item.UnitPrice = *in.UnitPrice
	}
	if in.VendorCode != nil {
		item.VendorCode = in.VendorCode
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, act.PlantID, []domain.Event{{
		Module:   domain.ModuleCompounderIndent,
		Action:   "item_edit_with_reason",
		EntityID: ind.IndentID,
		Before:   stockLabel(before),
		After:    stockLabel(item.AvailableStock),
		Message:  reason,
		Actor:    act.Username,
	}})
	s.publisher.IndentUpdated(ctx, ind, act)

	return item, nil
}

// load fetches an indent and its items in the caller's plant.
func (s *IndentService) load(ctx context.Context, act actor.Actor, id string) (*domain.Indent, []*domain.IndentItem, error) {
	ind, err := s.indents.GetByID(ctx, id, act.PlantID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.items.ListByIndent(ctx, ind.IndentID)
	if err != nil {
		return nil, nil, err
	}
	ind.Items = items
	return ind, items, nil
}

// requireStock checks a compounder raise against the store pool minus every
// outstanding compounder reservation.
func (s *IndentService) requireStock(ctx context.Context, plantID, medItemID, excludeItemID string, requested int) error {
	if requested <= 0 {
		return nil
	}
	upstream, err := s.batches.SumAvailableForMedicine(ctx, medItemID, plantID, domain.TierStore)
	if err != nil {
		return err
	}
	outstanding, err := s.items.SumOutstandingRaised(ctx, medItemID, plantID, excludeItemID)
	if err != nil {
		return err
	}
	available := upstream - outstanding
	if available < 0 {
		available = 0
	}
	if requested > available {
		return errors.StockInsufficient(available, requested)
	}
	return nil
}

// returnIssuedStock clears an item's batch set, which moves every issued
// quantity back onto its upstream store batch.
func (s *IndentService) returnIssuedStock(ctx context.Context, act actor.Actor, item *domain.IndentItem) error {
	prev, err := s.batches.ListByItem(ctx, item.IndentItemID)
	if err != nil {
		return err
	}
	if len(prev) == 0 {
		return nil
	}
	deltas := domain.ComputeDeltas(domain.TotalsByBatchNo(prev), nil)
	item.BatchNo = nil
	item.ExpiryDate = nil
	item.AvailableStock = nil
	return s.batches.ReplaceForItem(ctx, item, nil, deltas, act.PlantID)
}

func requireRequester(act actor.Actor, tier domain.Tier) error {
	if !tier.Valid() {
		return errors.Validation(map[string]string{"tier": "must be store or compounder"})
	}
	switch {
	case tier == domain.TierStore && act.Role == actor.RoleStore:
		return nil
	case tier == domain.TierCompounder && act.Role == actor.RoleCompounder:
		return nil
	}
	return errors.PermissionDenied("only the requesting role may raise indents at this tier", map[string]string{
		"role": string(act.Role),
		"tier": string(tier),
	})
}

func itemFromInput(in ItemInput) *domain.IndentItem {
	return &domain.IndentItem{
		MedItemID:      in.MedItemID,
		VendorCode:     in.VendorCode,
		RaisedQuantity: in.RaisedQuantity,
		UnitPrice:      in.UnitPrice,
	}
}

func stockLabel(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("available_stock=%d", *v)
}
