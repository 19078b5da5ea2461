// Package domain holds the indent pipeline entities and the pure business
// rules that govern them: the approval state machine, the permission
// resolver, the batch delta arithmetic and the FIFO issue advisory.
//
// Nothing in this package touches persistence or transport. Operations
// receive explicit actors and return typed rejections from pkg/errors;
// the only faults that escape the core come from infrastructure below it.
package domain

import (
	"time"

	"github.com/medsupply/indent-backend/pkg/errors"
)

// Status is the lifecycle state of an indent.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the status ends the header lifecycle.
// Approved indents remain receivable at item/batch level; terminal only
// means no further header transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// IndentType labels as the legacy lists display them. The label is a pure
// projection of Status — the two can never disagree because only Status is
// stored.
const (
	TypeDraftIndent     = "Draft Indent"
	TypePendingIndents  = "Pending Indents"
	TypeApprovedIndents = "Approved Indents"
	TypeRejectedIndents = "Rejected Indents"
)

// IndentType projects the status onto its list label.
func (s Status) IndentType() string {
	switch s {
	case StatusDraft:
		return TypeDraftIndent
	case StatusPending:
		return TypePendingIndents
	case StatusApproved:
		return TypeApprovedIndents
	case StatusRejected:
		return TypeRejectedIndents
	}
	return ""
}

// StatusFromIndentType resolves a list label back to its status.
func StatusFromIndentType(label string) (Status, error) {
	switch label {
	case TypeDraftIndent:
		return StatusDraft, nil
	case TypePendingIndents:
		return StatusPending, nil
	case TypeApprovedIndents:
		return StatusApproved, nil
	case TypeRejectedIndents:
		return StatusRejected, nil
	}
	return "", errors.BadRequest("unknown indent type: " + label)
}

// Tier distinguishes the two sequential stock pools.
type Tier string

const (
	TierStore      Tier = "store"
	TierCompounder Tier = "compounder"
)

// Valid reports whether the tier is known.
func (t Tier) Valid() bool {
	return t == TierStore || t == TierCompounder
}

// ViewMode is the edit context a request operates in. Inventory modes treat
// indent items as on-hand stock rather than an open request, which changes
// the permission rules.
type ViewMode string

const (
	ModeDefault             ViewMode = "default"
	ModeInventory           ViewMode = "inventory"
	ModeCompounderInventory ViewMode = "compounder-inventory"
)

// Indent is the header entity for a store or compounder requisition.
type Indent struct {
	IndentID     string     `db:"indent_id" json:"indent_id"`
	PlantID      string     `db:"plant_id" json:"plant_id"`
	Tier         Tier       `db:"tier" json:"tier"`
	Status       Status     `db:"status" json:"status"`
	IndentDate   time.Time  `db:"indent_date" json:"indent_date"`
	CreatedBy    string     `db:"created_by" json:"created_by"`
	CreatedDate  time.Time  `db:"created_date" json:"created_date"`
	ApprovedBy   *string    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedDate *time.Time `db:"approved_date" json:"approved_date,omitempty"`
	Comments     *string    `db:"comments" json:"comments,omitempty"`

	Items []*IndentItem `db:"-" json:"items,omitempty"`
}

// IndentType returns the list label for the indent's status.
func (i *Indent) IndentType() string {
	return i.Status.IndentType()
}

// IsCreator reports whether the given username created the indent.
func (i *Indent) IsCreator(username string) bool {
	return username != "" && i.CreatedBy == username
}

// IndentItem is one medicine line within an indent.
type IndentItem struct {
	IndentItemID     string  `db:"indent_item_id" json:"indent_item_id"`
	IndentID         string  `db:"indent_id" json:"indent_id"`
	MedItemID        string  `db:"med_item_id" json:"med_item_id"`
	VendorCode       *string `db:"vendor_code" json:"vendor_code,omitempty"`
	RaisedQuantity   int     `db:"raised_quantity" json:"raised_quantity"`
	ReceivedQuantity int     `db:"received_quantity" json:"received_quantity"`
	UnitPrice        float64 `db:"unit_price" json:"unit_price"`

	// Denormalized batch summary, populated only for inventory-tier items.
	BatchNo        *string    `db:"batch_no" json:"batch_no,omitempty"`
	ExpiryDate     *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`
	AvailableStock *int       `db:"available_stock" json:"available_stock,omitempty"`
}

// PendingQuantity is the still-unfulfilled part of the raise, never negative.
func (it *IndentItem) PendingQuantity() int {
	p := it.RaisedQuantity - it.ReceivedQuantity
	if p < 0 {
		return 0
	}
	return p
}

// TotalAmount is the value of the fulfilled part of the line.
func (it *IndentItem) TotalAmount() float64 {
	return it.UnitPrice * float64(it.ReceivedQuantity)
}

// IsReceived reports whether any quantity has been received against the line.
// A received store-tier item is permission-locked: its raised terms can no
// longer change retroactively.
func (it *IndentItem) IsReceived() bool {
	return it.ReceivedQuantity > 0
}

// Validate checks the item quantity invariants.
func (it *IndentItem) Validate() error {
	details := map[string]string{}
	if it.MedItemID == "" {
		details["med_item_id"] = "this field is required"
	}
	if it.RaisedQuantity <= 0 {
		details["raised_quantity"] = "must be greater than zero"
	}
	if it.ReceivedQuantity < 0 {
		details["received_quantity"] = "must not be negative"
	}
	if it.ReceivedQuantity > it.RaisedQuantity {
		details["received_quantity"] = "must not exceed the raised quantity"
	}
	if it.AvailableStock != nil && *it.AvailableStock > it.ReceivedQuantity {
		details["available_stock"] = "must not exceed the received quantity"
	}
	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

// Batch is one expiry-dated lot received against an indent item. Identity is
// row-based: the same BatchNo may appear in several rows when stock was
// re-received from upstream on different occasions.
type Batch struct {
	BatchID          string    `db:"batch_id" json:"batch_id"`
	IndentItemID     string    `db:"indent_item_id" json:"indent_item_id"`
	BatchNo          string    `db:"batch_no" json:"batch_no"`
	ExpiryDate       time.Time `db:"expiry_date" json:"expiry_date"`
	ReceivedQuantity int       `db:"received_quantity" json:"received_quantity"`
	VendorCode       *string   `db:"vendor_code" json:"vendor_code,omitempty"`
	AvailableStock   int       `db:"available_stock" json:"available_stock"`
}

// ValidateBatchSet checks the item-level batch invariants:
// the received total must stay within the raise, and the available total
// within the received total.
func ValidateBatchSet(item *IndentItem, batches []*Batch) error {
	received, available := 0, 0
	for _, b := range batches {
		received += b.ReceivedQuantity
		available += b.AvailableStock
	}
	if received > item.RaisedQuantity {
		return errors.Validation(map[string]string{
			"batches": "total received quantity exceeds the raised quantity",
		})
	}
	if available > received {
		return errors.Validation(map[string]string{
			"batches": "total available stock exceeds the total received quantity",
		})
	}
	return nil
}

// ItemSummary condenses the receipt state of an indent's item set, the
// input the permission resolver needs beyond the header itself.
type ItemSummary struct {
	HasItems     bool
	AllReceived  bool
	NoneReceived bool
}

// SummarizeItems derives the receipt summary from an item set.
func SummarizeItems(items []*IndentItem) ItemSummary {
	s := ItemSummary{
		HasItems:     len(items) > 0,
		AllReceived:  len(items) > 0,
		NoneReceived: true,
	}
	for _, it := range items {
		if it.PendingQuantity() > 0 {
			s.AllReceived = false
		}
		if it.IsReceived() {
			s.NoneReceived = false
		}
	}
	return s
}
