package domain

import (
	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/medsupply/indent-backend/pkg/errors"
)

// Permissions is the outcome of resolving what an actor may do to an indent
// or one of its items.
type Permissions struct {
	CanEdit    bool `json:"can_edit"`
	CanDelete  bool `json:"can_delete"`
	CanApprove bool `json:"can_approve"`
}

// Resolve computes header-level permissions. It is a pure function of the
// role, ownership, indent state, view mode and item receipt summary, and is
// re-derived identically wherever a mutation is gated.
//
// Precedence, first match wins:
//
//  1. Doctors are review-only: approve pending indents outside inventory
//     mode, never edit or delete. The doctor-mediated "edit with reason"
//     path on approved compounder inventory is resolved separately via
//     CanDoctorEditWithReason.
//  2. A store user in inventory mode maintains on-hand stock: edit/delete
//     whenever the indent has items, regardless of status, never approve.
//  3. Compounder inventory is store-origin stock: read-only for everyone
//     else (store-role maintenance is covered by rule 2).
//  4. Otherwise the draft/pending ownership rules apply.
func Resolve(role actor.Role, isCreator bool, ind *Indent, mode ViewMode, items ItemSummary) Permissions {
	if role == actor.RoleDoctor {
		return Permissions{
			CanApprove: ind.Status == StatusPending && mode != ModeInventory,
		}
	}

	if role == actor.RoleStore && mode == ModeInventory {
		return Permissions{
			CanEdit:   items.HasItems,
			CanDelete: items.HasItems,
		}
	}

	if mode == ModeCompounderInventory {
		return Permissions{}
	}

	allowed := false
	switch ind.Status {
	case StatusDraft:
		allowed = isCreator
	case StatusPending, "":
		if isCreator {
			allowed = true
		} else {
			// A non-creator (receiving staff) may touch a pending indent
			// only while receipt is underway: fully-received lines are
			// settled and untouched ones belong to the creator alone.
			allowed = items.HasItems && !items.AllReceived && !items.NoneReceived
		}
	default:
		// Approved/Rejected headers are immutable to non-doctors.
	}

	return Permissions{CanEdit: allowed, CanDelete: allowed}
}

// ResolveItem computes per-item permissions. It starts from the header
// resolution and additionally locks any store-tier item that has received
// stock: a received item cannot retroactively change its raised terms,
// regardless of role.
func ResolveItem(role actor.Role, isCreator bool, ind *Indent, mode ViewMode, item *IndentItem, items ItemSummary) Permissions {
	perms := Resolve(role, isCreator, ind, mode, items)

	if ind.Tier == TierStore && item.IsReceived() {
		perms.CanEdit = false
		perms.CanDelete = false
	}

	return perms
}

// CanDoctorEditWithReason reports whether the doctor-mediated, reason-logged
// edit applies: approved (or, matching legacy behavior, still pending)
// compounder inventory items only.
func CanDoctorEditWithReason(role actor.Role, ind *Indent, mode ViewMode) bool {
	if role != actor.RoleDoctor || mode != ModeCompounderInventory {
		return false
	}
	// Pending is accepted alongside approved on purpose: the legacy system
	// treats both as "inventory mode" for stock edits. A potential policy
	// gap, kept for compatibility.
	return ind.Status == StatusApproved || ind.Status == StatusPending
}

// RequireEdit converts a resolution into a rejection when editing is not
// permitted.
func RequireEdit(perms Permissions, act actor.Actor, ind *Indent) error {
	if perms.CanEdit {
		return nil
	}
	return errors.PermissionDenied("you may not edit this indent", permissionContext(act, ind))
}

// RequireDelete converts a resolution into a rejection when deletion is not
// permitted.
func RequireDelete(perms Permissions, act actor.Actor, ind *Indent) error {
	if perms.CanDelete {
		return nil
	}
	return errors.PermissionDenied("you may not delete this indent", permissionContext(act, ind))
}

func permissionContext(act actor.Actor, ind *Indent) map[string]string {
	return map[string]string{
		"role":       string(act.Role),
		"actor":      act.Username,
		"created_by": ind.CreatedBy,
		"status":     string(ind.Status),
	}
}
