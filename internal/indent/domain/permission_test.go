package domain_test

import (
	"testing"

	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	withItems := domain.ItemSummary{HasItems: true, NoneReceived: true}
	partial := domain.ItemSummary{HasItems: true}
	allReceived := domain.ItemSummary{HasItems: true, AllReceived: true}

	tests := []struct {
		name      string
		role      actor.Role
		isCreator bool
		status    domain.Status
		mode      domain.ViewMode
		items     domain.ItemSummary
		want      domain.Permissions
	}{
		{
			name: "doctor approves pending in default mode",
			role: actor.RoleDoctor, status: domain.StatusPending, mode: domain.ModeDefault, items: withItems,
			want: domain.Permissions{CanApprove: true},
		},
		{
			name: "doctor cannot approve in inventory mode",
			role: actor.RoleDoctor, status: domain.StatusPending, mode: domain.ModeInventory, items: withItems,
			want: domain.Permissions{},
		},
		{
			name: "doctor cannot approve a draft",
			role: actor.RoleDoctor, status: domain.StatusDraft, mode: domain.ModeDefault, items: withItems,
			want: domain.Permissions{},
		},
		{
			name: "doctor never edits or deletes",
			role: actor.RoleDoctor, isCreator: true, status: domain.StatusPending, mode: domain.ModeDefault, items: withItems,
			want: domain.Permissions{CanApprove: true},
		},
		{
			name: "store user maintains inventory regardless of status",
			role: actor.RoleStore, status: domain.StatusApproved, mode: domain.ModeInventory, items: allReceived,
			want: domain.Permissions{CanEdit: true, CanDelete: true},
		},
		{
			name: "store user in inventory mode needs items",
			role: actor.RoleStore, status: domain.StatusApproved, mode: domain.ModeInventory, items: domain.ItemSummary{},
			want: domain.Permissions{},
		},
		{
			name: "compounder inventory is read-only",
			role: actor.RoleCompounder, isCreator: true, status: domain.StatusApproved, mode: domain.ModeCompounderInventory, items: withItems,
			want: domain.Permissions{},
		},
		{
			name: "creator edits own draft",
			role: actor.RoleCompounder, isCreator: true, status: domain.StatusDraft, mode: domain.ModeDefault, items: withItems,
			want: domain.Permissions{CanEdit: true, CanDelete: true},
		},
		{
			name: "non-creator cannot touch a draft",
			role: actor.RoleCompounder, status: domain.StatusDraft, mode: domain.ModeDefault, items: withItems,
			want: domain.Permissions{},
		},
		{
			name: "creator edits own pending",
			role: actor.RoleStore, isCreator: true, status: domain.StatusPending, mode: domain.ModeDefault, items: withItems,
			want: domain.Permissions{CanEdit: true, CanDelete: true},
		},
		{
			name: "non-creator edits pending during partial receipt",
			role: actor.RoleStore, status: domain.StatusPending, mode: domain.ModeDefault, items: partial,
			want: domain.Permissions{CanEdit: true, CanDelete: true},
		},
		{
			name: "non-creator cannot edit untouched pending",
			role: actor.RoleStore, status: domain.StatusPending, mode: domain.ModeDefault, items: withItems,
			want: domain.Permissions{},
		},
		{
			name: "non-creator cannot edit fully received pending",
			role: actor.RoleStore, status: domain.StatusPending, mode: domain.ModeDefault, items: allReceived,
			want: domain.Permissions{},
		},
		{
			name: "approved indents are immutable outside inventory mode",
			role: actor.RoleCompounder, isCreator: true, status: domain.StatusApproved, mode: domain.ModeDefault, items: withItems,
			want: domain.Permissions{},
		},
		{
			name: "rejected indents are immutable",
			role: actor.RoleStore, isCreator: true, status: domain.StatusRejected, mode: domain.ModeDefault, items: withItems,
			want: domain.Permissions{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := &domain.Indent{Status: tt.status, Tier: domain.TierStore, CreatedBy: "owner"}
			got := domain.Resolve(tt.role, tt.isCreator, ind, tt.mode, tt.items)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveItem(t *testing.T) {
	summary := domain.ItemSummary{HasItems: true}

	t.Run("received store item is locked for everyone", func(t *testing.T) {
		ind := &domain.Indent{Status: domain.StatusPending, Tier: domain.TierStore, CreatedBy: "owner"}
		item := &domain.IndentItem{RaisedQuantity: 10, ReceivedQuantity: 4}

		got := domain.ResolveItem(actor.RoleStore, true, ind, domain.ModeDefault, item, summary)
		assert.False(t, got.CanEdit)
		assert.False(t, got.CanDelete)
	})

	t.Run("unreceived store item follows header permissions", func(t *testing.T) {
		ind := &domain.Indent{Status: domain.StatusPending, Tier: domain.TierStore, CreatedBy: "owner"}
		item := &domain.IndentItem{RaisedQuantity: 10}

		got := domain.ResolveItem(actor.RoleStore, true, ind, domain.ModeDefault, item, summary)
		assert.True(t, got.CanEdit)
		assert.True(t, got.CanDelete)
	})

	t.Run("received compounder item stays editable", func(t *testing.T) {
		ind := &domain.Indent{Status: domain.StatusPending, Tier: domain.TierCompounder, CreatedBy: "owner"}
		item := &domain.IndentItem{RaisedQuantity: 10, ReceivedQuantity: 4}

		got := domain.ResolveItem(actor.RoleCompounder, true, ind, domain.ModeDefault, item, summary)
		assert.True(t, got.CanEdit)
	})
}

func TestCanDoctorEditWithReason(t *testing.T) {
	approved := &domain.Indent{Status: domain.StatusApproved, Tier: domain.TierCompounder}
	pending := &domain.Indent{Status: domain.StatusPending, Tier: domain.TierCompounder}
	draft := &domain.Indent{Status: domain.StatusDraft, Tier: domain.TierCompounder}

	assert.True(t, domain.CanDoctorEditWithReason(actor.RoleDoctor, approved, domain.ModeCompounderInventory))
	assert.True(t, domain.CanDoctorEditWithReason(actor.RoleDoctor, pending, domain.ModeCompounderInventory))
	assert.False(t, domain.CanDoctorEditWithReason(actor.RoleDoctor, draft, domain.ModeCompounderInventory))
	assert.False(t, domain.CanDoctorEditWithReason(actor.RoleDoctor, approved, domain.ModeDefault))
	assert.False(t, domain.CanDoctorEditWithReason(actor.RoleCompounder, approved, domain.ModeCompounderInventory))
}

func TestRequireEdit(t *testing.T) {
	ind := &domain.Indent{Status: domain.StatusApproved, CreatedBy: "owner"}
	act := actor.Actor{Username: "someone", Role: actor.RoleStore}

	assert.NoError(t, domain.RequireEdit(domain.Permissions{CanEdit: true}, act, ind))
	assert.Error(t, domain.RequireEdit(domain.Permissions{}, act, ind))
	assert.Error(t, domain.RequireDelete(domain.Permissions{CanEdit: true}, act, ind))
}
