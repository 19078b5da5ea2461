package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/medsupply/indent-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	compounderActor = actor.Actor{Username: "comp1", Role: actor.RoleCompounder, PlantID: "plant-1"}
	doctorActor     = actor.Actor{Username: "doc1", Role: actor.RoleDoctor, PlantID: "plant-1"}
)

func draftIndent() *domain.Indent {
	return &domain.Indent{
		IndentID:  "ind-1",
		PlantID:   "plant-1",
		Tier:      domain.TierCompounder,
		Status:    domain.StatusDraft,
		CreatedBy: "comp1",
	}
}

func TestSubmit(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	t.Run("creator submits draft", func(t *testing.T) {
		ind := draftIndent()
		events, err := domain.Submit(ind, compounderActor, now)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusPending, ind.Status)
		assert.Equal(t, domain.TypePendingIndents, ind.IndentType())
		require.Len(t, events, 1)
		assert.Equal(t, "submit", events[0].Action)
		assert.Equal(t, domain.TypeDraftIndent, events[0].Before)
		assert.Equal(t, domain.TypePendingIndents, events[0].After)
	})

	t.Run("non-creator is rejected", func(t *testing.T) {
		ind := draftIndent()
		other := actor.Actor{Username: "comp2", Role: actor.RoleCompounder, PlantID: "plant-1"}

		_, err := domain.Submit(ind, other, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrPermissionDenied))
		assert.Equal(t, domain.StatusDraft, ind.Status)
	})

	t.Run("submitting a pending indent is a no-op", func(t *testing.T) {
		ind := draftIndent()
		ind.Status = domain.StatusPending

		events, err := domain.Submit(ind, compounderActor, now)
		require.NoError(t, err)
		assert.Empty(t, events)
		assert.Equal(t, domain.StatusPending, ind.Status)
	})
}

func TestDecide(t *testing.T) {
	now := time.Date(2026, 8, 31, 11, 0, 0, 0, time.UTC)

	pending := func() *domain.Indent {
		ind := draftIndent()
		ind.Status = domain.StatusPending
		return ind
	}

	t.Run("doctor approves with comments", func(t *testing.T) {
		ind := pending()
		events, err := domain.Decide(ind, domain.StatusApproved, "stock verified, approved", doctorActor, now)
		require.NoError(t, err)

		assert.Equal(t, domain.StatusApproved, ind.Status)
		assert.Equal(t, domain.TypeApprovedIndents, ind.IndentType())
		require.NotNil(t, ind.ApprovedBy)
		assert.Equal(t, "doc1", *ind.ApprovedBy)
		require.NotNil(t, ind.ApprovedDate)
		assert.Equal(t, now, *ind.ApprovedDate)
		require.NotNil(t, ind.Comments)
		assert.Equal(t, "stock verified, approved", *ind.Comments)

		require.Len(t, events, 1)
		assert.Equal(t, domain.TypePendingIndents, events[0].Before)
		assert.Equal(t, domain.TypeApprovedIndents, events[0].After)
	})

	t.Run("doctor rejects with comments", func(t *testing.T) {
		ind := pending()
		_, err := domain.Decide(ind, domain.StatusRejected, "duplicate request", doctorActor, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRejected, ind.Status)
	})

	t.Run("non-doctor is rejected", func(t *testing.T) {
		ind := pending()
		_, err := domain.Decide(ind, domain.StatusApproved, "approved", compounderActor, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrPermissionDenied))
		assert.Equal(t, domain.StatusPending, ind.Status)
	})

	t.Run("invalid decision value", func(t *testing.T) {
		ind := pending()
		_, err := domain.Decide(ind, domain.StatusDraft, "back to draft", doctorActor, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("missing comments", func(t *testing.T) {
		ind := pending()
		_, err := domain.Decide(ind, domain.StatusApproved, " ", doctorActor, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))
		assert.Equal(t, domain.StatusPending, ind.Status)
	})

	t.Run("script content in comments is refused", func(t *testing.T) {
		ind := pending()
		_, err := domain.Decide(ind, domain.StatusApproved, "<script>alert(1)</script>", doctorActor, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("repeated decision yields the identical conflict", func(t *testing.T) {
		ind := pending()
		_, err := domain.Decide(ind, domain.StatusApproved, "approved after review", doctorActor, now)
		require.NoError(t, err)

		_, err1 := domain.Decide(ind, domain.StatusApproved, "approved after review", doctorActor, now)
		_, err2 := domain.Decide(ind, domain.StatusApproved, "approved after review", doctorActor, now)
		require.Error(t, err1)
		require.Error(t, err2)
		assert.True(t, errors.Is(err1, errors.ErrConflict))
		assert.Equal(t, err1.Error(), err2.Error())
		assert.Equal(t, domain.StatusApproved, ind.Status)
	})
}

func TestValidateComments(t *testing.T) {
	assert.NoError(t, domain.ValidateComments("ok"))
	assert.Error(t, domain.ValidateComments("x"))
	assert.Error(t, domain.ValidateComments(""))
	assert.Error(t, domain.ValidateComments("javascript:alert(1)"))
	assert.Error(t, domain.ValidateComments("click onload=bad"))

	long := make([]byte, 501)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, domain.ValidateComments(string(long)))

	// Bounds count characters, not bytes.
	assert.NoError(t, domain.ValidateComments(strings.Repeat("ä", 500)))
	assert.Error(t, domain.ValidateComments(strings.Repeat("ä", 501)))
	assert.NoError(t, domain.ValidateComments("ää"))
}
