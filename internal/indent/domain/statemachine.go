package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/medsupply/indent-backend/pkg/errors"
)

// Decision comment bounds.
const (
	commentMinLen = 2
	commentMaxLen = 500
)

// scriptPattern rejects HTML tags, javascript: URIs and inline handlers in
// free-text comments. Comments are refused, never sanitized.
var scriptPattern = regexp.MustCompile(`(?i)(<[^>]*>|javascript:|on\w+\s*=)`)

// ValidateComments enforces the mandatory decision-comment rule.
func ValidateComments(comments string) error {
	trimmed := strings.TrimSpace(comments)
	if n := utf8.RuneCountInString(trimmed); n < commentMinLen || n > commentMaxLen {
		return errors.Validation(map[string]string{
			"comments": fmt.Sprintf("must be between %d and %d characters", commentMinLen, commentMaxLen),
		})
	}
	if scriptPattern.MatchString(trimmed) {
		return errors.Validation(map[string]string{
			"comments": "must not contain HTML or script content",
		})
	}
	return nil
}

// Submit moves a draft indent to pending. Only the creator may submit.
// Submitting an indent that already left draft is a no-op: it stays in its
// current state and produces no events.
func Submit(ind *Indent, act actor.Actor, now time.Time) ([]Event, error) {
	if ind.Status != StatusDraft {
		return nil, nil
	}
	if !ind.IsCreator(act.Username) {
		return nil, errors.PermissionDenied("only the creator may submit a draft indent", map[string]string{
			"role":       string(act.Role),
			"actor":      act.Username,
			"created_by": ind.CreatedBy,
		})
	}

	ind.Status = StatusPending
	ind.IndentDate = now

	return []Event{{
		Module:   ModuleForTier(ind.Tier),
		Action:   "submit",
		EntityID: ind.IndentID,
		Before:   TypeDraftIndent,
		After:    TypePendingIndents,
		Message:  "indent submitted for approval",
		Actor:    act.Username,
	}}, nil
}

// Decide approves or rejects a pending indent. Only a doctor may decide, the
// indent must be pending, and comments are mandatory. Status and the
// projected IndentType label change atomically because only Status is
// stored. A decide on a non-pending indent or by a non-doctor is a rejected
// result, never a fault, and is stable across repeats: deciding an already
// approved indent twice yields the identical rejection both times.
func Decide(ind *Indent, decision Status, comments string, act actor.Actor, now time.Time) ([]Event, error) {
	if decision != StatusApproved && decision != StatusRejected {
		return nil, errors.Validation(map[string]string{
			"decision": "must be approved or rejected",
		})
	}
	if act.Role != actor.RoleDoctor {
		return nil, errors.PermissionDenied("only a doctor may decide an indent", map[string]string{
			"role":  string(act.Role),
			"actor": act.Username,
		})
	}
	if ind.Status != StatusPending {
		return nil, errors.Conflict("indent is not pending approval")
	}
	if err := ValidateComments(comments); err != nil {
		return nil, err
	}

	before := ind.IndentType()
	ind.Status = decision
	ind.ApprovedBy = &act.Username
	ind.ApprovedDate = &now
	trimmed := strings.TrimSpace(comments)
	ind.Comments = &trimmed

	return []Event{{
		Module:   ModuleForTier(ind.Tier),
		Action:   "decide",
		EntityID: ind.IndentID,
		Before:   before,
		After:    ind.IndentType(),
		Message:  fmt.Sprintf("indent %s: %s", decision, trimmed),
		Actor:    act.Username,
	}}, nil
}
