// Package policy holds the event access rules for Grega Play. Evaluate is the
// single source of truth consulted by every enforcement point; callers must
// never reimplement these comparisons ad hoc.
package policy

import (
	"time"

	"github.com/gregaplay/backend/internal/models"
)

// SubmissionSummary reports the caller's upload history on one event.
type SubmissionSummary struct {
	Count  int
	Latest *models.VideoSubmission
}

// OwnerPremium carries the event owner's precomputed account entitlement.
// It always describes the OWNER, regardless of who the caller is.
type OwnerPremium struct {
	IsActive bool
}

// EvaluateInput bundles the freshly read facts Evaluate decides over.
// Account and Invitation are nil for anonymous and uninvited callers.
type EvaluateInput struct {
	Event        models.Event
	Account      *models.Account
	Invitation   *models.Invitation
	Submissions  SubmissionSummary
	OwnerPremium OwnerPremium
	Now          time.Time
}

// Evaluate computes what the caller may do on the event right now. It is pure
// and total: it never fails for well-formed inputs and performs no I/O, so the
// caller must supply freshly read facts (statuses, deadlines, and premium
// windows are time-sensitive). A missing event is the caller's NotFound to
// resolve before invoking the policy.
func Evaluate(in EvaluateInput) Capabilities {
	event := in.Event
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	isOwner := in.Account != nil && in.Account.ID == event.OwnerID
	isTerminal := event.Status == models.EventStatusDone || event.Status == models.EventStatusCanceled

	// A terminal status closes the event regardless of date; otherwise the
	// event closes once local time passes the end of the deadline day.
	isTimeExpired := !isTerminal && event.Deadline != nil && now.After(endOfDay(*event.Deadline))
	isClosed := isTerminal || isTimeExpired

	isInvited := in.Invitation != nil
	isPublicGuest := event.Visibility == models.VisibilityPublic

	// Premium is inherited from the OWNER's account, never the participant's:
	// a participant's own subscription does not raise their limits, while the
	// owner's subscription (or an explicit event boost) raises them for all
	// participants.
	boostActive := EventBoostActive(event, now)
	isEffectivelyPremium := boostActive || in.OwnerPremium.IsActive

	// Anonymous and uninvited callers may still view; private events expose
	// metadata only and action buttons stay off.
	canView := true

	canSubmit := !isClosed && in.Account != nil && (isOwner || isInvited || isPublicGuest)

	maxUploads := FreeMaxUploadsPerEvent
	if isEffectivelyPremium {
		maxUploads = MaxUploadsUnlimited
	}

	hasReachedLimit := maxUploads != MaxUploadsUnlimited && in.Submissions.Count >= maxUploads
	canSubmit = canSubmit && !hasReachedLimit

	canJoin := !isClosed && in.Account != nil && !isOwner && !isInvited && isPublicGuest

	canGenerateFinal := isOwner && in.Submissions.Count > 0 &&
		(event.Status == models.EventStatusOpen || event.Status == models.EventStatusReady)

	return Capabilities{
		Role: Role{
			IsOwner:       isOwner,
			IsInvited:     isInvited,
			IsPublicGuest: isPublicGuest,
		},
		Actions: Actions{
			CanView:                 canView,
			CanJoin:                 canJoin,
			CanSubmitVideo:          canSubmit,
			CanUploadMultipleVideos: isEffectivelyPremium,
			CanManageInvitations:    isOwner && !isClosed,
			// Visibility and deadline are metadata, not participation, so the
			// owner keeps them after closing; editing the deadline forward
			// un-expires the event on the next evaluation.
			CanToggleVisibility:   isOwner,
			CanEditDeadline:       isOwner,
			CanGenerateFinalVideo: canGenerateFinal,
		},
		Limits: Limits{
			MaxUploadsPerEvent:     maxUploads,
			MaxClipDurationSeconds: MaxClipDurationSeconds,
			MaxClipSizeBytes:       MaxClipSizeBytes,
		},
		State: State{
			IsClosed:              isClosed,
			IsEffectivelyPremium:  isEffectivelyPremium,
			HasReachedUploadLimit: hasReachedLimit,
			LatestSubmission:      in.Submissions.Latest,
		},
	}
}

// EventBoostActive reports whether the event's individual premium boost is in
// effect: the flag must be set AND an expiry must exist AND still be in the
// future. A missing expiry without the flag never counts as active.
func EventBoostActive(event models.Event, now time.Time) bool {
	return event.IsPremium && event.PremiumExpiresAt != nil && event.PremiumExpiresAt.After(now)
}

// AccountPremiumActive resolves an account's entitlement window. Legacy
// accounts predate the expiry field, so any legacy flag counts unconditionally.
func AccountPremiumActive(account models.Account, now time.Time) bool {
	if account.LegacyPremium {
		return true
	}
	return account.IsPremium && account.PremiumExpiresAt != nil && account.PremiumExpiresAt.After(now)
}

// endOfDay returns the last instant of the deadline's calendar day, evaluated
// in the deadline's own location.
func endOfDay(d time.Time) time.Time {
	year, month, day := d.Date()
	return time.Date(year, month, day, 23, 59, 59, 999999999, d.Location())
}
