package policy

import (
	"testing"
	"time"

	"github.com/gregaplay/backend/internal/models"
)

var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func openEvent() models.Event {
	deadline := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	return models.Event{
		ID:         "evt-1",
		Title:      "Birthday surprise",
		Status:     models.EventStatusOpen,
		Deadline:   &deadline,
		Visibility: models.VisibilityPrivate,
		OwnerID:    "owner-1",
	}
}

func owner() *models.Account {
	return &models.Account{ID: "owner-1", Email: "owner@example.com"}
}

func participant() *models.Account {
	return &models.Account{ID: "guest-1", Email: "guest@example.com"}
}

func invitation() *models.Invitation {
	return &models.Invitation{ID: "inv-1", EventID: "evt-1", Email: "guest@example.com", Status: models.InvitationStatusSent}
}

func TestClosedEventBlocksSubmissionForEveryRole(t *testing.T) {
	pastDeadline := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	closedEvents := map[string]models.Event{
		"statusDone": func() models.Event {
			e := openEvent()
			e.Status = models.EventStatusDone
			return e
		}(),
		"statusCanceled": func() models.Event {
			e := openEvent()
			e.Status = models.EventStatusCanceled
			return e
		}(),
		"pastDeadline": func() models.Event {
			e := openEvent()
			e.Deadline = &pastDeadline
			return e
		}(),
	}

	callers := map[string]struct {
		account    *models.Account
		invitation *models.Invitation
	}{
		"owner":     {owner(), nil},
		"invited":   {participant(), invitation()},
		"anonymous": {nil, nil},
	}

	for eventName, event := range closedEvents {
		for callerName, caller := range callers {
			caps := Evaluate(EvaluateInput{
				Event:      event,
				Account:    caller.account,
				Invitation: caller.invitation,
				Now:        testNow,
			})
			if caps.Actions.CanSubmitVideo {
				t.Errorf("%s/%s: expected canSubmitVideo=false on closed event", eventName, callerName)
			}
			if caps.Actions.CanManageInvitations {
				t.Errorf("%s/%s: expected canManageInvitations=false on closed event", eventName, callerName)
			}
			if !caps.State.IsClosed {
				t.Errorf("%s/%s: expected isClosed=true", eventName, callerName)
			}
		}
	}
}

func TestOwnerKeepsViewAndDeadlineOnClosedEvent(t *testing.T) {
	event := openEvent()
	event.Status = models.EventStatusDone

	caps := Evaluate(EvaluateInput{Event: event, Account: owner(), Now: testNow})

	if !caps.Actions.CanView {
		t.Error("owner must keep canView on a closed event")
	}
	if !caps.Actions.CanEditDeadline {
		t.Error("owner must keep canEditDeadline so the event can be reopened")
	}
	if !caps.Actions.CanToggleVisibility {
		t.Error("visibility is metadata and stays editable when closed")
	}
}

func TestDeadlineExtensionReopensEvent(t *testing.T) {
	pastDeadline := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	event := openEvent()
	event.Deadline = &pastDeadline

	caps := Evaluate(EvaluateInput{Event: event, Account: owner(), Now: testNow})
	if caps.Actions.CanSubmitVideo {
		t.Fatal("expected submissions blocked past deadline")
	}

	extended := testNow.AddDate(0, 1, 0)
	event.Deadline = &extended

	caps = Evaluate(EvaluateInput{Event: event, Account: owner(), Now: testNow})
	if !caps.Actions.CanSubmitVideo {
		t.Fatal("extending the deadline must un-expire the event")
	}
}

func TestOwnerPremiumRaisesLimitsForAllParticipants(t *testing.T) {
	event := openEvent()

	// A free owner means no inherited entitlement for anyone.
	caps := Evaluate(EvaluateInput{
		Event:        event,
		Account:      participant(),
		Invitation:   invitation(),
		OwnerPremium: OwnerPremium{IsActive: false},
		Now:          testNow,
	})
	if caps.State.IsEffectivelyPremium {
		t.Fatal("free owner must not yield a premium event")
	}
	if caps.Limits.MaxUploadsPerEvent != FreeMaxUploadsPerEvent {
		t.Fatalf("expected the free limit, got %d", caps.Limits.MaxUploadsPerEvent)
	}

	// A premium owner raises limits for invited participants, not only for
	// the owner themselves.
	caps = Evaluate(EvaluateInput{
		Event:        event,
		Account:      participant(),
		Invitation:   invitation(),
		Submissions:  SubmissionSummary{Count: FreeMaxUploadsPerEvent},
		OwnerPremium: OwnerPremium{IsActive: true},
		Now:          testNow,
	})
	if !caps.State.IsEffectivelyPremium {
		t.Fatal("owner premium must make the event effectively premium for participants")
	}
	if caps.Limits.MaxUploadsPerEvent != MaxUploadsUnlimited {
		t.Fatalf("expected unlimited uploads for the participant, got %d", caps.Limits.MaxUploadsPerEvent)
	}
	if !caps.Actions.CanSubmitVideo {
		t.Fatal("participant past the free limit must still submit on a premium owner's event")
	}

	// The owner gets the same inherited entitlement.
	caps = Evaluate(EvaluateInput{
		Event:        event,
		Account:      owner(),
		OwnerPremium: OwnerPremium{IsActive: true},
		Now:          testNow,
	})
	if !caps.State.IsEffectivelyPremium {
		t.Fatal("owner account premium must make the event effectively premium")
	}
	if caps.Limits.MaxUploadsPerEvent != MaxUploadsUnlimited {
		t.Fatalf("expected unlimited uploads, got %d", caps.Limits.MaxUploadsPerEvent)
	}
	if !caps.Actions.CanUploadMultipleVideos {
		t.Fatal("expected canUploadMultipleVideos=true")
	}
}

func TestEventBoostAppliesToEveryParticipant(t *testing.T) {
	tomorrow := testNow.Add(24 * time.Hour)
	event := openEvent()
	event.IsPremium = true
	event.PremiumExpiresAt = &tomorrow

	caps := Evaluate(EvaluateInput{
		Event:        event,
		Account:      participant(),
		Invitation:   invitation(),
		OwnerPremium: OwnerPremium{IsActive: false},
		Now:          testNow,
	})

	if !caps.State.IsEffectivelyPremium {
		t.Fatal("active event boost must apply to non-premium participants")
	}
	if caps.Limits.MaxUploadsPerEvent != MaxUploadsUnlimited {
		t.Fatalf("expected unlimited uploads, got %d", caps.Limits.MaxUploadsPerEvent)
	}
}

func TestExpiredOrFlaglessBoostIsInactive(t *testing.T) {
	yesterday := testNow.Add(-24 * time.Hour)
	tomorrow := testNow.Add(24 * time.Hour)

	cases := []struct {
		name     string
		premium  bool
		expires  *time.Time
		expected bool
	}{
		{"flagAndFutureExpiry", true, &tomorrow, true},
		{"flagButExpired", true, &yesterday, false},
		{"flagWithoutExpiry", true, nil, false},
		{"expiryWithoutFlag", false, &tomorrow, false},
		{"neither", false, nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := openEvent()
			event.IsPremium = tc.premium
			event.PremiumExpiresAt = tc.expires
			if got := EventBoostActive(event, testNow); got != tc.expected {
				t.Fatalf("expected %v got %v", tc.expected, got)
			}
		})
	}
}

func TestFreeEventUploadCeiling(t *testing.T) {
	event := openEvent()

	caps := Evaluate(EvaluateInput{
		Event:       event,
		Account:     participant(),
		Invitation:  invitation(),
		Submissions: SubmissionSummary{Count: 0},
		Now:         testNow,
	})
	if !caps.Actions.CanSubmitVideo {
		t.Fatal("eligible participant with no submission must be allowed to submit")
	}

	latest := &models.VideoSubmission{ID: "vid-1", EventID: "evt-1", AccountID: "guest-1"}
	caps = Evaluate(EvaluateInput{
		Event:       event,
		Account:     participant(),
		Invitation:  invitation(),
		Submissions: SubmissionSummary{Count: 1, Latest: latest},
		Now:         testNow,
	})
	if !caps.State.HasReachedUploadLimit {
		t.Fatal("expected hasReachedUploadLimit=true after one upload on a free event")
	}
	if caps.Actions.CanSubmitVideo {
		t.Fatal("expected canSubmitVideo=false at the free-tier ceiling")
	}
	if caps.State.LatestSubmission != latest {
		t.Fatal("expected latest submission echoed back")
	}
}

func TestDeadlineExpiryBoundary(t *testing.T) {
	deadline := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)
	event := openEvent()
	event.Deadline = &deadline
	event.Visibility = models.VisibilityPublic

	lastSecond := time.Date(2025, time.January, 10, 23, 59, 59, 0, time.UTC)
	caps := Evaluate(EvaluateInput{Event: event, Account: participant(), Now: lastSecond})
	if caps.State.IsClosed {
		t.Fatal("event must remain open through the last second of the deadline day")
	}

	midnight := time.Date(2025, time.January, 11, 0, 0, 0, 0, time.UTC)
	caps = Evaluate(EvaluateInput{Event: event, Account: participant(), Now: midnight})
	if !caps.State.IsClosed {
		t.Fatal("event must be expired at midnight after the deadline day")
	}
}

func TestNilDeadlineNeverExpires(t *testing.T) {
	event := openEvent()
	event.Deadline = nil
	event.Visibility = models.VisibilityPublic

	farFuture := testNow.AddDate(10, 0, 0)
	caps := Evaluate(EvaluateInput{Event: event, Account: participant(), Now: farFuture})
	if caps.State.IsClosed {
		t.Fatal("an event without a deadline never time-expires")
	}
}

func TestPrivateEventUninvitedVisitor(t *testing.T) {
	event := openEvent()

	// Anonymous caller.
	caps := Evaluate(EvaluateInput{Event: event, Now: testNow})
	if !caps.Actions.CanView {
		t.Fatal("anonymous caller may view event metadata")
	}
	if caps.Actions.CanSubmitVideo {
		t.Fatal("anonymous caller must not submit")
	}

	// Authenticated but neither invited nor owner on a private event.
	caps = Evaluate(EvaluateInput{Event: event, Account: participant(), Now: testNow})
	if !caps.Actions.CanView {
		t.Fatal("uninvited caller may still view metadata")
	}
	if caps.Actions.CanSubmitVideo {
		t.Fatal("uninvited caller must not submit to a private event")
	}
}

func TestPublicEventAuthenticatedGuest(t *testing.T) {
	event := openEvent()
	event.Visibility = models.VisibilityPublic

	caps := Evaluate(EvaluateInput{Event: event, Account: participant(), Now: testNow})

	if !caps.Actions.CanSubmitVideo {
		t.Fatal("authenticated guest may submit to an open public event")
	}
	if !caps.Actions.CanJoin {
		t.Fatal("authenticated guest may request to join a public event")
	}
	if caps.Limits.MaxUploadsPerEvent != FreeMaxUploadsPerEvent {
		t.Fatalf("expected free upload ceiling, got %d", caps.Limits.MaxUploadsPerEvent)
	}
}

func TestGenerateFinalVideoRequiresOwnerAndSubmissions(t *testing.T) {
	cases := []struct {
		name     string
		status   string
		account  *models.Account
		count    int
		expected bool
	}{
		{"ownerOpenWithClips", models.EventStatusOpen, owner(), 3, true},
		{"ownerReadyWithClips", models.EventStatusReady, owner(), 1, true},
		{"ownerNoClips", models.EventStatusOpen, owner(), 0, false},
		{"ownerProcessing", models.EventStatusProcessing, owner(), 3, false},
		{"ownerDone", models.EventStatusDone, owner(), 3, false},
		{"participant", models.EventStatusOpen, participant(), 3, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := openEvent()
			event.Status = tc.status
			caps := Evaluate(EvaluateInput{
				Event:       event,
				Account:     tc.account,
				Submissions: SubmissionSummary{Count: tc.count},
				Now:         testNow,
			})
			if caps.Actions.CanGenerateFinalVideo != tc.expected {
				t.Fatalf("expected canGenerateFinalVideo=%v", tc.expected)
			}
		})
	}
}

func TestClipConstraintsAreTierIndependent(t *testing.T) {
	tomorrow := testNow.Add(24 * time.Hour)
	event := openEvent()
	event.IsPremium = true
	event.PremiumExpiresAt = &tomorrow

	caps := Evaluate(EvaluateInput{Event: event, Account: owner(), Now: testNow})

	if caps.Limits.MaxClipDurationSeconds != 30 {
		t.Fatalf("expected 30s clip ceiling, got %d", caps.Limits.MaxClipDurationSeconds)
	}
	if caps.Limits.MaxClipSizeBytes != 50*1024*1024 {
		t.Fatalf("expected 50MiB size ceiling, got %d", caps.Limits.MaxClipSizeBytes)
	}
}

func TestAccountPremiumActive(t *testing.T) {
	yesterday := testNow.Add(-24 * time.Hour)
	tomorrow := testNow.Add(24 * time.Hour)

	cases := []struct {
		name     string
		account  models.Account
		expected bool
	}{
		{"activeWindow", models.Account{IsPremium: true, PremiumExpiresAt: &tomorrow}, true},
		{"expiredWindow", models.Account{IsPremium: true, PremiumExpiresAt: &yesterday}, false},
		{"flagWithoutExpiry", models.Account{IsPremium: true}, false},
		{"legacyFlagAlone", models.Account{LegacyPremium: true}, true},
		{"legacyOverridesExpiredWindow", models.Account{LegacyPremium: true, IsPremium: true, PremiumExpiresAt: &yesterday}, true},
		{"nothing", models.Account{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AccountPremiumActive(tc.account, testNow); got != tc.expected {
				t.Fatalf("expected %v got %v", tc.expected, got)
			}
		})
	}
}
