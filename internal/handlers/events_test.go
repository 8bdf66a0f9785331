package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gregaplay/backend/internal/models"
)

func newEventHandler(accounts *inMemoryAccountStore, events *inMemoryEventStore, invitations *inMemoryInvitationStore, submissions *inMemorySubmissionStore, notifier *recordingNotifier, sessions SessionManager) EventHandler {
	return EventHandler{
		Accounts:    accounts,
		Sessions:    sessions,
		Events:      events,
		Invitations: invitations,
		Submissions: submissions,
		Notifier:    notifier,
		BaseURL:     "http://localhost:8080",
		NowFunc:     fixedNow,
	}
}

func seedAccount(store *inMemoryAccountStore, id, email string) models.Account {
	account := models.Account{ID: id, Email: email}
	store.accounts[id] = account
	return account
}

func TestEventHandlerCreate(t *testing.T) {
	accounts := newInMemoryAccountStore()
	events := newInMemoryEventStore()
	invitations := newInMemoryInvitationStore()
	notifier := &recordingNotifier{}
	sessions := newSessionManager()
	handler := newEventHandler(accounts, events, invitations, newInMemorySubmissionStore(), notifier, sessions)

	owner := seedAccount(accounts, "owner-1", "owner@example.com")
	header := loginAs(t, sessions, owner.ID)

	body, _ := json.Marshal(createEventRequest{
		Title:       "Mariage de Camille",
		Deadline:    "2025-07-01",
		Visibility:  "private",
		Invitations: []string{"guest@example.com", "guest@example.com", "owner@example.com"},
	})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(body)), header)
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp createEventResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Event.Status != models.EventStatusOpen {
		t.Fatalf("expected new event to be open, got %q", resp.Event.Status)
	}
	if len(resp.Event.PublicCode) != 8 {
		t.Fatalf("expected an 8 character share code, got %q", resp.Event.PublicCode)
	}
	// The duplicate and the owner's own address are dropped.
	if len(resp.Invitations) != 1 {
		t.Fatalf("expected 1 invitation, got %d", len(resp.Invitations))
	}
	if len(notifier.invitations) != 1 || notifier.invitations[0] != "guest@example.com" {
		t.Fatalf("expected invitation mail to guest@example.com, got %v", notifier.invitations)
	}
}

func TestEventHandlerCreateRequiresAuth(t *testing.T) {
	handler := newEventHandler(newInMemoryAccountStore(), newInMemoryEventStore(), newInMemoryInvitationStore(), newInMemorySubmissionStore(), &recordingNotifier{}, newSessionManager())

	body, _ := json.Marshal(createEventRequest{Title: "Sans compte"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestEventHandlerGetCapabilities(t *testing.T) {
	accounts := newInMemoryAccountStore()
	events := newInMemoryEventStore()
	invitations := newInMemoryInvitationStore()
	sessions := newSessionManager()
	handler := newEventHandler(accounts, events, invitations, newInMemorySubmissionStore(), &recordingNotifier{}, sessions)

	owner := seedAccount(accounts, "owner-1", "owner@example.com")
	guest := seedAccount(accounts, "guest-1", "guest@example.com")
	deadline := fixedNow().AddDate(0, 0, 7)
	events.events["event-1"] = models.Event{
		ID:         "event-1",
		Title:      "Anniversaire",
		Status:     models.EventStatusOpen,
		Deadline:   &deadline,
		Visibility: models.VisibilityPrivate,
		OwnerID:    owner.ID,
		PublicCode: "BDAYPRTY",
	}
	invitations.invitations["inv-1"] = models.Invitation{ID: "inv-1", EventID: "event-1", Email: guest.Email, Status: models.InvitationStatusSent}

	cases := []struct {
		name       string
		header     string
		wantOwner  bool
		wantSubmit bool
		wantManage bool
	}{
		{name: "owner", header: loginAs(t, sessions, owner.ID), wantOwner: true, wantSubmit: true, wantManage: true},
		{name: "invited guest", header: loginAs(t, sessions, guest.ID), wantSubmit: true},
		{name: "anonymous", header: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/events/event-1", nil)
			req.SetPathValue("id", "event-1")
			if tc.header != "" {
				req = authed(req, tc.header)
			}
			rec := httptest.NewRecorder()
			handler.Get(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
			}

			var resp eventDetailResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}

			if !resp.Capabilities.Actions.CanView {
				t.Fatal("everyone may view event metadata")
			}
			if resp.Capabilities.Role.IsOwner != tc.wantOwner {
				t.Fatalf("isOwner = %v, want %v", resp.Capabilities.Role.IsOwner, tc.wantOwner)
			}
			if resp.Capabilities.Actions.CanSubmitVideo != tc.wantSubmit {
				t.Fatalf("canSubmitVideo = %v, want %v", resp.Capabilities.Actions.CanSubmitVideo, tc.wantSubmit)
			}
			if resp.Capabilities.Actions.CanManageInvitations != tc.wantManage {
				t.Fatalf("canManageInvitations = %v, want %v", resp.Capabilities.Actions.CanManageInvitations, tc.wantManage)
			}
		})
	}
}

func TestEventHandlerGetByCode(t *testing.T) {
	accounts := newInMemoryAccountStore()
	events := newInMemoryEventStore()
	handler := newEventHandler(accounts, events, newInMemoryInvitationStore(), newInMemorySubmissionStore(), &recordingNotifier{}, newSessionManager())

	seedAccount(accounts, "owner-1", "owner@example.com")
	events.events["event-1"] = models.Event{ID: "event-1", Status: models.EventStatusOpen, Visibility: models.VisibilityPublic, OwnerID: "owner-1", PublicCode: "WEDDNG24"}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/code/weddng24", nil)
	req.SetPathValue("code", "weddng24")
	rec := httptest.NewRecorder()
	handler.GetByCode(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestEventHandlerGetNotFound(t *testing.T) {
	handler := newEventHandler(newInMemoryAccountStore(), newInMemoryEventStore(), newInMemoryInvitationStore(), newInMemorySubmissionStore(), &recordingNotifier{}, newSessionManager())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
}

func TestEventHandlerUpdateDeadlineReopens(t *testing.T) {
	accounts := newInMemoryAccountStore()
	events := newInMemoryEventStore()
	sessions := newSessionManager()
	handler := newEventHandler(accounts, events, newInMemoryInvitationStore(), newInMemorySubmissionStore(), &recordingNotifier{}, sessions)

	owner := seedAccount(accounts, "owner-1", "owner@example.com")
	past := fixedNow().AddDate(0, 0, -7)
	events.events["event-1"] = models.Event{ID: "event-1", Title: "Expiré", Status: models.EventStatusOpen, Deadline: &past, Visibility: models.VisibilityPrivate, OwnerID: owner.ID}

	future := "2025-07-01"
	body, _ := json.Marshal(updateEventRequest{Deadline: &future})
	req := authed(httptest.NewRequest(http.MethodPatch, "/api/v1/events/event-1", bytes.NewReader(body)), loginAs(t, sessions, owner.ID))
	req.SetPathValue("id", "event-1")
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp eventDetailResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Capabilities.State.IsClosed {
		t.Fatal("expected the extended deadline to reopen the event")
	}
	if !resp.Capabilities.Actions.CanSubmitVideo {
		t.Fatal("expected the owner to regain submission on the reopened event")
	}
}

func TestEventHandlerUpdateForbiddenForNonOwner(t *testing.T) {
	accounts := newInMemoryAccountStore()
	events := newInMemoryEventStore()
	sessions := newSessionManager()
	handler := newEventHandler(accounts, events, newInMemoryInvitationStore(), newInMemorySubmissionStore(), &recordingNotifier{}, sessions)

	seedAccount(accounts, "owner-1", "owner@example.com")
	intruder := seedAccount(accounts, "other-1", "other@example.com")
	events.events["event-1"] = models.Event{ID: "event-1", Status: models.EventStatusOpen, OwnerID: "owner-1"}

	title := "Pris de force"
	body, _ := json.Marshal(updateEventRequest{Title: &title})
	req := authed(httptest.NewRequest(http.MethodPatch, "/api/v1/events/event-1", bytes.NewReader(body)), loginAs(t, sessions, intruder.ID))
	req.SetPathValue("id", "event-1")
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d got %d", http.StatusForbidden, rec.Code)
	}
}

func TestEventHandlerCancel(t *testing.T) {
	accounts := newInMemoryAccountStore()
	events := newInMemoryEventStore()
	sessions := newSessionManager()
	handler := newEventHandler(accounts, events, newInMemoryInvitationStore(), newInMemorySubmissionStore(), &recordingNotifier{}, sessions)

	owner := seedAccount(accounts, "owner-1", "owner@example.com")
	events.events["event-1"] = models.Event{ID: "event-1", Status: models.EventStatusOpen, OwnerID: owner.ID}
	header := loginAs(t, sessions, owner.ID)

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/events/event-1/cancel", nil), header)
	req.SetPathValue("id", "event-1")
	rec := httptest.NewRecorder()
	handler.Cancel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if events.events["event-1"].Status != models.EventStatusCanceled {
		t.Fatalf("expected canceled status, got %q", events.events["event-1"].Status)
	}

	// Cancellation is terminal; a second attempt conflicts.
	req = authed(httptest.NewRequest(http.MethodPost, "/api/v1/events/event-1/cancel", nil), header)
	req.SetPathValue("id", "event-1")
	rec = httptest.NewRecorder()
	handler.Cancel(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
}

func TestEventHandlerFinalVideo(t *testing.T) {
	accounts := newInMemoryAccountStore()
	events := newInMemoryEventStore()
	submissions := newInMemorySubmissionStore()
	sessions := newSessionManager()
	handler := newEventHandler(accounts, events, newInMemoryInvitationStore(), submissions, &recordingNotifier{}, sessions)

	owner := seedAccount(accounts, "owner-1", "owner@example.com")
	events.events["event-1"] = models.Event{ID: "event-1", Status: models.EventStatusOpen, OwnerID: owner.ID}
	header := loginAs(t, sessions, owner.ID)

	// No clips yet: nothing to assemble.
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/events/event-1/final-video", nil), header)
	req.SetPathValue("id", "event-1")
	rec := httptest.NewRecorder()
	handler.FinalVideo(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}

	submissions.submissions["sub-1"] = models.VideoSubmission{ID: "sub-1", EventID: "event-1", AccountID: owner.ID, CreatedAt: fixedNow()}

	req = authed(httptest.NewRequest(http.MethodPost, "/api/v1/events/event-1/final-video", nil), header)
	req.SetPathValue("id", "event-1")
	rec = httptest.NewRecorder()
	handler.FinalVideo(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d got %d: %s", http.StatusAccepted, rec.Code, rec.Body.String())
	}
	if events.events["event-1"].Status != models.EventStatusProcessing {
		t.Fatalf("expected processing status, got %q", events.events["event-1"].Status)
	}
}

func TestEventHandlerFinalVideoComplete(t *testing.T) {
	accounts := newInMemoryAccountStore()
	events := newInMemoryEventStore()
	sessions := newSessionManager()
	handler := newEventHandler(accounts, events, newInMemoryInvitationStore(), newInMemorySubmissionStore(), &recordingNotifier{}, sessions)

	owner := seedAccount(accounts, "owner-1", "owner@example.com")
	events.events["event-1"] = models.Event{ID: "event-1", Status: models.EventStatusOpen, OwnerID: owner.ID}
	header := loginAs(t, sessions, owner.ID)

	complete := func(body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/events/event-1/final-video/complete", reader), header)
		req.SetPathValue("id", "event-1")
		rec := httptest.NewRecorder()
		handler.FinalVideoComplete(rec, req)
		return rec
	}

	// Nothing in progress yet.
	if rec := complete(""); rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d: %s", http.StatusConflict, rec.Code, rec.Body.String())
	}

	// A failed render returns the event to ready so the owner can retry.
	event := events.events["event-1"]
	event.Status = models.EventStatusProcessing
	events.events["event-1"] = event
	if rec := complete(`{"success": false}`); rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if events.events["event-1"].Status != models.EventStatusReady {
		t.Fatalf("expected ready status after a failed render, got %q", events.events["event-1"].Status)
	}

	// A successful render ends the lifecycle.
	event = events.events["event-1"]
	event.Status = models.EventStatusProcessing
	events.events["event-1"] = event
	if rec := complete(""); rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if events.events["event-1"].Status != models.EventStatusDone {
		t.Fatalf("expected done status, got %q", events.events["event-1"].Status)
	}
}

func TestEventHandlerDelete(t *testing.T) {
	accounts := newInMemoryAccountStore()
	events := newInMemoryEventStore()
	sessions := newSessionManager()
	handler := newEventHandler(accounts, events, newInMemoryInvitationStore(), newInMemorySubmissionStore(), &recordingNotifier{}, sessions)

	owner := seedAccount(accounts, "owner-1", "owner@example.com")
	events.events["event-1"] = models.Event{ID: "event-1", Status: models.EventStatusOpen, OwnerID: owner.ID}

	req := authed(httptest.NewRequest(http.MethodDelete, "/api/v1/events/event-1", nil), loginAs(t, sessions, owner.ID))
	req.SetPathValue("id", "event-1")
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d got %d", http.StatusNoContent, rec.Code)
	}
	if _, ok := events.events["event-1"]; ok {
		t.Fatal("expected event to be deleted")
	}
}

func TestParseDeadline(t *testing.T) {
	if d, err := parseDeadline(""); err != nil || d != nil {
		t.Fatalf("empty deadline should clear it, got %v, %v", d, err)
	}
	if _, err := parseDeadline("2025-07-01"); err != nil {
		t.Fatalf("date-only deadline should parse: %v", err)
	}
	if _, err := parseDeadline(time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC).Format(time.RFC3339)); err != nil {
		t.Fatalf("RFC 3339 deadline should parse: %v", err)
	}
	if _, err := parseDeadline("juillet"); err == nil {
		t.Fatal("expected an error for an unrecognized format")
	}
}
