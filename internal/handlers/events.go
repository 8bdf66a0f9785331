package handlers

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gregaplay/backend/internal/logging"
	"github.com/gregaplay/backend/internal/models"
	"github.com/gregaplay/backend/internal/policy"
	"github.com/gregaplay/backend/internal/repositories"
)

// Accepted deadline layouts, matching the birth date formats the clients send.
var deadlineLayouts = []string{time.RFC3339, "2006-01-02"}

// EventHandler implements event lifecycle endpoints.
type EventHandler struct {
	Accounts    AccountStore
	Sessions    SessionManager
	Events      EventStore
	Invitations InvitationStore
	Submissions SubmissionStore
	Notifier    Notifier
	BaseURL     string
	NowFunc     func() time.Time
}

// Create handles POST /api/v1/events. New events always start open and
// unboosted regardless of the payload.
func (h EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	account, ok := requireAccount(ctx, w, r, h.Sessions, h.Accounts)
	if !ok {
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid event payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "deadline must be an RFC 3339 timestamp or YYYY-MM-DD date"})
		return
	}

	visibility := models.VisibilityPrivate
	if req.Visibility == models.VisibilityPublic {
		visibility = models.VisibilityPublic
	}

	code, err := newPublicCode()
	if err != nil {
		logger.Error("failed to generate share code", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create event"})
		return
	}

	now := h.now()
	event := models.Event{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Status:         models.EventStatusOpen,
		Deadline:       deadline,
		Visibility:     visibility,
		OwnerID:        account.ID,
		PublicCode:     code,
		NotifyOnUpload: req.NotifyOnUpload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.Events.Create(ctx, event); err != nil {
		logger.Error("failed to create event", "error", err, "ownerId", account.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create event"})
		return
	}

	invited := h.inviteEmails(ctx, event, account, req.Invitations)

	logger.Info("event created", "eventId", event.ID, "ownerId", account.ID, "invitations", len(invited))
	respondJSON(ctx, w, http.StatusCreated, createEventResponse{
		Event:       newEventPayload(event),
		Invitations: invited,
	})
}

// List handles GET /api/v1/events, returning the caller's own events.
func (h EventHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	account, ok := requireAccount(ctx, w, r, h.Sessions, h.Accounts)
	if !ok {
		return
	}

	events, err := h.Events.ListForOwner(ctx, account.ID)
	if err != nil {
		logging.FromContext(ctx).Error("failed to list events", "error", err, "ownerId", account.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to list events"})
		return
	}

	payload := make([]eventPayload, 0, len(events))
	for _, event := range events {
		payload = append(payload, newEventPayload(event))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"events": payload})
}

// Get handles GET /api/v1/events/{id}. Anyone may look an event up; the
// returned capabilities tell the client which actions to offer.
func (h EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respondWithEvent(w, r, func() (models.Event, error) {
		return h.Events.FindByID(r.Context(), r.PathValue("id"))
	})
}

// GetByCode handles GET /api/v1/events/code/{code}, the public share link
// lookup.
func (h EventHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	h.respondWithEvent(w, r, func() (models.Event, error) {
		return h.Events.FindByCode(r.Context(), strings.ToUpper(strings.TrimSpace(r.PathValue("code"))))
	})
}

func (h EventHandler) respondWithEvent(w http.ResponseWriter, r *http.Request, lookup func() (models.Event, error)) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	event, err := lookup()
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "event not found"})
			return
		}
		logger.Error("event lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load event"})
		return
	}

	account := resolveAccount(ctx, r, h.Sessions, h.Accounts)
	caps, err := h.capabilitiesFor(ctx, event, account)
	if err != nil {
		logger.Error("capability evaluation failed", "error", err, "eventId", event.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load event"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, eventDetailResponse{
		Event:        newEventPayload(event),
		Capabilities: caps,
	})
}

// Update handles PATCH /api/v1/events/{id}. Only the owner may edit, and
// visibility and deadline stay editable after the event closes.
func (h EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	event, account, ok := h.requireOwnedEvent(w, r)
	if !ok {
		return
	}

	var req updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid event update payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title must not be empty"})
			return
		}
		event.Title = title
	}
	if req.Deadline != nil {
		deadline, err := parseDeadline(*req.Deadline)
		if err != nil {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "deadline must be an RFC 3339 timestamp or YYYY-MM-DD date"})
			return
		}
		// Moving the deadline forward reopens a time-expired event on the
		// next evaluation; clearing it removes expiry entirely.
		event.Deadline = deadline
	}
	if req.Visibility != nil {
		if *req.Visibility != models.VisibilityPublic && *req.Visibility != models.VisibilityPrivate {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "visibility must be public or private"})
			return
		}
		event.Visibility = *req.Visibility
	}
	if req.NotifyOnUpload != nil {
		event.NotifyOnUpload = *req.NotifyOnUpload
	}

	event.UpdatedAt = h.now()
	if err := h.Events.Update(ctx, event); err != nil {
		logger.Error("failed to update event", "error", err, "eventId", event.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update event"})
		return
	}

	caps, err := h.capabilitiesFor(ctx, event, &account)
	if err != nil {
		logger.Error("capability evaluation failed", "error", err, "eventId", event.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load event"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, eventDetailResponse{Event: newEventPayload(event), Capabilities: caps})
}

// Cancel handles POST /api/v1/events/{id}/cancel. Cancellation is terminal.
func (h EventHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	event, _, ok := h.requireOwnedEvent(w, r)
	if !ok {
		return
	}

	if event.Status == models.EventStatusDone || event.Status == models.EventStatusCanceled {
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "event is already closed"})
		return
	}

	if err := h.Events.UpdateStatus(ctx, event.ID, models.EventStatusCanceled); err != nil {
		logger.Error("failed to cancel event", "error", err, "eventId", event.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to cancel event"})
		return
	}

	logger.Info("event canceled", "eventId", event.ID)
	event.Status = models.EventStatusCanceled
	respondJSON(ctx, w, http.StatusOK, map[string]any{"event": newEventPayload(event)})
}

// Delete handles DELETE /api/v1/events/{id}. Invitations and submissions go
// with the event.
func (h EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	event, _, ok := h.requireOwnedEvent(w, r)
	if !ok {
		return
	}

	if err := h.Events.Delete(ctx, event.ID); err != nil {
		logger.Error("failed to delete event", "error", err, "eventId", event.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete event"})
		return
	}

	logger.Info("event deleted", "eventId", event.ID)
	w.WriteHeader(http.StatusNoContent)
}

// FinalVideo handles POST /api/v1/events/{id}/final-video, moving the event
// into processing for the montage pipeline.
func (h EventHandler) FinalVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	event, account, ok := h.requireOwnedEvent(w, r)
	if !ok {
		return
	}

	caps, err := h.capabilitiesFor(ctx, event, &account)
	if err != nil {
		logger.Error("capability evaluation failed", "error", err, "eventId", event.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load event"})
		return
	}
	if !caps.Actions.CanGenerateFinalVideo {
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "event has no clips to assemble or is not open"})
		return
	}

	if err := h.Events.UpdateStatus(ctx, event.ID, models.EventStatusProcessing); err != nil {
		logger.Error("failed to start final video", "error", err, "eventId", event.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to start final video generation"})
		return
	}

	logger.Info("final video generation started", "eventId", event.ID)
	respondJSON(ctx, w, http.StatusAccepted, map[string]string{"status": models.EventStatusProcessing})
}

// FinalVideoComplete handles POST /api/v1/events/{id}/final-video/complete.
// The render worker reports back through the owner's credentials once the
// assembled video is stored. A failed render returns the event to ready so
// generation can be retried.
func (h EventHandler) FinalVideoComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	event, _, ok := h.requireOwnedEvent(w, r)
	if !ok {
		return
	}

	if event.Status != models.EventStatusProcessing {
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "event has no final video generation in progress"})
		return
	}

	var req finalVideoCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("invalid final video completion payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	status := models.EventStatusDone
	if req.Success != nil && !*req.Success {
		status = models.EventStatusReady
	}

	if err := h.Events.UpdateStatus(ctx, event.ID, status); err != nil {
		logger.Error("failed to record final video completion", "error", err, "eventId", event.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to record final video completion"})
		return
	}

	logger.Info("final video generation finished", "eventId", event.ID, "status", status)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": status})
}

// requireOwnedEvent loads the event in the path and checks the caller owns
// it. Non-owners get 403 so event existence still leaks no membership detail.
func (h EventHandler) requireOwnedEvent(w http.ResponseWriter, r *http.Request) (models.Event, models.Account, bool) {
	ctx := r.Context()

	account, ok := requireAccount(ctx, w, r, h.Sessions, h.Accounts)
	if !ok {
		return models.Event{}, models.Account{}, false
	}

	event, err := h.Events.FindByID(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "event not found"})
			return models.Event{}, models.Account{}, false
		}
		logging.FromContext(ctx).Error("event lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load event"})
		return models.Event{}, models.Account{}, false
	}

	if event.OwnerID != account.ID {
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "only the event owner may do this"})
		return models.Event{}, models.Account{}, false
	}

	return event, account, true
}

// capabilitiesFor gathers the caller's invitation, upload history, and the
// owner's premium state, then evaluates the access policy.
func (h EventHandler) capabilitiesFor(ctx context.Context, event models.Event, account *models.Account) (policy.Capabilities, error) {
	return capabilitiesFor(ctx, event, account, h.Invitations, h.Submissions, h.Accounts, h.now())
}

func capabilitiesFor(ctx context.Context, event models.Event, account *models.Account, invitations InvitationStore, submissions SubmissionStore, accounts AccountStore, now time.Time) (policy.Capabilities, error) {
	in := policy.EvaluateInput{Event: event, Account: account, Now: now}

	if account != nil && invitations != nil {
		invitation, err := invitations.FindByEventAndEmail(ctx, event.ID, account.Email)
		switch {
		case err == nil:
			in.Invitation = &invitation
		case !errors.Is(err, repositories.ErrNotFound):
			return policy.Capabilities{}, err
		}
	}

	if account != nil && submissions != nil {
		count, latest, err := submissions.SummaryFor(ctx, event.ID, account.ID)
		if err != nil {
			return policy.Capabilities{}, err
		}
		in.Submissions = policy.SubmissionSummary{Count: count, Latest: latest}
	}

	// The owner's subscription raises limits for everyone, so resolve it even
	// when the caller is someone else.
	if account != nil && account.ID == event.OwnerID {
		in.OwnerPremium = policy.OwnerPremium{IsActive: policy.AccountPremiumActive(*account, now)}
	} else if accounts != nil {
		owner, err := accounts.FindByID(ctx, event.OwnerID)
		if err == nil {
			in.OwnerPremium = policy.OwnerPremium{IsActive: policy.AccountPremiumActive(owner, now)}
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return policy.Capabilities{}, err
		}
	}

	return policy.Evaluate(in), nil
}

func (h EventHandler) inviteEmails(ctx context.Context, event models.Event, owner models.Account, emails []string) []invitationPayload {
	logger := logging.FromContext(ctx)
	now := h.now()

	seen := make(map[string]bool, len(emails))
	created := make([]invitationPayload, 0, len(emails))
	for _, email := range emails {
		email = strings.TrimSpace(strings.ToLower(email))
		if email == "" || email == owner.Email || seen[email] {
			continue
		}
		seen[email] = true

		invitation := models.Invitation{
			ID:        uuid.NewString(),
			EventID:   event.ID,
			Email:     email,
			Status:    models.InvitationStatusSent,
			CreatedAt: now,
		}
		if err := h.Invitations.Create(ctx, invitation); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				continue
			}
			logger.Error("failed to create invitation", "error", err, "eventId", event.ID, "email", email)
			continue
		}

		if h.Notifier != nil {
			h.Notifier.SendInvitation(ctx, email, owner.Email, event.Title, h.eventURL(event))
		}
		created = append(created, newInvitationPayload(invitation))
	}
	return created
}

func (h EventHandler) eventURL(event models.Event) string {
	base := strings.TrimSuffix(h.BaseURL, "/")
	return base + "/events/code/" + event.PublicCode
}

func (h EventHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func parseDeadline(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("unrecognized deadline format")
}

// newPublicCode returns an 8 character share code avoiding easily confused
// characters.
func newPublicCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	const length = 8

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

type createEventRequest struct {
	Title          string   `json:"title"`
	Deadline       string   `json:"deadline"`
	Visibility     string   `json:"visibility"`
	NotifyOnUpload bool     `json:"notifyOnUpload"`
	Invitations    []string `json:"invitations"`
}

type updateEventRequest struct {
	Title          *string `json:"title"`
	Deadline       *string `json:"deadline"`
	Visibility     *string `json:"visibility"`
	NotifyOnUpload *bool   `json:"notifyOnUpload"`
}

// An absent body counts as success; the render worker only posts a payload
// when it has a failure to report.
type finalVideoCompleteRequest struct {
	Success *bool `json:"success"`
}

type eventPayload struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Status         string     `json:"status"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	Visibility     string     `json:"visibility"`
	OwnerID        string     `json:"ownerId"`
	PublicCode     string     `json:"publicCode"`
	NotifyOnUpload bool       `json:"notifyOnUpload"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func newEventPayload(event models.Event) eventPayload {
	return eventPayload{
		ID:             event.ID,
		Title:          event.Title,
		Status:         event.Status,
		Deadline:       event.Deadline,
		Visibility:     event.Visibility,
		OwnerID:        event.OwnerID,
		PublicCode:     event.PublicCode,
		NotifyOnUpload: event.NotifyOnUpload,
		CreatedAt:      event.CreatedAt,
	}
}

type createEventResponse struct {
	Event       eventPayload        `json:"event"`
	Invitations []invitationPayload `json:"invitations"`
}

type eventDetailResponse struct {
	Event        eventPayload        `json:"event"`
	Capabilities policy.Capabilities `json:"capabilities"`
}
