package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gregaplay/backend/internal/logging"
	"github.com/gregaplay/backend/internal/models"
	"github.com/gregaplay/backend/internal/repositories"
)

// InvitationHandler implements invitation management endpoints.
type InvitationHandler struct {
	Accounts    AccountStore
	Sessions    SessionManager
	Events      EventStore
	Invitations InvitationStore
	Submissions SubmissionStore
	Notifier    Notifier
	BaseURL     string
	NowFunc     func() time.Time
}

// Add handles POST /api/v1/events/{id}/invitations, accepting a batch of
// email addresses. Already invited addresses are skipped silently.
func (h InvitationHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	events := EventHandler{
		Accounts:    h.Accounts,
		Sessions:    h.Sessions,
		Events:      h.Events,
		Invitations: h.Invitations,
		Submissions: h.Submissions,
		Notifier:    h.Notifier,
		BaseURL:     h.BaseURL,
		NowFunc:     h.NowFunc,
	}

	event, account, ok := events.requireOwnedEvent(w, r)
	if !ok {
		return
	}

	caps, err := events.capabilitiesFor(ctx, event, &account)
	if err != nil {
		logger.Error("capability evaluation failed", "error", err, "eventId", event.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load event"})
		return
	}
	if !caps.Actions.CanManageInvitations {
		respondJSON(ctx, w, http.StatusGone, map[string]string{"error": "event is closed to new invitations"})
		return
	}

	var req addInvitationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid invitation payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Emails) == 0 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "at least one email is required"})
		return
	}

	created := events.inviteEmails(ctx, event, account, req.Emails)
	respondJSON(ctx, w, http.StatusCreated, map[string]any{"invitations": created})
}

// List handles GET /api/v1/events/{id}/invitations for the event owner.
func (h InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	events := EventHandler{Accounts: h.Accounts, Sessions: h.Sessions, Events: h.Events}
	event, _, ok := events.requireOwnedEvent(w, r)
	if !ok {
		return
	}

	invitations, err := h.Invitations.ListForEvent(ctx, event.ID)
	if err != nil {
		logging.FromContext(ctx).Error("failed to list invitations", "error", err, "eventId", event.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to list invitations"})
		return
	}

	payload := make([]invitationPayload, 0, len(invitations))
	for _, invitation := range invitations {
		payload = append(payload, newInvitationPayload(invitation))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"invitations": payload})
}

// Respond handles POST /api/v1/invitations/{id}/respond. Only the invited
// address may answer, and an answer is final.
func (h InvitationHandler) Respond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	account, ok := requireAccount(ctx, w, r, h.Sessions, h.Accounts)
	if !ok {
		return
	}

	invitation, err := h.Invitations.FindByID(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "invitation not found"})
			return
		}
		logger.Error("invitation lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load invitation"})
		return
	}

	if invitation.Email != account.Email {
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "this invitation is addressed to someone else"})
		return
	}
	if invitation.Status != models.InvitationStatusSent {
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "invitation already answered"})
		return
	}

	var req respondInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid invitation response payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var status string
	switch req.Action {
	case "accept":
		status = models.InvitationStatusAccepted
	case "decline":
		status = models.InvitationStatusDeclined
	default:
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "action must be accept or decline"})
		return
	}

	if err := h.Invitations.UpdateStatus(ctx, invitation.ID, status); err != nil {
		logger.Error("failed to update invitation", "error", err, "invitationId", invitation.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to record response"})
		return
	}

	logger.Info("invitation answered", "invitationId", invitation.ID, "status", status)
	invitation.Status = status
	respondJSON(ctx, w, http.StatusOK, map[string]any{"invitation": newInvitationPayload(invitation)})
}

type addInvitationsRequest struct {
	Emails []string `json:"emails"`
}

type respondInvitationRequest struct {
	Action string `json:"action"`
}

type invitationPayload struct {
	ID          string     `json:"id"`
	EventID     string     `json:"eventId"`
	Email       string     `json:"email"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

func newInvitationPayload(invitation models.Invitation) invitationPayload {
	return invitationPayload{
		ID:          invitation.ID,
		EventID:     invitation.EventID,
		Email:       invitation.Email,
		Status:      invitation.Status,
		CreatedAt:   invitation.CreatedAt,
		RespondedAt: invitation.RespondedAt,
	}
}
