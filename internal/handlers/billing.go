package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gregaplay/backend/internal/billing"
	"github.com/gregaplay/backend/internal/logging"
	"github.com/gregaplay/backend/internal/policy"
	"github.com/gregaplay/backend/internal/repositories"
)

// maxWebhookBody bounds Stripe webhook payload reads.
const maxWebhookBody = 64 * 1024

// BillingHandler implements boost purchase endpoints.
type BillingHandler struct {
	Accounts AccountStore
	Sessions SessionManager
	Events   EventStore
	Boosts   BoostService
	NowFunc  func() time.Time
}

// Boost handles POST /api/v1/billing/boost. A target already covered by an
// active entitlement is refused before any checkout session exists, so the
// payer cannot be double-charged.
func (h BillingHandler) Boost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	account, ok := requireAccount(ctx, w, r, h.Sessions, h.Accounts)
	if !ok {
		return
	}

	var req boostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid boost payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	now := h.now()
	switch req.TargetType {
	case billing.TargetAccount:
		if req.TargetID == "" {
			req.TargetID = account.ID
		}
		if req.TargetID != account.ID {
			respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "you may only boost your own account"})
			return
		}
		if policy.AccountPremiumActive(account, now) {
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "account premium is already active"})
			return
		}
	case billing.TargetEvent:
		event, err := h.Events.FindByID(ctx, req.TargetID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "event not found"})
				return
			}
			logger.Error("event lookup failed", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load event"})
			return
		}
		if event.OwnerID != account.ID {
			respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "only the event owner may boost it"})
			return
		}
		if policy.EventBoostActive(event, now) {
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "event boost is already active"})
			return
		}
		if owner, err := h.Accounts.FindByID(ctx, event.OwnerID); err == nil && policy.AccountPremiumActive(owner, now) {
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "your subscription already covers this event"})
			return
		}
	default:
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "targetType must be account or event"})
		return
	}

	result, err := h.Boosts.CreateBoost(ctx, billing.BoostRequest{
		TargetType:   req.TargetType,
		TargetID:     req.TargetID,
		DurationDays: req.DurationDays,
		PayerEmail:   account.Email,
	})
	if err != nil {
		if errors.Is(err, billing.ErrEntitlementConflict) {
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "entitlement already active"})
			return
		}
		if errors.Is(err, billing.ErrUnknownTarget) {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "targetType must be account or event"})
			return
		}
		logger.Error("failed to create boost", "error", err, "targetType", req.TargetType, "targetId", req.TargetID)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "failed to start payment"})
		return
	}

	if result.Activated {
		respondJSON(ctx, w, http.StatusCreated, boostResponse{Activated: true, ExpiresAt: &result.ExpiresAt})
		return
	}
	respondJSON(ctx, w, http.StatusOK, boostResponse{CheckoutURL: result.CheckoutURL})
}

// Webhook handles POST /api/v1/billing/webhook from Stripe.
func (h BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		logger.Warn("failed to read webhook payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	if err := h.Boosts.HandleWebhook(ctx, payload, r.Header.Get("Stripe-Signature")); err != nil {
		logger.Warn("webhook rejected", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid webhook"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h BillingHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type boostRequest struct {
	TargetType   string `json:"targetType"`
	TargetID     string `json:"targetId"`
	DurationDays int    `json:"durationDays"`
}

type boostResponse struct {
	CheckoutURL string     `json:"checkoutUrl,omitempty"`
	Activated   bool       `json:"activated"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}
