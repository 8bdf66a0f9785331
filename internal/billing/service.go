// Package billing turns boost purchases into premium entitlements. Payments
// run through Stripe Checkout; without a configured key the service activates
// boosts immediately, which keeps local development usable.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
	"github.com/stripe/stripe-go/v75/webhook"
)

// Boost target types.
const (
	TargetAccount = "account"
	TargetEvent   = "event"
)

// DefaultBoostDays applies when a boost request omits its duration.
const DefaultBoostDays = 30

var (
	// ErrEntitlementConflict indicates the target is already covered by an
	// active entitlement; charging again would be a double-charge risk.
	ErrEntitlementConflict = errors.New("entitlement already active")
	// ErrUnknownTarget indicates an unsupported boost target type.
	ErrUnknownTarget = errors.New("unknown boost target type")
)

// BoostRequest asks for a premium window on an account or an event.
type BoostRequest struct {
	TargetType   string
	TargetID     string
	DurationDays int
	PayerEmail   string
}

// BoostResult is either a redirect to pay or an immediate activation.
type BoostResult struct {
	CheckoutURL string
	Activated   bool
	ExpiresAt   time.Time
}

// EntitlementWriter applies confirmed boosts to durable storage. New
// entitlements take effect on the next policy evaluation, never retroactively.
type EntitlementWriter interface {
	ActivateAccountPremium(ctx context.Context, accountID string, expiresAt time.Time) error
	ActivateEventBoost(ctx context.Context, eventID string, expiresAt time.Time) error
}

// Config carries the Stripe credentials and checkout endpoints.
type Config struct {
	SecretKey      string
	WebhookSecret  string
	SuccessURL     string
	CancelURL      string
	AccountPriceID string
	EventPriceID   string
}

// Service creates checkout sessions and applies completed payments.
type Service struct {
	api     *client.API
	cfg     Config
	writer  EntitlementWriter
	logger  *slog.Logger
	NowFunc func() time.Time
}

// NewService constructs a billing service. An empty secret key enables
// immediate-activation mode.
func NewService(cfg Config, writer EntitlementWriter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	var api *client.API
	if cfg.SecretKey != "" {
		api = &client.API{}
		api.Init(cfg.SecretKey, nil)
	}

	return &Service{
		api:    api,
		cfg:    cfg,
		writer: writer,
		logger: logger,
	}
}

// CreateBoost starts a boost purchase for the requested target. It returns a
// checkout URL to redirect the payer to, or an immediate activation when no
// payment backend is configured.
func (s *Service) CreateBoost(ctx context.Context, req BoostRequest) (BoostResult, error) {
	if req.TargetID == "" {
		return BoostResult{}, errors.New("boost target id is required")
	}
	if req.DurationDays <= 0 {
		req.DurationDays = DefaultBoostDays
	}

	var priceID string
	switch req.TargetType {
	case TargetAccount:
		priceID = s.cfg.AccountPriceID
	case TargetEvent:
		priceID = s.cfg.EventPriceID
	default:
		return BoostResult{}, ErrUnknownTarget
	}

	if s.api == nil {
		expiresAt := s.now().Add(time.Duration(req.DurationDays) * 24 * time.Hour)
		if err := s.activate(ctx, req.TargetType, req.TargetID, expiresAt); err != nil {
			return BoostResult{}, err
		}
		s.logger.Info("boost activated without payment backend",
			"targetType", req.TargetType, "targetId", req.TargetID, "expiresAt", expiresAt)
		return BoostResult{Activated: true, ExpiresAt: expiresAt}, nil
	}

	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(s.cfg.SuccessURL),
		CancelURL:     stripe.String(s.cfg.CancelURL),
		CustomerEmail: stripe.String(req.PayerEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		ClientReferenceID: stripe.String(req.TargetID),
	}
	params.AddMetadata("target_type", req.TargetType)
	params.AddMetadata("target_id", req.TargetID)
	params.AddMetadata("duration_days", strconv.Itoa(req.DurationDays))

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return BoostResult{}, fmt.Errorf("create checkout session: %w", err)
	}

	return BoostResult{CheckoutURL: sess.URL}, nil
}

// HandleWebhook verifies a Stripe webhook payload and applies completed
// checkouts. Unhandled event types are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		s.logger.Debug("ignoring stripe event", "type", event.Type)
		return nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("parse checkout session: %w", err)
	}

	return s.ApplyCompletedCheckout(ctx, sess.Metadata)
}

// ApplyCompletedCheckout activates the entitlement described by a completed
// checkout session's metadata.
func (s *Service) ApplyCompletedCheckout(ctx context.Context, metadata map[string]string) error {
	targetType := metadata["target_type"]
	targetID := metadata["target_id"]
	if targetID == "" {
		return errors.New("checkout session missing target metadata")
	}

	days, err := strconv.Atoi(metadata["duration_days"])
	if err != nil || days <= 0 {
		days = DefaultBoostDays
	}

	expiresAt := s.now().Add(time.Duration(days) * 24 * time.Hour)
	if err := s.activate(ctx, targetType, targetID, expiresAt); err != nil {
		return err
	}

	s.logger.Info("boost activated", "targetType", targetType, "targetId", targetID, "expiresAt", expiresAt)
	return nil
}

func (s *Service) activate(ctx context.Context, targetType, targetID string, expiresAt time.Time) error {
	if s.writer == nil {
		return errors.New("billing: entitlement writer unavailable")
	}

	switch targetType {
	case TargetAccount:
		return s.writer.ActivateAccountPremium(ctx, targetID, expiresAt)
	case TargetEvent:
		return s.writer.ActivateEventBoost(ctx, targetID, expiresAt)
	default:
		return ErrUnknownTarget
	}
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}
