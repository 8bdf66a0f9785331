package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/gregaplay/backend/internal/auth"
	"github.com/gregaplay/backend/internal/billing"
	"github.com/gregaplay/backend/internal/config"
	"github.com/gregaplay/backend/internal/db"
	"github.com/gregaplay/backend/internal/handlers"
	"github.com/gregaplay/backend/internal/middleware"
	"github.com/gregaplay/backend/internal/notify"
	"github.com/gregaplay/backend/internal/repositories"
	"github.com/gregaplay/backend/internal/storage"
	"github.com/gregaplay/backend/internal/uploads"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup releases background resources.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, func(context.Context) error, error) {
	logger := slog.Default()

	accounts := repositories.NewPostgresAccountRepository(pool)
	events := repositories.NewPostgresEventRepository(pool)
	invitations := repositories.NewPostgresInvitationRepository(pool)
	submissions := repositories.NewPostgresSubmissionRepository(pool)
	sessionStore := repositories.NewPostgresSessionStore(pool)

	prober := uploads.NewFFProbeProber(cfg.FFProbePath, cfg.FFProbeTimeout)
	checker := uploads.NewEligibilityGuard(prober)

	var clipStore uploads.ClipStorage
	if cfg.ObjectStore.Bucket != "" {
		s3Store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure object storage: %w", err)
		}
		clipStore = s3Store
	} else {
		localStore, err := storage.NewLocalStorage(cfg.ObjectStore.LocalDir, cfg.ObjectStore.PublicBaseURL)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure local storage: %w", err)
		}
		clipStore = localStore
	}
	uploader := uploads.NewUploader(clipStore, logger)

	boosts := billing.NewService(billing.Config{
		SecretKey:      cfg.Stripe.SecretKey,
		WebhookSecret:  cfg.Stripe.WebhookSecret,
		SuccessURL:     cfg.Stripe.SuccessURL,
		CancelURL:      cfg.Stripe.CancelURL,
		AccountPriceID: cfg.Stripe.AccountPriceID,
		EventPriceID:   cfg.Stripe.EventPriceID,
	}, entitlementWriter{accounts: accounts, events: events}, logger)

	translator := notify.NewTranslator(cfg.DefaultLocale, logger)
	var sender notify.Sender = notify.NopSender{}
	if cfg.SMTP.Host != "" {
		var smtpAuth smtp.Auth
		if cfg.SMTP.Username != "" {
			smtpAuth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Host)
		}
		sender = &notify.SMTPSender{
			Addr: fmt.Sprintf("%s:%d", cfg.SMTP.Host, cfg.SMTP.Port),
			From: cfg.SMTP.From,
			Auth: smtpAuth,
		}
	}
	mailer := notify.NewMailer(translator, sender, cfg.DefaultLocale, logger)

	deps := handlers.Dependencies{
		Accounts:    accounts,
		Sessions:    auth.NewManager(cfg.AccessTokenTTL, cfg.SessionTTL, sessionStore),
		Events:      events,
		Invitations: invitations,
		Submissions: submissions,
		Checker:     checker,
		Uploader:    uploader,
		Boosts:      boosts,
		Notifier:    mailer,

		AuthLimiter:   middleware.NewIPRateLimiter(int(cfg.RateLimitPerSec), time.Second, cfg.RateLimitBurst, 10*time.Minute),
		UploadLimiter: middleware.NewIPRateLimiter(int(cfg.UploadsPerMinute), time.Minute, cfg.UploadBurst, 10*time.Minute),
		BaseURL:       cfg.AppBaseURL,
	}

	cleanup := func(context.Context) error { return nil }
	return deps, cleanup, nil
}

// entitlementWriter adapts the repositories to the billing service.
type entitlementWriter struct {
	accounts repositories.AccountRepository
	events   repositories.EventRepository
}

func (w entitlementWriter) ActivateAccountPremium(ctx context.Context, accountID string, expiresAt time.Time) error {
	return w.accounts.ActivatePremium(ctx, accountID, expiresAt)
}

func (w entitlementWriter) ActivateEventBoost(ctx context.Context, eventID string, expiresAt time.Time) error {
	return w.events.ActivateBoost(ctx, eventID, expiresAt)
}
