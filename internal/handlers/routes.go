package handlers

import (
	"net/http"
	"time"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts    AccountStore
	Sessions    SessionManager
	Events      EventStore
	Invitations InvitationStore
	Submissions SubmissionStore
	Checker     ClipChecker
	Uploader    ClipUploader
	Boosts      BoostService
	Notifier    Notifier

	AuthLimiter   RateLimiter
	UploadLimiter RateLimiter
	BaseURL       string
	NowFunc       func() time.Time
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Accounts: deps.Accounts, Sessions: deps.Sessions, Limiter: deps.AuthLimiter, NowFunc: deps.NowFunc}
	events := EventHandler{
		Accounts:    deps.Accounts,
		Sessions:    deps.Sessions,
		Events:      deps.Events,
		Invitations: deps.Invitations,
		Submissions: deps.Submissions,
		Notifier:    deps.Notifier,
		BaseURL:     deps.BaseURL,
		NowFunc:     deps.NowFunc,
	}
	invitations := InvitationHandler{
		Accounts:    deps.Accounts,
		Sessions:    deps.Sessions,
		Events:      deps.Events,
		Invitations: deps.Invitations,
		Submissions: deps.Submissions,
		Notifier:    deps.Notifier,
		BaseURL:     deps.BaseURL,
		NowFunc:     deps.NowFunc,
	}
	videos := VideoHandler{
		Accounts:    deps.Accounts,
		Sessions:    deps.Sessions,
		Events:      deps.Events,
		Invitations: deps.Invitations,
		Submissions: deps.Submissions,
		Checker:     deps.Checker,
		Uploader:    deps.Uploader,
		Notifier:    deps.Notifier,
		Limiter:     deps.UploadLimiter,
		NowFunc:     deps.NowFunc,
	}
	billing := BillingHandler{
		Accounts: deps.Accounts,
		Sessions: deps.Sessions,
		Events:   deps.Events,
		Boosts:   deps.Boosts,
		NowFunc:  deps.NowFunc,
	}

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /api/v1/auth/login", auth.Login)
	mux.HandleFunc("POST /api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("POST /api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("POST /api/v1/auth/password-reset", auth.RequestPasswordReset)

	mux.HandleFunc("POST /api/v1/events", events.Create)
	mux.HandleFunc("GET /api/v1/events", events.List)
	mux.HandleFunc("GET /api/v1/events/{id}", events.Get)
	mux.HandleFunc("PATCH /api/v1/events/{id}", events.Update)
	mux.HandleFunc("DELETE /api/v1/events/{id}", events.Delete)
	mux.HandleFunc("POST /api/v1/events/{id}/cancel", events.Cancel)
	mux.HandleFunc("POST /api/v1/events/{id}/final-video", events.FinalVideo)
	mux.HandleFunc("POST /api/v1/events/{id}/final-video/complete", events.FinalVideoComplete)
	mux.HandleFunc("GET /api/v1/events/code/{code}", events.GetByCode)

	mux.HandleFunc("POST /api/v1/events/{id}/invitations", invitations.Add)
	mux.HandleFunc("GET /api/v1/events/{id}/invitations", invitations.List)
	mux.HandleFunc("POST /api/v1/invitations/{id}/respond", invitations.Respond)

	mux.HandleFunc("POST /api/v1/events/{id}/videos", videos.Create)
	mux.HandleFunc("GET /api/v1/events/{id}/videos", videos.List)
	mux.HandleFunc("DELETE /api/v1/videos/{id}", videos.Delete)

	mux.HandleFunc("POST /api/v1/billing/boost", billing.Boost)
	mux.HandleFunc("POST /api/v1/billing/webhook", billing.Webhook)
}
