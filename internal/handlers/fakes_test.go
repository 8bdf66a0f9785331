package handlers

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gregaplay/backend/internal/auth"
	"github.com/gregaplay/backend/internal/billing"
	"github.com/gregaplay/backend/internal/models"
	"github.com/gregaplay/backend/internal/repositories"
	"github.com/gregaplay/backend/internal/uploads"
)

type inMemoryAccountStore struct {
	accounts map[string]models.Account
}

func newInMemoryAccountStore() *inMemoryAccountStore {
	return &inMemoryAccountStore{accounts: make(map[string]models.Account)}
}

func (s *inMemoryAccountStore) Create(_ context.Context, account models.Account) error {
	for _, existing := range s.accounts {
		if existing.Email == account.Email {
			return repositories.ErrConflict
		}
	}
	s.accounts[account.ID] = account
	return nil
}

func (s *inMemoryAccountStore) FindByEmail(_ context.Context, email string) (models.Account, error) {
	for _, account := range s.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return models.Account{}, repositories.ErrNotFound
}

func (s *inMemoryAccountStore) FindByID(_ context.Context, id string) (models.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return models.Account{}, repositories.ErrNotFound
	}
	return account, nil
}

type inMemoryEventStore struct {
	events map[string]models.Event
}

func newInMemoryEventStore() *inMemoryEventStore {
	return &inMemoryEventStore{events: make(map[string]models.Event)}
}

func (s *inMemoryEventStore) Create(_ context.Context, event models.Event) error {
	s.events[event.ID] = event
	return nil
}

func (s *inMemoryEventStore) FindByID(_ context.Context, id string) (models.Event, error) {
	event, ok := s.events[id]
	if !ok {
		return models.Event{}, repositories.ErrNotFound
	}
	return event, nil
}

func (s *inMemoryEventStore) FindByCode(_ context.Context, code string) (models.Event, error) {
	for _, event := range s.events {
		if event.PublicCode == code {
			return event, nil
		}
	}
	return models.Event{}, repositories.ErrNotFound
}

func (s *inMemoryEventStore) ListForOwner(_ context.Context, ownerID string) ([]models.Event, error) {
	var out []models.Event
	for _, event := range s.events {
		if event.OwnerID == ownerID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *inMemoryEventStore) Update(_ context.Context, event models.Event) error {
	if _, ok := s.events[event.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.events[event.ID] = event
	return nil
}

func (s *inMemoryEventStore) UpdateStatus(_ context.Context, eventID, status string) error {
	event, ok := s.events[eventID]
	if !ok {
		return repositories.ErrNotFound
	}
	event.Status = status
	s.events[eventID] = event
	return nil
}

func (s *inMemoryEventStore) Delete(_ context.Context, eventID string) error {
	if _, ok := s.events[eventID]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.events, eventID)
	return nil
}

type inMemoryInvitationStore struct {
	invitations map[string]models.Invitation
}

func newInMemoryInvitationStore() *inMemoryInvitationStore {
	return &inMemoryInvitationStore{invitations: make(map[string]models.Invitation)}
}

func (s *inMemoryInvitationStore) Create(_ context.Context, invitation models.Invitation) error {
	for _, existing := range s.invitations {
		if existing.EventID == invitation.EventID && existing.Email == invitation.Email {
			return repositories.ErrConflict
		}
	}
	s.invitations[invitation.ID] = invitation
	return nil
}

func (s *inMemoryInvitationStore) FindByID(_ context.Context, id string) (models.Invitation, error) {
	invitation, ok := s.invitations[id]
	if !ok {
		return models.Invitation{}, repositories.ErrNotFound
	}
	return invitation, nil
}

func (s *inMemoryInvitationStore) FindByEventAndEmail(_ context.Context, eventID, email string) (models.Invitation, error) {
	for _, invitation := range s.invitations {
		if invitation.EventID == eventID && invitation.Email == email {
			return invitation, nil
		}
	}
	return models.Invitation{}, repositories.ErrNotFound
}

func (s *inMemoryInvitationStore) ListForEvent(_ context.Context, eventID string) ([]models.Invitation, error) {
	var out []models.Invitation
	for _, invitation := range s.invitations {
		if invitation.EventID == eventID {
			out = append(out, invitation)
		}
	}
	return out, nil
}

func (s *inMemoryInvitationStore) UpdateStatus(_ context.Context, invitationID, status string) error {
	invitation, ok := s.invitations[invitationID]
	if !ok {
		return repositories.ErrNotFound
	}
	invitation.Status = status
	s.invitations[invitationID] = invitation
	return nil
}

type inMemorySubmissionStore struct {
	submissions map[string]models.VideoSubmission
}

func newInMemorySubmissionStore() *inMemorySubmissionStore {
	return &inMemorySubmissionStore{submissions: make(map[string]models.VideoSubmission)}
}

func (s *inMemorySubmissionStore) Create(_ context.Context, submission models.VideoSubmission) error {
	s.submissions[submission.ID] = submission
	return nil
}

func (s *inMemorySubmissionStore) FindByID(_ context.Context, id string) (models.VideoSubmission, error) {
	submission, ok := s.submissions[id]
	if !ok {
		return models.VideoSubmission{}, repositories.ErrNotFound
	}
	return submission, nil
}

func (s *inMemorySubmissionStore) SummaryFor(_ context.Context, eventID, accountID string) (int, *models.VideoSubmission, error) {
	var count int
	var latest *models.VideoSubmission
	for _, submission := range s.submissions {
		if submission.EventID != eventID || submission.AccountID != accountID {
			continue
		}
		count++
		sub := submission
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
			latest = &sub
		}
	}
	return count, latest, nil
}

func (s *inMemorySubmissionStore) ListForEvent(_ context.Context, eventID string) ([]models.VideoSubmission, error) {
	var out []models.VideoSubmission
	for _, submission := range s.submissions {
		if submission.EventID == eventID {
			out = append(out, submission)
		}
	}
	return out, nil
}

func (s *inMemorySubmissionStore) ListForParticipant(_ context.Context, eventID, accountID string) ([]models.VideoSubmission, error) {
	var out []models.VideoSubmission
	for _, submission := range s.submissions {
		if submission.EventID == eventID && submission.AccountID == accountID {
			out = append(out, submission)
		}
	}
	return out, nil
}

func (s *inMemorySubmissionStore) Delete(_ context.Context, id string) error {
	if _, ok := s.submissions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.submissions, id)
	return nil
}

type recordingNotifier struct {
	invitations []string
	uploads     []string
}

func (n *recordingNotifier) SendInvitation(_ context.Context, to, _, _, _ string) {
	n.invitations = append(n.invitations, to)
}

func (n *recordingNotifier) SendUploadReceived(_ context.Context, to, _, _ string) {
	n.uploads = append(n.uploads, to)
}

type stubBoostService struct {
	result billing.BoostResult
	err    error
	last   billing.BoostRequest
}

func (s *stubBoostService) CreateBoost(_ context.Context, req billing.BoostRequest) (billing.BoostResult, error) {
	s.last = req
	return s.result, s.err
}

func (s *stubBoostService) HandleWebhook(context.Context, []byte, string) error {
	return s.err
}

type stubChecker struct {
	duration float64
	err      error
}

func (c stubChecker) Check(context.Context, string, int64, string) (float64, error) {
	return c.duration, c.err
}

type stubUploader struct {
	location string
	err      error
	stored   int
}

func (u *stubUploader) Store(_ context.Context, eventID, submissionID, _ string, _ io.Reader, _ int64, observer func(uploads.Progress)) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.stored++
	if observer != nil {
		observer(uploads.Progress{Percent: 100})
	}
	return u.location + "/" + eventID + "/" + submissionID, nil
}

// loginAs issues a session for the account and returns the Authorization
// header value.
func loginAs(t *testing.T, manager SessionManager, accountID string) string {
	t.Helper()
	tokens, err := manager.Issue(context.Background(), accountID)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	return "Bearer " + tokens.AccessToken
}

func newSessionManager() *auth.Manager {
	return auth.NewManager(time.Minute, time.Hour, auth.NewInMemorySessionStore())
}

func authed(r *http.Request, header string) *http.Request {
	r.Header.Set("Authorization", header)
	return r
}
