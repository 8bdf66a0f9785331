package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gregaplay/backend/internal/logging"
	"github.com/gregaplay/backend/internal/models"
	"github.com/gregaplay/backend/internal/policy"
	"github.com/gregaplay/backend/internal/repositories"
	"github.com/gregaplay/backend/internal/uploads"
)

// multipartOverhead pads the request size limit beyond the clip ceiling to
// leave room for boundaries and text fields.
const multipartOverhead = 1 << 20

// VideoHandler implements clip upload and listing endpoints.
type VideoHandler struct {
	Accounts    AccountStore
	Sessions    SessionManager
	Events      EventStore
	Invitations InvitationStore
	Submissions SubmissionStore
	Checker     ClipChecker
	Uploader    ClipUploader
	Notifier    Notifier
	Limiter     RateLimiter
	NowFunc     func() time.Time
}

// Create handles POST /api/v1/events/{id}/videos. The clip is staged to a
// temp file, validated against the fixed ceilings, re-checked against the
// access policy, and only then streamed to storage.
func (h VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "uploads") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many uploads, slow down"})
		return
	}

	account, ok := requireAccount(ctx, w, r, h.Sessions, h.Accounts)
	if !ok {
		return
	}

	event, err := h.Events.FindByID(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "event not found"})
			return
		}
		logger.Error("event lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load event"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, policy.MaxClipSizeBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		logger.Warn("invalid multipart payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "expected a multipart upload with a video part"})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("video")
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "a video part is required"})
		return
	}
	defer file.Close()

	staged, err := stageClip(file)
	if err != nil {
		logger.Error("failed to stage clip", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to receive upload"})
		return
	}
	defer os.Remove(staged.path)

	duration, err := h.Checker.Check(ctx, header.Header.Get("Content-Type"), staged.size, staged.path)
	if err != nil {
		var vErr *uploads.ValidationError
		if errors.As(err, &vErr) {
			logger.Warn("clip rejected before transfer", "constraint", vErr.Constraint, "eventId", event.ID)
			respondJSON(ctx, w, http.StatusUnprocessableEntity, map[string]string{
				"error":      vErr.Message,
				"constraint": vErr.Constraint,
			})
			return
		}
		logger.Error("clip validation failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to validate upload"})
		return
	}

	// The guard above is advisory; this evaluation is the authoritative
	// decision and runs against freshly read rows.
	caps, err := capabilitiesFor(ctx, event, &account, h.Invitations, h.Submissions, h.Accounts, h.now())
	if err != nil {
		logger.Error("capability evaluation failed", "error", err, "eventId", event.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load event"})
		return
	}
	if !caps.Actions.CanSubmitVideo {
		switch {
		case caps.State.IsClosed:
			respondJSON(ctx, w, http.StatusGone, map[string]string{"error": "event is closed to new uploads"})
		case caps.State.HasReachedUploadLimit:
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "upload limit reached for this event"})
		default:
			respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "you may not upload to this event"})
		}
		return
	}

	clip, err := os.Open(staged.path)
	if err != nil {
		logger.Error("failed to reopen staged clip", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to receive upload"})
		return
	}
	defer clip.Close()

	submissionID := uuid.NewString()
	var lastProgress uploads.Progress
	location, err := h.Uploader.Store(ctx, event.ID, submissionID, header.Filename, clip, staged.size, func(p uploads.Progress) {
		lastProgress = p
	})
	if err != nil {
		logger.Error("failed to store clip", "error", err, "eventId", event.ID, "progress", lastProgress.Percent)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "failed to store upload"})
		return
	}

	submission := models.VideoSubmission{
		ID:              submissionID,
		EventID:         event.ID,
		AccountID:       account.ID,
		ParticipantName: strings.TrimSpace(r.FormValue("participantName")),
		Location:        location,
		SizeBytes:       staged.size,
		DurationSeconds: duration,
		CreatedAt:       h.now(),
	}
	if submission.ParticipantName == "" {
		submission.ParticipantName = account.Email
	}

	if err := h.Submissions.Create(ctx, submission); err != nil {
		logger.Error("failed to record submission", "error", err, "eventId", event.ID, "submissionId", submissionID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to record upload"})
		return
	}

	if event.NotifyOnUpload && h.Notifier != nil && account.ID != event.OwnerID {
		if owner, err := h.Accounts.FindByID(ctx, event.OwnerID); err == nil {
			h.Notifier.SendUploadReceived(ctx, owner.Email, submission.ParticipantName, event.Title)
		}
	}

	logger.Info("clip submitted", "eventId", event.ID, "submissionId", submissionID, "durationSeconds", duration, "sizeBytes", staged.size)
	respondJSON(ctx, w, http.StatusCreated, map[string]any{"submission": newSubmissionPayload(submission)})
}

// List handles GET /api/v1/events/{id}/videos. The owner sees every clip;
// participants see their own.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	account, ok := requireAccount(ctx, w, r, h.Sessions, h.Accounts)
	if !ok {
		return
	}

	event, err := h.Events.FindByID(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "event not found"})
			return
		}
		logger.Error("event lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load event"})
		return
	}

	var submissions []models.VideoSubmission
	if event.OwnerID == account.ID {
		submissions, err = h.Submissions.ListForEvent(ctx, event.ID)
	} else {
		submissions, err = h.Submissions.ListForParticipant(ctx, event.ID, account.ID)
	}
	if err != nil {
		logger.Error("failed to list submissions", "error", err, "eventId", event.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to list uploads"})
		return
	}

	payload := make([]submissionPayload, 0, len(submissions))
	for _, submission := range submissions {
		payload = append(payload, newSubmissionPayload(submission))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"submissions": payload})
}

// Delete handles DELETE /api/v1/videos/{id}. Reserved to the event owner.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	account, ok := requireAccount(ctx, w, r, h.Sessions, h.Accounts)
	if !ok {
		return
	}

	submission, err := h.Submissions.FindByID(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
			return
		}
		logger.Error("submission lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load video"})
		return
	}

	event, err := h.Events.FindByID(ctx, submission.EventID)
	if err != nil {
		logger.Error("event lookup failed", "error", err, "eventId", submission.EventID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load event"})
		return
	}

	if event.OwnerID != account.ID {
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "only the event owner may delete videos"})
		return
	}

	if err := h.Submissions.Delete(ctx, submission.ID); err != nil {
		logger.Error("failed to delete submission", "error", err, "submissionId", submission.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete video"})
		return
	}

	logger.Info("submission deleted", "submissionId", submission.ID, "eventId", event.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type stagedClip struct {
	path string
	size int64
}

// stageClip copies the uploaded part to a temp file so the duration prober
// can seek through it.
func stageClip(r io.Reader) (stagedClip, error) {
	tmp, err := os.CreateTemp("", "gregaplay-clip-*")
	if err != nil {
		return stagedClip{}, err
	}

	size, err := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return stagedClip{}, err
	}
	if closeErr != nil {
		os.Remove(tmp.Name())
		return stagedClip{}, closeErr
	}

	return stagedClip{path: tmp.Name(), size: size}, nil
}

type submissionPayload struct {
	ID              string    `json:"id"`
	EventID         string    `json:"eventId"`
	AccountID       string    `json:"accountId"`
	ParticipantName string    `json:"participantName"`
	Location        string    `json:"location"`
	SizeBytes       int64     `json:"sizeBytes"`
	DurationSeconds float64   `json:"durationSeconds"`
	CreatedAt       time.Time `json:"createdAt"`
}

func newSubmissionPayload(submission models.VideoSubmission) submissionPayload {
	return submissionPayload{
		ID:              submission.ID,
		EventID:         submission.EventID,
		AccountID:       submission.AccountID,
		ParticipantName: submission.ParticipantName,
		Location:        submission.Location,
		SizeBytes:       submission.SizeBytes,
		DurationSeconds: submission.DurationSeconds,
		CreatedAt:       submission.CreatedAt,
	}
}
