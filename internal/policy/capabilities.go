package policy

import "github.com/gregaplay/backend/internal/models"

// Upload and clip limits shared by every tier. Premium changes the upload
// ceiling, never the per-clip constraints.
const (
	MaxUploadsUnlimited    = -1
	FreeMaxUploadsPerEvent = 1
	MaxClipDurationSeconds = 30
	MaxClipSizeBytes       = 50 * 1024 * 1024
)

// Role describes how the caller relates to the event.
type Role struct {
	IsOwner       bool `json:"isOwner"`
	IsInvited     bool `json:"isInvited"`
	IsPublicGuest bool `json:"isPublicGuest"`
}

// Actions enumerates what the caller may currently do on the event.
type Actions struct {
	CanView                 bool `json:"canView"`
	CanJoin                 bool `json:"canJoin"`
	CanSubmitVideo          bool `json:"canSubmitVideo"`
	CanUploadMultipleVideos bool `json:"canUploadMultipleVideos"`
	CanManageInvitations    bool `json:"canManageInvitations"`
	CanToggleVisibility     bool `json:"canToggleVisibility"`
	CanEditDeadline         bool `json:"canEditDeadline"`
	CanGenerateFinalVideo   bool `json:"canGenerateFinalVideo"`
}

// Limits carries the numeric ceilings applying to the caller on the event.
// MaxUploadsPerEvent is MaxUploadsUnlimited when the event is effectively
// premium.
type Limits struct {
	MaxUploadsPerEvent     int   `json:"maxUploadsPerEvent"`
	MaxClipDurationSeconds int   `json:"maxClipDurationSeconds"`
	MaxClipSizeBytes       int64 `json:"maxClipSizeBytes"`
}

// State exposes derived facts useful to callers rendering the event page.
type State struct {
	IsClosed              bool                    `json:"isClosed"`
	IsEffectivelyPremium  bool                    `json:"isEffectivelyPremium"`
	HasReachedUploadLimit bool                    `json:"hasReachedUploadLimit"`
	LatestSubmission      *models.VideoSubmission `json:"latestSubmission,omitempty"`
}

// Capabilities is the policy's output. It is always fully populated, never
// partial, and is not persisted anywhere.
type Capabilities struct {
	Role    Role    `json:"role"`
	Actions Actions `json:"actions"`
	Limits  Limits  `json:"limits"`
	State   State   `json:"state"`
}
