// Package uploads validates clips before their binary transfer begins and
// streams them to object storage with progress reporting. The guard is
// advisory: the authoritative decision is the access policy evaluated
// server-side; this check only prevents wasted transfers.
package uploads

import (
	"context"
	"fmt"
	"strings"

	"github.com/gregaplay/backend/internal/policy"
)

// DurationProber reads the media duration of a local file.
type DurationProber interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// EligibilityGuard checks a candidate clip against the fixed upload
// constraints before any bytes leave for storage.
type EligibilityGuard struct {
	Prober             DurationProber
	MaxSizeBytes       int64
	MaxDurationSeconds float64
}

// NewEligibilityGuard constructs a guard enforcing the platform-wide clip
// ceilings.
func NewEligibilityGuard(prober DurationProber) *EligibilityGuard {
	return &EligibilityGuard{
		Prober:             prober,
		MaxSizeBytes:       policy.MaxClipSizeBytes,
		MaxDurationSeconds: policy.MaxClipDurationSeconds,
	}
}

// Check validates content type, size, and probed duration of the clip staged
// at path, returning the probed duration in seconds. It returns a
// *ValidationError naming the failing constraint; a violation must prevent
// the transfer from starting. An unreadable clip fails closed on the duration
// constraint.
func (g *EligibilityGuard) Check(ctx context.Context, contentType string, sizeBytes int64, path string) (float64, error) {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/") {
		return 0, &ValidationError{
			Constraint: ConstraintContentType,
			Message:    fmt.Sprintf("expected a video file, got %q", contentType),
		}
	}

	if sizeBytes <= 0 {
		return 0, &ValidationError{
			Constraint: ConstraintSize,
			Message:    "file is empty",
		}
	}
	if sizeBytes > g.MaxSizeBytes {
		return 0, &ValidationError{
			Constraint: ConstraintSize,
			Message:    fmt.Sprintf("file is %d bytes, limit is %d", sizeBytes, g.MaxSizeBytes),
		}
	}

	if g.Prober == nil {
		return 0, ErrProberUnavailable
	}

	duration, err := g.Prober.Probe(ctx, path)
	if err != nil {
		return 0, &ValidationError{
			Constraint: ConstraintDuration,
			Message:    fmt.Sprintf("could not read media duration: %v", err),
		}
	}
	if duration > g.MaxDurationSeconds {
		return 0, &ValidationError{
			Constraint: ConstraintDuration,
			Message:    fmt.Sprintf("clip is %.1fs, limit is %.0fs", duration, g.MaxDurationSeconds),
		}
	}

	return duration, nil
}
