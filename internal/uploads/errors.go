package uploads

import (
	"errors"
	"fmt"
)

// Constraint identifiers reported with validation failures.
const (
	ConstraintContentType = "contentType"
	ConstraintSize        = "size"
	ConstraintDuration    = "duration"
)

var (
	// ErrProberUnavailable indicates the duration prober is not configured.
	ErrProberUnavailable = errors.New("media duration prober unavailable")
)

// ValidationError describes which pre-transfer constraint a clip violated.
// It is recoverable: the caller can choose a different file.
type ValidationError struct {
	Constraint string
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("upload validation failed (%s): %s", e.Constraint, e.Message)
}
