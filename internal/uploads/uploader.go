package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
)

// ClipStorage persists uploaded clip bytes and returns a stored location.
type ClipStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// ErrStorageUnavailable indicates no clip storage is configured.
var ErrStorageUnavailable = errors.New("clip storage unavailable")

// Uploader streams validated clips into storage, keying them under their
// event, and pushes progress to the caller's observer.
type Uploader struct {
	storage ClipStorage
	logger  *slog.Logger
}

// NewUploader constructs an Uploader writing to the provided storage.
func NewUploader(storage ClipStorage, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{storage: storage, logger: logger}
}

// Store transfers the clip to storage under <eventID>/<submissionID><ext> and
// returns the stored location. Progress snapshots are pushed to observer as
// bytes flow; aborting ctx aborts the transfer.
func (u *Uploader) Store(ctx context.Context, eventID, submissionID, filename string, r io.Reader, size int64, observer func(Progress)) (string, error) {
	if u.storage == nil {
		return "", ErrStorageUnavailable
	}

	ext := strings.ToLower(path.Ext(filename))
	key := path.Join(eventID, submissionID+ext)
	if strings.TrimSpace(key) == "" {
		return "", errors.New("uploader: empty key")
	}

	location, err := u.storage.Save(ctx, key, NewProgressReader(r, size, observer))
	if err != nil {
		return "", fmt.Errorf("store clip %s: %w", key, err)
	}

	u.logger.Info("clip stored", "eventId", eventID, "submissionId", submissionID, "location", location, "size", size)
	return location, nil
}
