package migration

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the record to update no longer exists.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable marks a transient store failure worth retrying.
	ErrUnavailable = errors.New("record store unavailable")
)

// Store is the document store collaborator. Implementations decode their own
// document shape into Record and apply Update as one idempotent write.
type Store interface {
	// ListRecords returns every record of the collection. An error here means
	// the collection could not be read at all.
	ListRecords(ctx context.Context) ([]Record, error)
	// UpdateRecord replaces the label field with u.Labels, sets the backup field
	// to u.Backup (a superset of what is stored) and stamps u.UpdatedAt.
	UpdateRecord(ctx context.Context, id string, u Update) error
}

// retryable reports whether a write error may succeed on a later attempt.
func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}
