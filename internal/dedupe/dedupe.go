// Package dedupe implements the shared deduplication store used to reject
// resubmitted event IDs during the dedup TTL window.
package dedupe

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the backing store could not be reached. Callers
// must treat this as a retryable infrastructure error and abort the request;
// proceeding as "not a duplicate" would break at-most-once intake.
var ErrUnavailable = errors.New("dedupe store unavailable")

// Store is the atomic add-if-absent contract backing deduplication.
// TryClaim returns true when the key was newly claimed and false when it was
// already present. No two concurrent callers may both observe true for the
// same key within one TTL window.
type Store interface {
	TryClaim(ctx context.Context, key string) (bool, error)
	Close() error
}
