// Package dispatch hands normalized events off to the processing pipeline.
// The boundary only confirms a submission after the queue has durably
// accepted it.
package dispatch

import (
	"context"
	"errors"

	"github.com/crashgate-systems/crashgate/internal/event"
)

// ErrQueueUnavailable means the event could not be durably enqueued.
var ErrQueueUnavailable = errors.New("event queue unavailable")

// TaskHandle identifies an accepted submission in the queue, in
// "STREAM:sequence" form.
type TaskHandle string

// EnqueuePort is the outbound boundary to the async pipeline.
type EnqueuePort interface {
	Enqueue(ctx context.Context, ev *event.InterchangeIssueEvent) (TaskHandle, error)
	Close() error
}
