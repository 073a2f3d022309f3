package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// InterchangeIssueEvent is the canonical, queue-ready envelope wrapping one
// normalized event. It is created once per accepted inbound event, is
// immutable after construction, and ownership transfers to the dispatcher on
// enqueue.
type InterchangeIssueEvent struct {
	EventID        string          `json:"event_id"`
	ProjectID      int64           `json:"project_id"`
	OrganizationID int64           `json:"organization_id"`
	Kind           Kind            `json:"kind"`
	ReceivedAt     time.Time       `json:"received_at"`
	Payload        json.RawMessage `json:"payload"`
}

// BuildInterchange assembles the interchange envelope for a normalized
// payload. A missing event ID is replaced with a freshly generated one; a
// supplied ID is canonicalized. Construction is pure: no I/O, no retained
// references to the payload value.
func BuildInterchange(projectID, organizationID int64, kind Kind, eventID string, payload any) (*InterchangeIssueEvent, error) {
	if eventID == "" {
		eventID = NewID()
	} else {
		canonical, err := CanonicalID(eventID)
		if err != nil {
			return nil, err
		}
		eventID = canonical
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serialize %s payload: %w", kind, err)
	}

	return &InterchangeIssueEvent{
		EventID:        eventID,
		ProjectID:      projectID,
		OrganizationID: organizationID,
		Kind:           kind,
		ReceivedAt:     time.Now().UTC(),
		Payload:        data,
	}, nil
}
