// Package projects resolves DSN public keys to project authorization data
// and decides whether a project may submit events.
package projects

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey means the DSN key does not match an active project.
	ErrInvalidKey = errors.New("invalid DSN public key")

	// ErrUnavailable means the project store could not be reached.
	ErrUnavailable = errors.New("project store unavailable")
)

// ThrottledError signals that the project is throttled; RetryAfter is the
// number of seconds clients should wait.
type ThrottledError struct {
	RetryAfter int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("project throttled, retry after %ds", e.RetryAfter)
}

// ProjectAuth is the authorization record for one project key.
type ProjectAuth struct {
	ProjectID            int64
	OrganizationID       int64
	ScrubIPAddresses     bool
	OrgScrubIPAddresses  bool
	EventThrottleRate    int
	OrgEventThrottleRate int
}

// ShouldScrubIPAddresses reports whether client addresses must be anonymized
// before the event leaves the boundary. Either the project or organization
// flag is sufficient.
func (p *ProjectAuth) ShouldScrubIPAddresses() bool {
	return p.ScrubIPAddresses || p.OrgScrubIPAddresses
}

// ThrottleRate returns the effective throttle rate, the stricter of the
// project and organization settings.
func (p *ProjectAuth) ThrottleRate() int {
	if p.OrgEventThrottleRate > p.EventThrottleRate {
		return p.OrgEventThrottleRate
	}
	return p.EventThrottleRate
}

// Authenticator resolves a project id and DSN key to authorization data.
type Authenticator interface {
	Authenticate(ctx context.Context, projectID int64, key string) (*ProjectAuth, error)
	Close()
}
