package event

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Event IDs are 128-bit identifiers. The canonical form is 32 lowercase hex
// characters with no dashes; SDKs may submit either that or a dashed UUID.

// NewID generates a fresh canonical event ID.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// CanonicalID parses an inbound event ID and returns its canonical form.
func CanonicalID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("malformed event id %q: %w", id, err)
	}
	return strings.ReplaceAll(parsed.String(), "-", ""), nil
}
