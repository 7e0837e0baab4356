package session

import (
	"strings"

	"github.com/google/uuid"
)

// NewID generates a random session ID (a UUIDv4 string).
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id parses as a UUID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// ShortID returns the first block of the session ID for display.
// Example: "1b4e28ba-2fa1-11d2-883f-0016d3cca427" -> "1b4e28ba"
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
