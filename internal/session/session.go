package session

import (
	"math/rand"
	"regexp"

	"github.com/google/uuid"
)

// template is the v4 layout used by the fallback generator.
// 'x' is any hex digit, 'y' is the RFC 4122 variant nibble (8, 9, a or b).
const template = "xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx"

var shape = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// randomSource generates a UUID from a cryptographically strong source.
// Replaced in tests to exercise the fallback.
var randomSource = uuid.NewRandom

// NewID returns a v4-shaped session identifier.
// It prefers crypto/rand and falls back to a pseudo-random generator
// producing the same shape, so it never fails.
func NewID() string {
	id, err := randomSource()
	if err == nil {
		return id.String()
	}
	return fallbackID()
}

// fallbackID fills the v4 template from math/rand
func fallbackID() string {
	const hex = "0123456789abcdef"

	out := make([]byte, len(template))
	for i := 0; i < len(template); i++ {
		switch template[i] {
		case 'x':
			out[i] = hex[rand.Intn(16)]
		case 'y':
			out[i] = hex[rand.Intn(4)|0x8]
		default:
			out[i] = template[i]
		}
	}
	return string(out)
}

// Valid reports whether id has the hyphenated 36-character v4 shape
func Valid(id string) bool {
	return shape.MatchString(id)
}
