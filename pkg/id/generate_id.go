package id

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// New returns a random UUIDv4 used as the public identifier of an entity.
func New() string { return uuid.NewString() }

// NewVersion returns exactly 32 lowercase hex characters. Version tokens are
// opaque to clients; only equality matters.
func NewVersion() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// IsVersion reports whether s has the shape NewVersion produces.
func IsVersion(s string) bool {
	if len(s) != 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
