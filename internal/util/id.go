package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID generates a random 96-bit identifier, hex encoded. It is used
// for persisted record ids and uploaded object keys.
func NewID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
