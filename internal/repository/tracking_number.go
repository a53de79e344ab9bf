package repository

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// maxTrackingAttempts bounds regeneration on tracking number collisions.
const maxTrackingAttempts = 5

// NewTrackingNumber returns a 22-character URL-safe token from 16 random bytes.
func NewTrackingNumber() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("tracking number: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
