package util

import "github.com/google/uuid"

// NewID returns a random UUID string used for request and browser identifiers.
func NewID() string {
	return uuid.NewString()
}
