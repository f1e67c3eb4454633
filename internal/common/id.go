package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique search job ID
func NewJobID() string {
	return uuid.New().String()
}

// NewOwnerToken generates a lease owner token with the "own_" prefix
// Format: own_<uuid>
func NewOwnerToken() string {
	return "own_" + uuid.New().String()
}
