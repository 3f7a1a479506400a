package util

import "github.com/google/uuid"

// NewID returns a canonical string entity ID. Every reference stored or
// compared anywhere in the system uses this one representation.
func NewID() string {
	return uuid.NewString()
}
