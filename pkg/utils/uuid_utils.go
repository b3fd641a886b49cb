package utils

import (
	"github.com/google/uuid"
)

var newUUIDv7 = uuid.NewV7

// NewRecordID returns a time-ordered id for history rows so that
// created_at ties still sort newest first. Falls back to a random v4.
func NewRecordID() uuid.UUID {
	id, err := newUUIDv7()
	if err != nil {
		return uuid.New()
	}
	return id
}
