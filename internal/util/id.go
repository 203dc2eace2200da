package util

import (
	"strings"

	"github.com/google/uuid"
)

const tempPrefix = "temp-"

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}

// TempID marks a client-side placeholder for a row that is not persisted yet.
func TempID() string {
	return tempPrefix + uuid.NewString()
}

func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}
