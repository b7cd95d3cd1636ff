package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random identifier for stored documents.
func NewID() string {
	return uuid.NewString()
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
