package utils

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns a random 32-char hex identifier.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
