package model

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

// GenerateRevision generates a short, URL-safe revision ID using UUID v4 encoded in base32.
func GenerateRevision() string {
	id := uuid.New()
	// 16 bytes -> 26 base32 characters
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(id[:])
	return strings.ToLower(encoded)
}
