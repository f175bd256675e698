package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID returns a random UUIDv4 used for entity identifiers.
func NewID() string {
	return uuid.NewString()
}

// GenerateID generates a short random ID with prefix
func GenerateID(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

// GenerateRoomID returns a URL-safe room identifier.
func GenerateRoomID() string {
	return GenerateID("room")
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("req_%d_%s", time.Now().UnixNano(), hex.EncodeToString(b))
}

// GenerateInstanceID identifies one running process on the shared backplane.
func GenerateInstanceID() string {
	return GenerateID("inst")
}
