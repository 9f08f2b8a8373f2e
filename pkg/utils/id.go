package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateWorkspaceID generates a workspace identifier (UUID v4 by convention)
func GenerateWorkspaceID() string {
	return uuid.NewString()
}

// GenerateRoomID generates a room identifier (UUID v4 by convention)
func GenerateRoomID() string {
	return uuid.NewString()
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	timestamp := time.Now().UnixNano()
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", timestamp, hex.EncodeToString(b))
}
