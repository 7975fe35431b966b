package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// APIKeyPrefix marks CleanFi API keys
const APIKeyPrefix = "cfi_key_"

// generateID generates a new UUID
func generateID() string {
	return uuid.New().String()
}

// generateAPIKey generates a new API key
func generateAPIKey() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s%s", APIKeyPrefix, hex.EncodeToString(b))
}

// hashAPIKey hashes an API key for storage
func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// normalizeWei returns a canonical decimal wei string ("" becomes "0").
func normalizeWei(wei string) string {
	wei = strings.TrimLeft(wei, "0")
	if wei == "" {
		return "0"
	}
	return wei
}
