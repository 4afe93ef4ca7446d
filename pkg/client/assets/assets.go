// ABOUTME: Embedded assets for the Afternoon client
// ABOUTME: The notification icon is written to the state directory for the OS notifier
package assets

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed icon.png
var IconPNG []byte

// iconHashKey is the settings key holding the hash of the icon on disk
const iconHashKey = "icon_hash"

// HashStore remembers which icon version was written
type HashStore interface {
	GetString(key string) (string, error)
	SetString(key, value string) error
}

// WriteIcon makes sure dir holds the current notification icon and returns
// its path. The file is rewritten when missing or when the embedded icon
// changed since the hash in store was recorded.
func WriteIcon(dir string, store HashStore) (string, error) {
	iconPath := filepath.Join(dir, "icon.png")
	embeddedHash := calculateHash(IconPNG)

	storedHash, _ := store.GetString(iconHashKey)
	_, statErr := os.Stat(iconPath)
	if statErr == nil && storedHash == embeddedHash {
		return iconPath, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create icon directory: %w", err)
	}
	if err := os.WriteFile(iconPath, IconPNG, 0644); err != nil {
		return "", fmt.Errorf("failed to write icon: %w", err)
	}

	// A lost hash only costs a rewrite next start
	_ = store.SetString(iconHashKey, embeddedHash)

	return iconPath, nil
}

// calculateHash returns the SHA256 hash of data as a hex string
func calculateHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
