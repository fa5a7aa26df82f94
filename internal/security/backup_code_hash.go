package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// BackupCodeHasher hashes backup codes with HMAC-SHA256 so stored values cannot be brute-forced offline
// without the key.
type BackupCodeHasher struct {
	key []byte
}

// NewBackupCodeHasher returns a hasher keyed with key.
func NewBackupCodeHasher(key []byte) *BackupCodeHasher {
	return &BackupCodeHasher{key: append([]byte(nil), key...)}
}

// NormalizeBackupCode trims whitespace and upper-cases the code. Backup codes are case-insensitive.
func NormalizeBackupCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Hash returns the hex-encoded keyed hash of the normalized code.
func (h *BackupCodeHasher) Hash(code string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(NormalizeBackupCode(code)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Match returns the stored hash matching the provided code, if any. Every candidate is compared.
func (h *BackupCodeHasher) Match(providedCode string, storedHashes []string) (string, bool) {
	provided := []byte(h.Hash(providedCode))
	found := ""
	for _, stored := range storedHashes {
		if subtle.ConstantTimeCompare(provided, []byte(stored)) == 1 {
			found = stored
		}
	}
	return found, found != ""
}
