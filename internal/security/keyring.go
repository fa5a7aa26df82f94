package security

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// MasterKeySize is the required length of the master key in bytes.
const MasterKeySize = 32

// ErrInvalidKey is returned when the master key is missing or malformed.
var ErrInvalidKey = errors.New("invalid key")

const (
	sealInfo = "sessionguard/totp-secret-seal/v1"
	codeInfo = "sessionguard/backup-code-hmac/v1"
)

// ParseMasterKey decodes a base64 (std or URL, padded or not) master key of MasterKeySize bytes.
func ParseMasterKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(s); err == nil {
			if len(key) != MasterKeySize {
				return nil, ErrInvalidKey
			}
			return key, nil
		}
	}
	return nil, ErrInvalidKey
}

// Keyring holds purpose-bound subkeys derived from one master key with HKDF-SHA256.
type Keyring struct {
	sealKey []byte
	codeKey []byte
}

// NewKeyring derives the sealing and backup-code subkeys from master.
func NewKeyring(master []byte) (*Keyring, error) {
	if len(master) != MasterKeySize {
		return nil, ErrInvalidKey
	}
	sealKey, err := derive(master, sealInfo)
	if err != nil {
		return nil, err
	}
	codeKey, err := derive(master, codeInfo)
	if err != nil {
		return nil, err
	}
	return &Keyring{sealKey: sealKey, codeKey: codeKey}, nil
}

func derive(master []byte, info string) ([]byte, error) {
	out := make([]byte, MasterKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sealer returns an AEAD sealer for TOTP secrets at rest.
func (k *Keyring) Sealer() (*Sealer, error) {
	return NewSealer(k.sealKey)
}

// BackupCodeHasher returns the keyed hasher for backup codes.
func (k *Keyring) BackupCodeHasher() *BackupCodeHasher {
	return NewBackupCodeHasher(k.codeKey)
}
