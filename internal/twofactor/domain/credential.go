package domain

import (
	"errors"
	"time"
)

// Sentinel errors for two-factor operations. Storage failures are reported via storage.ErrUnavailable.
var (
	ErrCredentialNotFound = errors.New("two-factor credential not found")
	ErrInvalidCode        = errors.New("invalid two-factor code")
	ErrInvalidBackupCode  = errors.New("invalid backup code")
	ErrInvalidUserID      = errors.New("user id is required")
)

// Credential is the single two-factor record of a user.
// While IsEnabled is false the credential is provisional and must not gate login.
type Credential struct {
	UserID string
	// Secret is the raw TOTP key. Nil after Disable until the next Provision.
	Secret []byte
	// BackupCodes holds keyed hashes of the unused, case-normalized backup codes in issue order.
	BackupCodes []string
	IsEnabled   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasSecret reports whether a secret is provisioned.
func (c *Credential) HasSecret() bool {
	return c != nil && len(c.Secret) > 0
}

// Status is the externally visible two-factor state of a user.
type Status struct {
	IsEnabled            bool
	BackupCodesRemaining int
}

// Enrollment is returned once by Provision for display to the user.
type Enrollment struct {
	// Secret is the base32 (unpadded) encoding of the TOTP key for manual entry.
	Secret      string
	BackupCodes []string
	// URI is the otpauth:// URI for authenticator apps.
	URI string
}
