// Package totp generates and validates RFC 6238 time-based one-time codes
// (30 second step, HMAC-SHA1, 6 digits) and builds otpauth enrollment URIs.
package totp

import (
	"encoding/base32"
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the time step in seconds.
	Period = 30
	// SecretSize is the length of a generated key in bytes (160 bits, the HMAC-SHA1 block-friendly size).
	SecretSize = 20
	// DefaultSkew accepts codes from the previous and next step to absorb clock drift.
	DefaultSkew = 1
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeSecret returns the unpadded base32 form of secret used by authenticator apps.
func EncodeSecret(secret []byte) string {
	return encoding.EncodeToString(secret)
}

// DecodeSecret parses an unpadded (or padded) base32 secret, case-insensitively.
func DecodeSecret(s string) ([]byte, error) {
	s = strings.ToUpper(strings.TrimRight(strings.TrimSpace(s), "="))
	return encoding.DecodeString(s)
}

func opts(skew uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateCode returns the 6-digit code for secret at t. Deterministic for a given secret and step.
func GenerateCode(secret []byte, t time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("totp: empty secret")
	}
	return totp.GenerateCodeCustom(EncodeSecret(secret), t, opts(0))
}

// Validate reports whether code matches secret at t within ±skew steps.
// Comparison is constant time; malformed codes simply do not match.
func Validate(secret []byte, code string, t time.Time, skew uint) bool {
	if len(secret) == 0 {
		return false
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(code), EncodeSecret(secret), t, opts(skew))
	return err == nil && ok
}

// EnrollmentURI returns otpauth://totp/{issuer}:{account}?secret=…&issuer=… with
// algorithm, digits and period parameters for authenticator apps.
func EnrollmentURI(issuer, account string, secret []byte) (string, error) {
	if strings.Contains(issuer, ":") || strings.Contains(account, ":") {
		return "", errors.New("totp: issuer and account must not contain ':'")
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      Period,
		SecretSize:  uint(len(secret)),
		Secret:      secret,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}
