// Package clock supplies the current time and cryptographically secure random bytes.
// Both are interfaces so session and two-factor code can be driven deterministically in tests.
package clock

import (
	"crypto/rand"
	"io"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// RandomSource fills byte slices with cryptographically secure random data.
type RandomSource interface {
	io.Reader
}

type systemClock struct{}

// System returns a Clock backed by time.Now in UTC.
func System() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now().UTC() }

type cryptoSource struct{}

// Crypto returns a RandomSource backed by crypto/rand.
func Crypto() RandomSource { return cryptoSource{} }

func (cryptoSource) Read(p []byte) (int, error) { return rand.Read(p) }

// ReadBytes returns n bytes read in full from src.
func ReadBytes(src RandomSource, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(src, b); err != nil {
		return nil, err
	}
	return b, nil
}
