// Package crypto provides hashing and random token helpers.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Token sizes in bytes before encoding.
const (
	// SessionIDSize is the entropy of a session identifier.
	SessionIDSize = 32

	// LockTokenSize is the entropy of a lock ownership token.
	LockTokenSize = 16
)

// GenerateSessionID returns a random URL-safe session identifier.
func GenerateSessionID() (string, error) {
	b, err := randomBytes(SessionIDSize)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateLockToken returns a random hex token identifying a lock holder.
func GenerateLockToken() (string, error) {
	b, err := randomBytes(LockTokenSize)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
