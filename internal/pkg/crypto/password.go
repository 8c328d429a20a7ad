package crypto

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt only reads the first 72 bytes of its input, so passwords are
// reduced to a fixed-length SHA-256 digest before hashing.
func passwordKey(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

// HashPassword returns the bcrypt hash of password at the given cost.
// A cost of 0 uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword(passwordKey(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword returns nil if password matches a hash from HashPassword.
func ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), passwordKey(password))
}
