package utils // package utils provides helper functions for secret generation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for remember tokens
	"encoding/hex"  // hex encoding functions
	"time"          // time utilities for generating expirations
)

// RememberSecret is a long-lived "remember me" secret handed to the client.
// The Raw field is the only place the cleartext ever exists; the database
// stores a SHA-256 hash of it. Exp records when the token expires.
type RememberSecret struct {
	Raw string    // raw secret returned to the client
	Exp time.Time // UTC expiration time
}

// NewRememberSecret returns a cryptographically secure random secret and its
// expiration time. The ttl parameter controls how long the token stays
// valid (30 days by default at the config layer).
func NewRememberSecret(ttl time.Duration) (RememberSecret, error) {
	raw, err := randomHex(32) // 32 bytes -> 64 hex chars
	if err != nil {
		return RememberSecret{}, err
	}
	return RememberSecret{
		Raw: raw,
		Exp: time.Now().UTC().Add(ttl),
	}, nil
}

// HashSecret returns the SHA-256 hash of a raw secret as a hex string.
// Storing only the hash prevents attackers from using stolen database rows
// to authenticate.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
