package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
)

// ErrNoSecret is returned when neither a password nor a hash is configured.
var ErrNoSecret = errors.New("admin secret is not configured")

// Authority validates the shared admin secret.
// When a bcrypt hash is configured it takes precedence over the plain password.
type Authority struct {
	password []byte
	hash     string
}

// NewAuthority builds an authority from a plain password and/or a bcrypt hash.
func NewAuthority(password, hash string) (*Authority, error) {
	if password == "" && hash == "" {
		return nil, ErrNoSecret
	}
	if hash != "" {
		if err := CheckHash(hash); err != nil {
			return nil, err
		}
	}
	return &Authority{password: []byte(password), hash: hash}, nil
}

// Verify reports whether secret matches the configured admin secret.
func (a *Authority) Verify(secret string) bool {
	if a.hash != "" {
		return ComparePassword(a.hash, secret) == nil
	}
	// compare digests so the comparison time does not depend on the secret's length
	want := sha256.Sum256(a.password)
	got := sha256.Sum256([]byte(secret))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}
