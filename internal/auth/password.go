// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"regexp"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLength is the longest accepted plaintext password in bytes.
// bcrypt silently truncates input beyond 72 bytes; without this bound two
// distinct long passwords whose first 72 bytes match would collide.
const MaxPasswordLength = 72

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = bcrypt.DefaultCost

// bcryptHashPattern matches the modular crypt format bcrypt emits. A value
// matching it is treated as already hashed and passed through unchanged.
var bcryptHashPattern = regexp.MustCompile(`^\$2[abxy]?\$\d{2}\$[./A-Za-z0-9]{53}$`)

// Hasher hashes and verifies passwords. Principals may override the default
// implementation per model without affecting others.
type Hasher interface {
	// Hash produces a salted hash of the plaintext password.
	Hash(password string) (string, error)

	// Compare reports whether the plaintext matches the stored hash.
	// Returns (false, nil) on a plain mismatch and an error only for
	// malformed hashes.
	Compare(password, hash string) (bool, error)
}

// BcryptHasher implements Hasher using bcrypt with a configurable cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. Costs outside bcrypt's supported
// range fall back to DefaultBcryptCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("HASH_FAILED").Wrap(err)
	}
	return string(hash), nil
}

// Compare reports whether the plaintext matches the stored hash. The hash
// format is self-describing, so hashes produced under older cost parameters
// verify without a rehash.
func (h *BcryptHasher) Compare(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case err == bcrypt.ErrMismatchedHashAndPassword:
		return false, nil
	default:
		return false, oops.Code("HASH_COMPARE_FAILED").Wrap(err)
	}
}

// LooksHashed reports whether a password value is structurally a bcrypt
// hash. Assigning such a value skips hashing to avoid double-hashing.
func LooksHashed(password string) bool {
	return bcryptHashPattern.MatchString(password)
}

// ValidatePasswordPolicy enforces the plaintext length bounds. Empty
// passwords and passwords longer than MaxPasswordLength bytes are rejected
// with distinct codes, both 422.
func ValidatePasswordPolicy(password string) error {
	if password == "" {
		return coded(CodeInvalidPassword, 422).Errorf("password is required")
	}
	if len(password) > MaxPasswordLength {
		return coded(CodePasswordTooLong, 422).
			With("max_length", MaxPasswordLength).
			Errorf("password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

// HashPassword applies the length policy and hashes the plaintext. A value
// that already looks like a bcrypt hash is returned unchanged.
func HashPassword(password string, hasher Hasher) (string, error) {
	if LooksHashed(password) {
		return password, nil
	}
	if err := ValidatePasswordPolicy(password); err != nil {
		return "", err
	}
	return hasher.Hash(password)
}
