// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"
)

// Token id configuration.
const (
	// DefaultTokenIDBytes yields a 64-character URL-safe token id.
	DefaultTokenIDBytes = 48

	// EternalTTL marks a token that never expires. Only honored when the
	// owning principal's configuration allows eternal tokens.
	EternalTTL = -1

	// DefaultTokenTTL is two weeks, in seconds.
	DefaultTokenTTL = 14 * 24 * 3600
)

// AccessToken is an opaque bearer credential referencing its owning user.
// A token's validity is independent of other tokens for the same user.
type AccessToken struct {
	ID            string
	UserID        string
	TTL           int64 // seconds; EternalTTL never expires, 0 is invalid
	Created       time.Time
	PrincipalType string // principal registry tag; empty means the default
	Scopes        []string
}

// IsEternal reports whether the token requests indefinite validity.
func (t *AccessToken) IsEternal() bool {
	return t.TTL == EternalTTL
}

// ExpiresAt returns the expiry instant. Meaningless for eternal tokens.
func (t *AccessToken) ExpiresAt() time.Time {
	return t.Created.Add(time.Duration(t.TTL) * time.Second)
}

// GenerateTokenID produces a URL-safe random token id from the system's
// cryptographically secure source. byteLen random bytes yield a
// base64-RawURL string of ceil(byteLen*4/3) characters; the default 48
// bytes yield 64 characters. A randomness failure is surfaced as an error,
// never silently substituted.
func GenerateTokenID(byteLen int) (string, error) {
	if byteLen <= 0 {
		byteLen = DefaultTokenIDBytes
	}
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", coded(CodeTokenGenerateFailed, 500).
			With("requested_bytes", byteLen).
			Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenStore persists AccessToken records.
type TokenStore interface {
	Create(ctx context.Context, t *AccessToken, opts Options) error

	// FindByID returns ErrNotFound (possibly wrapped) when the id is unknown.
	FindByID(ctx context.Context, id string, opts Options) (*AccessToken, error)

	ListForUser(ctx context.Context, userID string, opts Options) ([]*AccessToken, error)

	// Delete returns ErrNotFound when the id is unknown.
	Delete(ctx context.Context, id string, opts Options) error

	// DeleteForUsers removes every token owned by the given users, sparing
	// exceptID when non-empty. Tokens of users outside the set are never
	// touched.
	DeleteForUsers(ctx context.Context, userIDs []string, exceptID string, opts Options) (int64, error)
}
