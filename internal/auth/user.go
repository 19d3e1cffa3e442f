// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Attribute keys recognized by partial updates. Identity keys participate in
// session invalidation; the rest are profile data.
const (
	AttrEmail         = "email"
	AttrUsername      = "username"
	AttrRealm         = "realm"
	AttrPassword      = "password"
	AttrEmailVerified = "emailVerified"
	AttrName          = "name"
)

// User represents a principal account. Email and username are unique within
// a realm; the store enforces both constraints at the persistence layer.
type User struct {
	ID            string
	Email         string
	Username      string
	Realm         string
	PasswordHash  string
	EmailVerified bool
	Name          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewUserInput describes the fields accepted when creating a user.
type NewUserInput struct {
	ID       string // optional; store-assigned ULID when empty
	Email    string
	Username string
	Realm    string
	Password string
	Name     string
}

// NewUser creates a validated User. The password is hashed at construction
// time; a value that already looks like a bcrypt hash is stored unchanged.
// Exactly one of email or username may be empty, not both.
func NewUser(in NewUserInput, hasher Hasher, caseSensitiveEmail bool) (*User, error) {
	if in.Email == "" && in.Username == "" {
		return nil, coded(CodeUsernameEmailRequired, 400).
			Errorf("username or email is required")
	}

	hash, err := HashPassword(in.Password, hasher)
	if err != nil {
		return nil, err
	}

	id := in.ID
	if id == "" {
		id = ulid.Make().String()
	}

	now := time.Now()
	return &User{
		ID:           id,
		Email:        NormalizeEmail(in.Email, caseSensitiveEmail),
		Username:     in.Username,
		Realm:        in.Realm,
		PasswordHash: hash,
		Name:         in.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail lowercases an email unless comparisons are case sensitive.
func NormalizeEmail(email string, caseSensitive bool) string {
	if caseSensitive {
		return email
	}
	return strings.ToLower(email)
}

// Attributes is a partial-update payload keyed by the Attr* constants.
// Unknown keys are ignored by stores.
type Attributes map[string]any

// Clone returns a shallow copy so sanitization never mutates caller state.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// SanitizeUntrusted strips server-controlled attributes from an untrusted
// payload. EmailVerified is never settable by untrusted input, and record
// identity is not reassignable.
func (a Attributes) SanitizeUntrusted() Attributes {
	out := a.Clone()
	delete(out, AttrEmailVerified)
	delete(out, "id")
	return out
}

// UserFilter selects users for bulk operations. Nil fields do not
// constrain; set fields are combined with AND.
type UserFilter struct {
	IDs           []string
	Realm         *string
	Email         *string
	Username      *string
	EmailVerified *bool
	Name          *string
}

// UserStore persists User records. Implementations return ErrNotFound
// (possibly wrapped) when a single-record lookup misses, and enforce
// per-realm email/username uniqueness, rejecting conflicting writes.
type UserStore interface {
	Create(ctx context.Context, u *User, opts Options) error
	FindByID(ctx context.Context, id string, opts Options) (*User, error)
	FindByEmail(ctx context.Context, realm, email string, caseSensitive bool, opts Options) (*User, error)
	FindByUsername(ctx context.Context, realm, username string, opts Options) (*User, error)
	FindIDs(ctx context.Context, f UserFilter, opts Options) ([]string, error)
	UpdateAttributes(ctx context.Context, id string, attrs Attributes, opts Options) error
	Replace(ctx context.Context, u *User, opts Options) error
	UpdateAll(ctx context.Context, f UserFilter, attrs Attributes, opts Options) (int64, error)
	Delete(ctx context.Context, id string, opts Options) error
	DeleteAll(ctx context.Context, f UserFilter, opts Options) (int64, error)
}
