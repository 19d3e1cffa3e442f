// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gatehouse/gatehouse/internal/auth"
)

func TestNewUser(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	t.Run("assigns an id and hashes the password", func(t *testing.T) {
		user, err := auth.NewUser(auth.NewUserInput{
			Email:    "A@B.Test",
			Password: "secret",
			Name:     "Alice",
		}, hasher, false)
		require.NoError(t, err)

		assert.Len(t, user.ID, 26, "ulid")
		assert.Equal(t, "a@b.test", user.Email)
		assert.True(t, auth.LooksHashed(user.PasswordHash))
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("keeps a caller-supplied id", func(t *testing.T) {
		user, err := auth.NewUser(auth.NewUserInput{
			ID:       "fixed-id",
			Username: "alice",
			Password: "secret",
		}, hasher, false)
		require.NoError(t, err)
		assert.Equal(t, "fixed-id", user.ID)
	})

	t.Run("preserves email case when configured", func(t *testing.T) {
		user, err := auth.NewUser(auth.NewUserInput{
			Email:    "A@B.Test",
			Password: "secret",
		}, hasher, true)
		require.NoError(t, err)
		assert.Equal(t, "A@B.Test", user.Email)
	})

	t.Run("requires email or username", func(t *testing.T) {
		_, err := auth.NewUser(auth.NewUserInput{Password: "secret"}, hasher, false)
		requireErrorCode(t, err, auth.CodeUsernameEmailRequired)
	})

	t.Run("rejects over-length password", func(t *testing.T) {
		long := make([]byte, auth.MaxPasswordLength+1)
		for i := range long {
			long[i] = 'a'
		}
		_, err := auth.NewUser(auth.NewUserInput{
			Email:    "a@b.test",
			Password: string(long),
		}, hasher, false)
		requireErrorCode(t, err, auth.CodePasswordTooLong)
	})

	t.Run("pre-hashed password stored unchanged", func(t *testing.T) {
		hash, err := hasher.Hash("imported")
		require.NoError(t, err)

		user, err := auth.NewUser(auth.NewUserInput{
			Email:    "a@b.test",
			Password: hash,
		}, hasher, false)
		require.NoError(t, err)
		assert.Equal(t, hash, user.PasswordHash)
	})
}

func TestAttributes_SanitizeUntrusted(t *testing.T) {
	attrs := auth.Attributes{
		auth.AttrName:          "Alice",
		auth.AttrEmail:         "a@b.test",
		auth.AttrEmailVerified: true,
		"id":                   "hijacked",
	}

	clean := attrs.SanitizeUntrusted()

	assert.NotContains(t, clean, auth.AttrEmailVerified)
	assert.NotContains(t, clean, "id")
	assert.Equal(t, "Alice", clean[auth.AttrName])

	assert.Contains(t, attrs, auth.AttrEmailVerified, "sanitization must not mutate the input")
}

func TestAttributes_Clone(t *testing.T) {
	attrs := auth.Attributes{auth.AttrName: "Alice"}
	cp := attrs.Clone()
	cp[auth.AttrName] = "Mallory"

	assert.Equal(t, "Alice", attrs[auth.AttrName])
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.test", auth.NormalizeEmail("A@B.TEST", false))
	assert.Equal(t, "A@B.TEST", auth.NormalizeEmail("A@B.TEST", true))
}
