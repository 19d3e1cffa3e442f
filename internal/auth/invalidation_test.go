// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldInvalidate(t *testing.T) {
	before := &User{
		ID:           "u1",
		Email:        "a@b.test",
		Username:     "alice",
		Realm:        "r1",
		PasswordHash: "$2a$10$hash",
	}

	tests := []struct {
		name  string
		attrs Attributes
		opts  Options
		want  bool
	}{
		{
			name:  "password change triggers",
			attrs: Attributes{AttrPassword: "$2a$10$otherhash"},
			want:  true,
		},
		{
			name:  "password change triggers despite skip flag",
			attrs: Attributes{AttrPassword: "$2a$10$otherhash"},
			opts:  Options{SkipIdentityInvalidation: true},
			want:  true,
		},
		{
			name:  "same password hash does not trigger",
			attrs: Attributes{AttrPassword: "$2a$10$hash"},
			want:  false,
		},
		{
			name:  "email change triggers",
			attrs: Attributes{AttrEmail: "new@b.test"},
			want:  true,
		},
		{
			name:  "username change triggers",
			attrs: Attributes{AttrUsername: "bob"},
			want:  true,
		},
		{
			name:  "realm change triggers",
			attrs: Attributes{AttrRealm: "r2"},
			want:  true,
		},
		{
			name:  "identity change suppressed by skip flag",
			attrs: Attributes{AttrEmail: "new@b.test"},
			opts:  Options{SkipIdentityInvalidation: true},
			want:  false,
		},
		{
			name:  "unchanged identity value does not trigger",
			attrs: Attributes{AttrEmail: "a@b.test", AttrUsername: "alice"},
			want:  false,
		},
		{
			name:  "non-identity attributes do not trigger",
			attrs: Attributes{AttrName: "Alice", AttrEmailVerified: true},
			want:  false,
		},
		{
			name:  "non-string identity value triggers",
			attrs: Attributes{AttrEmail: 42},
			want:  true,
		},
		{
			name:  "empty diff does not trigger",
			attrs: Attributes{},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldInvalidate(before, tt.attrs, tt.opts))
		})
	}
}

func TestInvalidator_Revoke(t *testing.T) {
	ctx := context.Background()

	seed := func(store *fakeTokenStore) {
		now := time.Now()
		store.tokens["t1"] = &AccessToken{ID: "t1", UserID: "u1", TTL: 3600, Created: now}
		store.tokens["t2"] = &AccessToken{ID: "t2", UserID: "u1", TTL: 3600, Created: now}
		store.tokens["t3"] = &AccessToken{ID: "t3", UserID: "u2", TTL: 3600, Created: now}
	}

	t.Run("revokes only the given users", func(t *testing.T) {
		store := newFakeTokenStore()
		seed(store)

		inv := NewInvalidator(store, nil)
		require.NoError(t, inv.Revoke(ctx, []string{"u1"}, RevokeReasonMutation, Options{}))

		assert.NotContains(t, store.tokens, "t1")
		assert.NotContains(t, store.tokens, "t2")
		assert.Contains(t, store.tokens, "t3")
	})

	t.Run("current token survives", func(t *testing.T) {
		store := newFakeTokenStore()
		seed(store)

		inv := NewInvalidator(store, nil)
		opts := Options{PreserveAccessTokens: true, CurrentToken: "t1"}
		require.NoError(t, inv.Revoke(ctx, []string{"u1"}, RevokeReasonMutation, opts))

		assert.Contains(t, store.tokens, "t1")
		assert.NotContains(t, store.tokens, "t2")
	})

	t.Run("preserve flag without current token skips revocation", func(t *testing.T) {
		store := newFakeTokenStore()
		seed(store)

		inv := NewInvalidator(store, nil)
		opts := Options{PreserveAccessTokens: true}
		require.NoError(t, inv.Revoke(ctx, []string{"u1"}, RevokeReasonMutation, opts))

		assert.Len(t, store.tokens, 3)
	})

	t.Run("nil token relation is a no-op", func(t *testing.T) {
		inv := NewInvalidator(nil, nil)
		assert.NoError(t, inv.Revoke(ctx, []string{"u1"}, RevokeReasonMutation, Options{}))
	})

	t.Run("empty user set is a no-op", func(t *testing.T) {
		store := newFakeTokenStore()
		seed(store)

		inv := NewInvalidator(store, nil)
		require.NoError(t, inv.Revoke(ctx, nil, RevokeReasonMutation, Options{}))
		assert.Len(t, store.tokens, 3)
	})

	t.Run("store failure propagates", func(t *testing.T) {
		store := &failingTokenStore{err: errors.New("connection lost")}
		inv := NewInvalidator(store, nil)

		err := inv.Revoke(ctx, []string{"u1"}, RevokeReasonMutation, Options{})
		require.Error(t, err)
		assert.ErrorContains(t, err, "connection lost")
	})
}

// failingTokenStore fails every call with a fixed error.
type failingTokenStore struct{ err error }

func (s *failingTokenStore) Create(context.Context, *AccessToken, Options) error { return s.err }

func (s *failingTokenStore) FindByID(context.Context, string, Options) (*AccessToken, error) {
	return nil, s.err
}

func (s *failingTokenStore) ListForUser(context.Context, string, Options) ([]*AccessToken, error) {
	return nil, s.err
}

func (s *failingTokenStore) Delete(context.Context, string, Options) error { return s.err }

func (s *failingTokenStore) DeleteForUsers(context.Context, []string, string, Options) (int64, error) {
	return 0, s.err
}
