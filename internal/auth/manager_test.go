// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokenStore is a map-backed TokenStore for exercising the Manager
// without a database.
type fakeTokenStore struct {
	tokens  map[string]*AccessToken
	failGen error
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: map[string]*AccessToken{}}
}

func (s *fakeTokenStore) Create(_ context.Context, t *AccessToken, _ Options) error {
	if s.failGen != nil {
		return s.failGen
	}
	cp := *t
	s.tokens[t.ID] = &cp
	return nil
}

func (s *fakeTokenStore) FindByID(_ context.Context, id string, _ Options) (*AccessToken, error) {
	t, ok := s.tokens[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTokenStore) ListForUser(_ context.Context, userID string, _ Options) ([]*AccessToken, error) {
	var out []*AccessToken
	for _, t := range s.tokens {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeTokenStore) Delete(_ context.Context, id string, _ Options) error {
	if _, ok := s.tokens[id]; !ok {
		return ErrNotFound
	}
	delete(s.tokens, id)
	return nil
}

func (s *fakeTokenStore) DeleteForUsers(_ context.Context, userIDs []string, exceptID string, _ Options) (int64, error) {
	owned := map[string]bool{}
	for _, id := range userIDs {
		owned[id] = true
	}
	var n int64
	for id, t := range s.tokens {
		if owned[t.UserID] && id != exceptID {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

func testRegistry(allowEternal bool, tokens TokenStore) *Registry {
	return NewRegistry(map[string]PrincipalConfig{
		DefaultPrincipal: {AllowEternalTokens: allowEternal, Tokens: tokens},
	})
}

func testManager(t *testing.T, store TokenStore, allowEternal bool) *Manager {
	t.Helper()
	m, err := NewManager(store, testRegistry(allowEternal, store), 0, slog.Default())
	require.NoError(t, err)
	return m
}

func TestNewManager_NilDependencies(t *testing.T) {
	_, err := NewManager(nil, testRegistry(false, nil), 0, nil)
	require.Error(t, err)

	_, err = NewManager(newFakeTokenStore(), nil, 0, nil)
	require.Error(t, err)
}

func TestManager_Validate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		ttl          int64
		age          time.Duration
		allowEternal bool
		valid        bool
		wantErrCode  string
	}{
		{name: "fresh token is valid", ttl: 3600, age: time.Minute, valid: true},
		{name: "one second before expiry is valid", ttl: 3600, age: 3599 * time.Second, valid: true},
		{name: "exactly at ttl is invalid", ttl: 3600, age: 3600 * time.Second, valid: false},
		{name: "past ttl is invalid", ttl: 60, age: time.Hour, valid: false},
		{name: "eternal allowed", ttl: EternalTTL, age: 1000 * time.Hour, allowEternal: true, valid: true},
		{name: "eternal disallowed", ttl: EternalTTL, age: time.Minute, allowEternal: false, valid: false},
		{name: "zero ttl is a hard error", ttl: 0, age: time.Minute, wantErrCode: CodeInvalidTokenState},
		{name: "ttl below eternal is a hard error", ttl: -2, age: time.Minute, wantErrCode: CodeInvalidTokenState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeTokenStore()
			m := testManager(t, store, tt.allowEternal)
			m.now = func() time.Time { return now }

			token := &AccessToken{
				ID:      "tok1",
				UserID:  "user1",
				TTL:     tt.ttl,
				Created: now.Add(-tt.age),
			}
			store.tokens[token.ID] = token

			valid, err := m.Validate(ctx, token, Options{})
			if tt.wantErrCode != "" {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.valid, valid)
		})
	}
}

func TestManager_Validate_ZeroCreated(t *testing.T) {
	store := newFakeTokenStore()
	m := testManager(t, store, false)

	_, err := m.Validate(context.Background(), &AccessToken{ID: "t", TTL: 60}, Options{})
	require.Error(t, err)
}

func TestManager_Validate_DeletesExpiredToken(t *testing.T) {
	ctx := context.Background()
	store := newFakeTokenStore()
	m := testManager(t, store, false)

	token := &AccessToken{
		ID:      "expired",
		UserID:  "user1",
		TTL:     10,
		Created: time.Now().Add(-time.Hour),
	}
	store.tokens[token.ID] = token

	valid, err := m.Validate(ctx, token, Options{})
	require.NoError(t, err)
	assert.False(t, valid)
	assert.NotContains(t, store.tokens, "expired", "expired token should be garbage-collected on validation")
}

func TestManager_Validate_UnknownPrincipalType(t *testing.T) {
	ctx := context.Background()
	store := newFakeTokenStore()
	m := testManager(t, store, false)

	token := &AccessToken{
		ID:            "poly",
		UserID:        "user1",
		TTL:           3600,
		Created:       time.Now(),
		PrincipalType: "device",
	}
	store.tokens[token.ID] = token

	valid, err := m.Validate(ctx, token, Options{})
	require.NoError(t, err, "unresolved principal is not an error")
	assert.False(t, valid)
	assert.Contains(t, store.tokens, "poly", "unresolved principal must not delete the token")
}

func TestManager_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("absent token is a normal negative result", func(t *testing.T) {
		m := testManager(t, newFakeTokenStore(), false)

		token, err := m.Resolve(ctx, "missing", Options{})
		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("empty id is a normal negative result", func(t *testing.T) {
		m := testManager(t, newFakeTokenStore(), false)

		token, err := m.Resolve(ctx, "", Options{})
		require.NoError(t, err)
		assert.Nil(t, token)
	})

	t.Run("expired token is an authentication error", func(t *testing.T) {
		store := newFakeTokenStore()
		m := testManager(t, store, false)
		store.tokens["old"] = &AccessToken{
			ID:      "old",
			UserID:  "user1",
			TTL:     10,
			Created: time.Now().Add(-time.Hour),
		}

		_, err := m.Resolve(ctx, "old", Options{})
		require.Error(t, err)
	})

	t.Run("minted token resolves back to its user", func(t *testing.T) {
		store := newFakeTokenStore()
		m := testManager(t, store, false)

		minted, err := m.Mint(ctx, "user42", 3600, []string{"read"}, "", Options{})
		require.NoError(t, err)
		assert.Len(t, minted.ID, 64)

		resolved, err := m.Resolve(ctx, minted.ID, Options{})
		require.NoError(t, err)
		require.NotNil(t, resolved)
		assert.Equal(t, "user42", resolved.UserID)
		assert.Equal(t, []string{"read"}, resolved.Scopes)
	})
}

func TestManager_Mint_DefaultTTL(t *testing.T) {
	store := newFakeTokenStore()
	m := testManager(t, store, false)

	token, err := m.Mint(context.Background(), "user1", 0, nil, "", Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultTokenTTL), token.TTL)
}
