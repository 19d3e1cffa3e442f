// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package memstore provides in-memory UserStore and TokenStore
// implementations for tests and single-process development mode.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// UserStore is an in-memory auth.UserStore. Safe for concurrent use.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*auth.User
}

// NewUserStore creates an empty UserStore.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*auth.User)}
}

// Create stores a user, enforcing per-realm email/username uniqueness the
// way a relational store's unique indexes would.
func (s *UserStore) Create(_ context.Context, u *auth.User, _ auth.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return authConflict("USER_EXISTS", "user id already exists")
	}
	for _, other := range s.users {
		if other.Realm != u.Realm {
			continue
		}
		if u.Email != "" && strings.EqualFold(other.Email, u.Email) {
			return authConflict(auth.CodeEmailExists, "email already exists")
		}
		if u.Username != "" && other.Username == u.Username {
			return authConflict(auth.CodeUsernameExists, "username already exists")
		}
	}

	cp := *u
	s.users[u.ID] = &cp
	return nil
}

// FindByID returns auth.ErrNotFound for unknown ids.
func (s *UserStore) FindByID(_ context.Context, id string, _ auth.Options) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// FindByEmail looks a user up by (realm, email), honoring the
// case-sensitivity policy.
func (s *UserStore) FindByEmail(_ context.Context, realm, email string, caseSensitive bool, _ auth.Options) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Realm != realm {
			continue
		}
		if caseSensitive && u.Email == email {
			cp := *u
			return &cp, nil
		}
		if !caseSensitive && strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

// FindByUsername looks a user up by (realm, username).
func (s *UserStore) FindByUsername(_ context.Context, realm, username string, _ auth.Options) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Realm == realm && u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

// FindIDs resolves a filter to the matching user id set.
func (s *UserStore) FindIDs(_ context.Context, f auth.UserFilter, _ auth.Options) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, u := range s.users {
		if matches(u, f) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// UpdateAttributes applies a partial update to one user.
func (s *UserStore) UpdateAttributes(_ context.Context, id string, attrs auth.Attributes, _ auth.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	applyAttrs(u, attrs)
	return nil
}

// Replace overwrites all attributes of one user.
func (s *UserStore) Replace(_ context.Context, u *auth.User, _ auth.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.users[u.ID]
	if !ok {
		return auth.ErrNotFound
	}
	cp := *u
	cp.CreatedAt = old.CreatedAt
	cp.UpdatedAt = time.Now()
	s.users[u.ID] = &cp
	return nil
}

// UpdateAll applies a partial update to every user matched by the filter.
func (s *UserStore) UpdateAll(_ context.Context, f auth.UserFilter, attrs auth.Attributes, _ auth.Options) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, u := range s.users {
		if matches(u, f) {
			applyAttrs(u, attrs)
			n++
		}
	}
	return n, nil
}

// Delete removes one user.
func (s *UserStore) Delete(_ context.Context, id string, _ auth.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// DeleteAll removes every user matched by the filter.
func (s *UserStore) DeleteAll(_ context.Context, f auth.UserFilter, _ auth.Options) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, u := range s.users {
		if matches(u, f) {
			delete(s.users, id)
			n++
		}
	}
	return n, nil
}

func matches(u *auth.User, f auth.UserFilter) bool {
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			if id == u.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Realm != nil && u.Realm != *f.Realm {
		return false
	}
	if f.Email != nil && u.Email != *f.Email {
		return false
	}
	if f.Username != nil && u.Username != *f.Username {
		return false
	}
	if f.EmailVerified != nil && u.EmailVerified != *f.EmailVerified {
		return false
	}
	if f.Name != nil && u.Name != *f.Name {
		return false
	}
	return true
}

func applyAttrs(u *auth.User, attrs auth.Attributes) {
	for key, raw := range attrs {
		switch key {
		case auth.AttrEmail:
			if v, ok := raw.(string); ok {
				u.Email = v
			}
		case auth.AttrUsername:
			if v, ok := raw.(string); ok {
				u.Username = v
			}
		case auth.AttrRealm:
			if v, ok := raw.(string); ok {
				u.Realm = v
			}
		case auth.AttrPassword:
			if v, ok := raw.(string); ok {
				u.PasswordHash = v
			}
		case auth.AttrEmailVerified:
			if v, ok := raw.(bool); ok {
				u.EmailVerified = v
			}
		case auth.AttrName:
			if v, ok := raw.(string); ok {
				u.Name = v
			}
		}
	}
	u.UpdatedAt = time.Now()
}

// TokenStore is an in-memory auth.TokenStore. Safe for concurrent use.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*auth.AccessToken
}

// NewTokenStore creates an empty TokenStore.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]*auth.AccessToken)}
}

// Create stores a token.
func (s *TokenStore) Create(_ context.Context, t *auth.AccessToken, _ auth.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tokens[t.ID] = &cp
	return nil
}

// FindByID returns auth.ErrNotFound for unknown ids.
func (s *TokenStore) FindByID(_ context.Context, id string, _ auth.Options) (*auth.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// ListForUser returns all tokens owned by the user.
func (s *TokenStore) ListForUser(_ context.Context, userID string, _ auth.Options) ([]*auth.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*auth.AccessToken
	for _, t := range s.tokens {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Delete removes one token, returning auth.ErrNotFound for unknown ids.
func (s *TokenStore) Delete(_ context.Context, id string, _ auth.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.tokens, id)
	return nil
}

// DeleteForUsers removes all tokens of the given users except exceptID.
func (s *TokenStore) DeleteForUsers(_ context.Context, userIDs []string, exceptID string, _ auth.Options) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owned := make(map[string]bool, len(userIDs))
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

func authConflict(code, msg string) error {
	return oops.Code(code).With(auth.StatusKey, 409).Errorf("%s", msg)
}
