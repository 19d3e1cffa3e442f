// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Manager issues access tokens and evaluates their validity.
type Manager struct {
	tokens   TokenStore
	registry *Registry
	idBytes  int
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a Manager. idBytes <= 0 selects DefaultTokenIDBytes.
func NewManager(tokens TokenStore, registry *Registry, idBytes int, logger *slog.Logger) (*Manager, error) {
	if tokens == nil {
		return nil, oops.Errorf("token store is required")
	}
	if registry == nil {
		return nil, oops.Errorf("principal registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if idBytes <= 0 {
		idBytes = DefaultTokenIDBytes
	}
	return &Manager{
		tokens:   tokens,
		registry: registry,
		idBytes:  idBytes,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Mint creates and persists a token for the user. ttl == 0 selects
// DefaultTokenTTL.
func (m *Manager) Mint(ctx context.Context, userID string, ttl int64, scopes []string, principalType string, opts Options) (*AccessToken, error) {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}

	id, err := GenerateTokenID(m.idBytes)
	if err != nil {
		return nil, err
	}

	token := &AccessToken{
		ID:            id,
		UserID:        userID,
		TTL:           ttl,
		Created:       m.now(),
		PrincipalType: principalType,
		Scopes:        scopes,
	}
	if err := m.tokens.Create(ctx, token, opts); err != nil {
		return nil, oops.Code("TOKEN_CREATE_FAILED").
			With("user_id", userID).
			Wrap(err)
	}

	RecordTokenIssued()
	return token, nil
}

// Resolve looks a token up by id and validates it. An absent token is a
// normal negative result (nil, nil), not an error; a present-but-invalid
// token is an INVALID_TOKEN authentication error.
func (m *Manager) Resolve(ctx context.Context, id string, opts Options) (*AccessToken, error) {
	if id == "" {
		return nil, nil
	}

	token, err := m.tokens.FindByID(ctx, id, opts)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("TOKEN_LOOKUP_FAILED").Wrap(err)
	}

	valid, err := m.Validate(ctx, token, opts)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, coded(CodeInvalidToken, 401).Errorf("invalid access token")
	}
	return token, nil
}

// Validate evaluates token freshness. Malformed state (zero Created, TTL of
// 0, TTL below EternalTTL when eternal tokens are disallowed) fails closed
// with an INVALID_TOKEN_STATE error. An unresolvable principal type yields
// (false, nil). A well-formed expired token is deleted as a side effect
// before invalidity is reported; expired tokens are garbage-collected
// lazily on first use, never eagerly swept.
func (m *Manager) Validate(ctx context.Context, token *AccessToken, opts Options) (bool, error) {
	if token.Created.IsZero() {
		return false, coded(CodeInvalidTokenState, 500).
			Errorf("token created must be a valid timestamp")
	}
	if token.TTL == 0 {
		return false, coded(CodeInvalidTokenState, 500).
			Errorf("token ttl must be present and non-zero")
	}

	principal, ok := m.registry.Lookup(token.PrincipalType)
	if !ok {
		// Unknown principal type: invalid, but not an integrity error and
		// not grounds for deletion.
		return false, nil
	}

	if !principal.AllowEternalTokens && token.TTL < EternalTTL {
		return false, coded(CodeInvalidTokenState, 500).
			With("ttl", token.TTL).
			Errorf("token ttl must be >= %d", EternalTTL)
	}

	if token.IsEternal() {
		if principal.AllowEternalTokens {
			return true, nil
		}
	} else if m.now().Sub(token.Created) < time.Duration(token.TTL)*time.Second {
		return true, nil
	}

	if err := m.tokens.Delete(ctx, token.ID, opts); err != nil && !errors.Is(err, ErrNotFound) {
		return false, oops.Code("TOKEN_DELETE_FAILED").
			With("token_id", token.ID).
			Wrap(err)
	}
	RecordTokensRevoked(RevokeReasonExpired, 1)
	m.logger.Debug("expired access token removed",
		"user_id", token.UserID,
		"ttl", token.TTL)
	return false, nil
}
