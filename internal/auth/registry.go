// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "context"

// DefaultPrincipal is the registry tag used when a token carries no
// principal type.
const DefaultPrincipal = "user"

// TokenFactory mints an access token for a user. Principals may install a
// custom factory; the default mints through the Manager.
type TokenFactory func(ctx context.Context, user *User, ttl int64, scopes []string, opts Options) (*AccessToken, error)

// PrincipalConfig describes one principal type's authentication behavior.
type PrincipalConfig struct {
	// AllowEternalTokens permits ttl = EternalTTL tokens for this principal.
	AllowEternalTokens bool

	// Hasher overrides the default password hasher. Nil keeps the default.
	Hasher Hasher

	// TokenFactory overrides default token creation. Nil keeps the default.
	TokenFactory TokenFactory

	// Tokens is the principal's token relation. Nil means the principal does
	// not track sessions and invalidation is a no-op for it.
	Tokens TokenStore
}

// Registry maps principal type tags to their configurations. It replaces
// runtime model lookup by name with an explicit table, and is immutable
// after construction.
type Registry struct {
	principals map[string]PrincipalConfig
}

// NewRegistry creates a Registry from the given principal table.
func NewRegistry(principals map[string]PrincipalConfig) *Registry {
	table := make(map[string]PrincipalConfig, len(principals))
	for name, cfg := range principals {
		table[name] = cfg
	}
	return &Registry{principals: table}
}

// Lookup resolves a principal type tag. An empty tag resolves to
// DefaultPrincipal.
func (r *Registry) Lookup(principalType string) (PrincipalConfig, bool) {
	if principalType == "" {
		principalType = DefaultPrincipal
	}
	cfg, ok := r.principals[principalType]
	return cfg, ok
}
