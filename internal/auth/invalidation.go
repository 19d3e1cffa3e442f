// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// identityAttrs are the fields whose change invalidates outstanding
// sessions unless explicitly suppressed. Password changes always invalidate.
var identityAttrs = []string{AttrEmail, AttrUsername, AttrRealm}

// Invalidator revokes outstanding access tokens when a credential-affecting
// change is persisted. A nil token relation makes every call a no-op, so
// principals without session tracking opt out without error.
type Invalidator struct {
	tokens TokenStore
	logger *slog.Logger
}

// NewInvalidator creates an Invalidator over the principal's token
// relation. tokens may be nil.
func NewInvalidator(tokens TokenStore, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{tokens: tokens, logger: logger}
}

// ShouldInvalidate evaluates a before/after attribute diff against the
// trigger set: any password change, or any identity field change unless
// suppressed by the options.
func ShouldInvalidate(before *User, attrs Attributes, opts Options) bool {
	if raw, ok := attrs[AttrPassword]; ok {
		if hash, ok := raw.(string); !ok || hash != before.PasswordHash {
			return true
		}
	}
	if opts.SkipIdentityInvalidation {
		return false
	}
	for _, key := range identityAttrs {
		raw, ok := attrs[key]
		if !ok {
			continue
		}
		val, isString := raw.(string)
		if !isString || val != identityValue(before, key) {
			return true
		}
	}
	return false
}

func identityValue(u *User, key string) string {
	switch key {
	case AttrEmail:
		return u.Email
	case AttrUsername:
		return u.Username
	case AttrRealm:
		return u.Realm
	}
	return ""
}

// Revoke deletes the tokens of exactly the given users. When the options
// carry the acting session's own token, that token survives; when
// PreserveAccessTokens is set without a current token, nothing is revoked.
// A revocation failure propagates so the enclosing mutation reports it
// rather than silently leaving stale sessions valid.
func (inv *Invalidator) Revoke(ctx context.Context, userIDs []string, reason string, opts Options) error {
	if inv.tokens == nil || len(userIDs) == 0 {
		return nil
	}
	if opts.PreserveAccessTokens && opts.CurrentToken == "" {
		return nil
	}

	n, err := inv.tokens.DeleteForUsers(ctx, userIDs, opts.CurrentToken, opts)
	if err != nil {
		return oops.Code("SESSION_INVALIDATION_FAILED").
			With("user_ids", userIDs).
			Wrap(err)
	}

	RecordTokensRevoked(reason, n)
	inv.logger.Info("access tokens revoked",
		"reason", reason,
		"users", len(userIDs),
		"tokens", n)
	return nil
}
