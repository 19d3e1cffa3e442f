// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

// Options carries caller-supplied context through an operation chain. The
// same value is propagated unchanged into every nested store call triggered
// by the outer operation, so collaborators observe a consistent option set.
type Options struct {
	// PreserveAccessTokens suppresses session invalidation for the mutation
	// it accompanies. When CurrentToken is also set, only that token is
	// spared; otherwise no tokens are revoked.
	PreserveAccessTokens bool

	// CurrentToken is the id of the acting request's own access token. When
	// set, that token survives revocation triggered by the operation, so the
	// acting session outlives its own identity change.
	CurrentToken string

	// SkipIdentityInvalidation exempts email/username/realm changes from
	// triggering revocation. Password changes always trigger.
	SkipIdentityInvalidation bool

	// Trusted marks the caller as privileged. Untrusted mutations have
	// server-controlled attributes (emailVerified, id) stripped before they
	// reach the store.
	Trusted bool

	// Extra holds collaborator-specific values the core does not interpret.
	Extra map[string]any
}
