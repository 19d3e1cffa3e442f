// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth implements the credential and access-token lifecycle for
// Gatehouse: user accounts partitioned by realm, opaque store-backed access
// tokens, request-bound token resolution, and session invalidation driven by
// identity-affecting mutations.
//
// # Domain Types
//
// Domain types (User, AccessToken) should be created through their
// constructors:
//   - NewUser - creates a User with normalized identity fields and a hashed
//     password
//   - Manager.Mint - issues a validated AccessToken
//
// Direct struct initialization bypasses validation and may create invalid
// state. Store implementations receive pre-validated types.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - registration, login, logout, password changes, user mutations
//   - Manager - token minting, resolution, and validity evaluation
//   - Invalidator - token revocation on credential-affecting changes
//
// Every error produced by this package carries a stable machine-readable code
// and an HTTP-equivalent status, extractable with pkg/errutil.
package auth
