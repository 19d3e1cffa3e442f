// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Stable authentication result codes. Each is paired with an HTTP-equivalent
// status so a REST-facing layer can render a consistent structured error body.
const (
	CodeLoginFailed           = "LOGIN_FAILED"
	CodeInvalidToken          = "INVALID_TOKEN"
	CodeInvalidTokenState     = "INVALID_TOKEN_STATE"
	CodeRealmRequired         = "REALM_REQUIRED"
	CodeUsernameEmailRequired = "USERNAME_EMAIL_REQUIRED"
	CodeInvalidEmail          = "INVALID_EMAIL"
	CodeInvalidUsername       = "INVALID_USERNAME"
	CodeInvalidRealm          = "INVALID_REALM"
	CodeInvalidPassword       = "INVALID_PASSWORD"
	CodePasswordTooLong       = "PASSWORD_TOO_LONG"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeEmailExists           = "EMAIL_EXISTS"
	CodeUsernameExists        = "USERNAME_EXISTS"
	CodeTokenGenerateFailed   = "TOKEN_GENERATE_FAILED"
)

// StatusKey is the oops context key carrying the HTTP-equivalent status.
const StatusKey = "status"

// coded starts an error builder with a stable code and HTTP-equivalent status.
func coded(code string, status int) oops.OopsErrorBuilder {
	return oops.Code(code).With(StatusKey, status)
}
