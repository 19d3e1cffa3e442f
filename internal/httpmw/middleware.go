// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package httpmw adapts the token manager to net/http: it resolves and
// validates access tokens on inbound requests and makes the result
// available through the request context.
package httpmw

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

type contextKey struct{}

// TokenFromContext returns the access token attached by Authenticate, or
// nil when the request carried none.
func TokenFromContext(ctx context.Context) *auth.AccessToken {
	token, _ := ctx.Value(contextKey{}).(*auth.AccessToken)
	return token
}

// Authenticate resolves a token id from each request and validates it
// against the store. A request without a token passes through
// unauthenticated; a request with an invalid token is rejected with the
// error's code and status.
func Authenticate(manager *auth.Manager, lookup auth.TokenLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := auth.ResolveTokenID(r, lookup)
			token, err := manager.Resolve(r.Context(), id, auth.Options{})
			if err != nil {
				errutil.LogError(logger, "token resolution failed", err)
				WriteError(w, err)
				return
			}
			if token != nil {
				ctx := context.WithValue(r.Context(), contextKey{}, token)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireToken rejects requests that did not authenticate.
func RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TokenFromContext(r.Context()) == nil {
			WriteError(w, authorizationRequired())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// errorBody is the structured error representation REST clients receive.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// WriteError renders an error as a JSON body with its stable code and
// status.
func WriteError(w http.ResponseWriter, err error) {
	var body errorBody
	body.Error.Code = errutil.Code(err)
	body.Error.Status = errutil.Status(err)
	body.Error.Message = err.Error()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(body.Error.Status)
	//nolint:errcheck // error response write failure is not recoverable
	json.NewEncoder(w).Encode(body)
}

func authorizationRequired() error {
	return oops.Code("AUTHORIZATION_REQUIRED").
		With("status", http.StatusUnauthorized).
		Errorf("authorization required")
}
