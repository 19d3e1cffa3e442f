// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package httpmw_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/memstore"
	"github.com/gatehouse/gatehouse/internal/httpmw"
)

func newManager(t *testing.T) (*auth.Manager, *memstore.TokenStore) {
	t.Helper()
	tokens := memstore.NewTokenStore()
	registry := auth.NewRegistry(map[string]auth.PrincipalConfig{
		auth.DefaultPrincipal: {Tokens: tokens},
	})
	manager, err := auth.NewManager(tokens, registry, 16, slog.Default())
	require.NoError(t, err)
	return manager, tokens
}

func seedToken(t *testing.T, tokens *memstore.TokenStore, id string) *auth.AccessToken {
	t.Helper()
	token := &auth.AccessToken{ID: id, UserID: "u1", TTL: 3600, Created: time.Now()}
	require.NoError(t, tokens.Create(context.Background(), token, auth.Options{}))
	return token
}

func echoToken() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := httpmw.TokenFromContext(r.Context()); token != nil {
			w.Write([]byte(token.UserID))
			return
		}
		w.Write([]byte("anonymous"))
	})
}

func TestAuthenticate(t *testing.T) {
	lookup := auth.DefaultTokenLookup()

	t.Run("valid token attaches to context", func(t *testing.T) {
		manager, tokens := newManager(t)
		seedToken(t, tokens, "tok1")
		handler := httpmw.Authenticate(manager, lookup, nil)(echoToken())

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Access-Token", "tok1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u1", w.Body.String())
	})

	t.Run("no token passes through unauthenticated", func(t *testing.T) {
		manager, _ := newManager(t)
		handler := httpmw.Authenticate(manager, lookup, nil)(echoToken())

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "anonymous", w.Body.String())
	})

	t.Run("unknown token id passes through unauthenticated", func(t *testing.T) {
		manager, _ := newManager(t)
		handler := httpmw.Authenticate(manager, lookup, nil)(echoToken())

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Access-Token", "ghost")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "anonymous", w.Body.String())
	})

	t.Run("expired token is rejected with the error envelope", func(t *testing.T) {
		manager, tokens := newManager(t)
		require.NoError(t, tokens.Create(context.Background(), &auth.AccessToken{
			ID: "old", UserID: "u1", TTL: 10, Created: time.Now().Add(-time.Hour),
		}, auth.Options{}))
		handler := httpmw.Authenticate(manager, lookup, nil)(echoToken())

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Access-Token", "old")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var body struct {
			Error struct {
				Code   string `json:"code"`
				Status int    `json:"status"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, auth.CodeInvalidToken, body.Error.Code)
		assert.Equal(t, http.StatusUnauthorized, body.Error.Status)
	})
}

func TestRequireToken(t *testing.T) {
	t.Run("rejects unauthenticated requests", func(t *testing.T) {
		handler := httpmw.RequireToken(echoToken())

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("passes authenticated requests", func(t *testing.T) {
		manager, tokens := newManager(t)
		seedToken(t, tokens, "tok1")
		handler := httpmw.Authenticate(manager, auth.DefaultTokenLookup(), nil)(
			httpmw.RequireToken(echoToken()))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Access-Token", "tok1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u1", w.Body.String())
	})
}

func TestWriteError_DefaultsTo500(t *testing.T) {
	w := httptest.NewRecorder()
	httpmw.WriteError(w, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestTokenFromContext_Empty(t *testing.T) {
	assert.Nil(t, httpmw.TokenFromContext(context.Background()))
}
