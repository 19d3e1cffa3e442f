// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package httpapi exposes the login/logout surface over HTTP. It is a thin
// adapter; all authentication decisions live in the auth package.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/httpmw"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// Handler serves the authentication endpoints.
type Handler struct {
	service *auth.Service
	manager *auth.Manager
	lookup  auth.TokenLookup
	logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(service *auth.Service, manager *auth.Manager, lookup auth.TokenLookup, logger *slog.Logger) (*Handler, error) {
	if service == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if manager == nil {
		return nil, oops.Errorf("token manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, manager: manager, lookup: lookup, logger: logger}, nil
}

// Routes builds the HTTP handler with token authentication applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users", h.handleRegister)
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.Handle("POST /logout", httpmw.RequireToken(http.HandlerFunc(h.handleLogout)))
	mux.Handle("GET /whoami", httpmw.RequireToken(http.HandlerFunc(h.handleWhoami)))
	mux.Handle("POST /users/change-password", httpmw.RequireToken(http.HandlerFunc(h.handleChangePassword)))

	return httpmw.Authenticate(h.manager, h.lookup, h.logger)(mux)
}

type loginRequest struct {
	Email    any      `json:"email"`
	Username any      `json:"username"`
	Realm    any      `json:"realm"`
	Password string   `json:"password"`
	TTL      int64    `json:"ttl"`
	Scopes   []string `json:"scopes"`
}

type tokenResponse struct {
	ID      string   `json:"id"`
	UserID  string   `json:"userId"`
	TTL     int64    `json:"ttl"`
	Created string   `json:"created"`
	Scopes  []string `json:"scopes,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpmw.WriteError(w, badRequest(err))
		return
	}

	token, err := h.service.Login(r.Context(), auth.Credentials{
		Email:    req.Email,
		Username: req.Username,
		Realm:    req.Realm,
		Password: req.Password,
		TTL:      req.TTL,
		Scopes:   req.Scopes,
	}, auth.Options{})
	if err != nil {
		errutil.LogError(h.logger, "login failed", err)
		httpmw.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenBody(token))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := httpmw.TokenFromContext(r.Context())
	if err := h.service.Logout(r.Context(), token.ID, auth.Options{}); err != nil {
		errutil.LogError(h.logger, "logout failed", err)
		httpmw.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWhoami(w http.ResponseWriter, r *http.Request) {
	token := httpmw.TokenFromContext(r.Context())
	writeJSON(w, http.StatusOK, tokenBody(token))
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Realm    string `json:"realm"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpmw.WriteError(w, badRequest(err))
		return
	}

	user, err := h.service.Register(r.Context(), auth.NewUserInput{
		Email:    req.Email,
		Username: req.Username,
		Realm:    req.Realm,
		Password: req.Password,
		Name:     req.Name,
	}, auth.Options{})
	if err != nil {
		errutil.LogError(h.logger, "registration failed", err)
		httpmw.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"email":    user.Email,
		"username": user.Username,
		"realm":    user.Realm,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	token := httpmw.TokenFromContext(r.Context())

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpmw.WriteError(w, badRequest(err))
		return
	}

	// The acting session survives its own password change.
	opts := auth.Options{CurrentToken: token.ID}
	if err := h.service.ChangePassword(r.Context(), token.UserID, req.CurrentPassword, req.NewPassword, opts); err != nil {
		errutil.LogError(h.logger, "change password failed", err)
		httpmw.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func tokenBody(token *auth.AccessToken) tokenResponse {
	return tokenResponse{
		ID:      token.ID,
		UserID:  token.UserID,
		TTL:     token.TTL,
		Created: token.Created.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Scopes:  token.Scopes,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write failure is not recoverable
	json.NewEncoder(w).Encode(body)
}

func badRequest(err error) error {
	return oops.Code("MALFORMED_REQUEST").
		With("status", http.StatusBadRequest).
		Wrap(err)
}
