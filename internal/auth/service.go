// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/samber/oops"
)

// Settings is the immutable policy configuration the Service is constructed
// with. There are no process-wide mutable flags; tests and hosts build the
// Service they need.
type Settings struct {
	// CaseSensitiveEmail disables lowercasing of emails on write and lookup.
	CaseSensitiveEmail bool

	// RealmRequired rejects logins that resolve no realm.
	RealmRequired bool

	// RealmDelimiter, when non-empty, enables splitting a supplied
	// username/email of the form "realm<delimiter>identifier".
	RealmDelimiter string

	// DefaultTokenTTL overrides the package default for minted tokens.
	DefaultTokenTTL int64
}

// Credentials is a login payload. Email, Username, and Realm are untyped
// because they arrive from untrusted decoding; non-string values (such as
// query operator objects) are rejected before any store access.
type Credentials struct {
	Email    any
	Username any
	Realm    any
	Password string
	TTL      int64
	Scopes   []string
}

// Service orchestrates registration, login, logout, password changes, and
// the user mutations that feed session invalidation.
type Service struct {
	users    UserStore
	tokens   TokenStore
	manager  *Manager
	registry *Registry
	hasher   Hasher
	settings Settings
	inval    *Invalidator
	logger   *slog.Logger
}

// NewService creates a Service. users and manager are required; hasher
// defaults to bcrypt at the default cost, and the token relation defaults
// to the default principal's.
func NewService(users UserStore, tokens TokenStore, manager *Manager, registry *Registry, hasher Hasher, settings Settings, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("user store is required")
	}
	if manager == nil {
		return nil, oops.Errorf("token manager is required")
	}
	if registry == nil {
		return nil, oops.Errorf("principal registry is required")
	}
	if hasher == nil {
		hasher = NewBcryptHasher(DefaultBcryptCost)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		tokens:   tokens,
		manager:  manager,
		registry: registry,
		hasher:   hasher,
		settings: settings,
		inval:    NewInvalidator(tokens, logger),
		logger:   logger,
	}, nil
}

// Register creates a user. Password hashing happens here, at construction
// time, not lazily. Uniqueness of email/username per realm is enforced by
// the store; a concurrent duplicate surfaces as a conflict error rather
// than being pre-checked.
func (s *Service) Register(ctx context.Context, in NewUserInput, opts Options) (*User, error) {
	user, err := NewUser(in, s.principalHasher(""), s.settings.CaseSensitiveEmail)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user, opts); err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates credentials and issues an access token. A missing
// user and a wrong password produce the same LOGIN_FAILED error so callers
// cannot enumerate accounts.
func (s *Service) Login(ctx context.Context, creds Credentials, opts Options) (*AccessToken, error) {
	email, err := credentialString(creds.Email, CodeInvalidEmail, "email")
	if err != nil {
		RecordLogin(StatusRejected)
		return nil, err
	}
	username, err := credentialString(creds.Username, CodeInvalidUsername, "username")
	if err != nil {
		RecordLogin(StatusRejected)
		return nil, err
	}
	realm, err := credentialString(creds.Realm, CodeInvalidRealm, "realm")
	if err != nil {
		RecordLogin(StatusRejected)
		return nil, err
	}

	realm, email, username = s.normalizeRealm(realm, email, username)

	if s.settings.RealmRequired && realm == "" {
		RecordLogin(StatusRejected)
		return nil, coded(CodeRealmRequired, 400).Errorf("realm is required")
	}
	if email == "" && username == "" {
		RecordLogin(StatusRejected)
		return nil, coded(CodeUsernameEmailRequired, 400).
			Errorf("username or email is required")
	}

	user, err := s.lookupUser(ctx, realm, email, username, opts)
	if err != nil && !errors.Is(err, ErrNotFound) {
		RecordLogin(StatusError)
		return nil, oops.Code("LOGIN_LOOKUP_FAILED").Wrap(err)
	}

	if user == nil {
		RecordLogin(StatusFailed)
		return nil, loginFailed()
	}

	match, err := s.HasPassword(user, creds.Password)
	if err != nil {
		RecordLogin(StatusError)
		return nil, oops.Code("LOGIN_VERIFY_FAILED").Wrap(err)
	}
	if !match {
		RecordLogin(StatusFailed)
		return nil, loginFailed()
	}

	token, err := s.CreateAccessToken(ctx, user, creds.TTL, creds.Scopes, opts)
	if err != nil {
		RecordLogin(StatusError)
		return nil, err
	}

	RecordLogin(StatusSuccess)
	s.logger.Info("login succeeded", "user_id", user.ID, "realm", user.Realm)
	return token, nil
}

// Logout deletes the token by id. A missing or unknown token id is an
// error, surfacing caller bugs rather than being absorbed.
func (s *Service) Logout(ctx context.Context, tokenID string, opts Options) error {
	if tokenID == "" {
		return coded(CodeInvalidToken, 401).Errorf("access token is required")
	}
	if err := s.tokens.Delete(ctx, tokenID, opts); err != nil {
		if errors.Is(err, ErrNotFound) {
			return coded(CodeInvalidToken, 401).Errorf("could not find access token")
		}
		return oops.Code("LOGOUT_FAILED").Wrap(err)
	}
	RecordTokensRevoked(RevokeReasonLogout, 1)
	return nil
}

// CreateAccessToken mints a token for the user via the principal's token
// factory, or the Manager's default mint. ttl == 0 selects the configured
// default.
func (s *Service) CreateAccessToken(ctx context.Context, user *User, ttl int64, scopes []string, opts Options) (*AccessToken, error) {
	if ttl == 0 {
		ttl = s.settings.DefaultTokenTTL
	}
	if principal, ok := s.registry.Lookup(DefaultPrincipal); ok && principal.TokenFactory != nil {
		return principal.TokenFactory(ctx, user, ttl, scopes, opts)
	}
	return s.manager.Mint(ctx, user.ID, ttl, scopes, "", opts)
}

// HasPassword reports whether the plaintext matches the user's stored hash.
func (s *Service) HasPassword(user *User, password string) (bool, error) {
	if password == "" || user.PasswordHash == "" {
		return false, nil
	}
	return s.principalHasher("").Compare(password, user.PasswordHash)
}

// ChangePassword verifies the current password and persists the new one.
// The update is routed through the session invalidation engine, and the
// caller-supplied options propagate through every nested store call.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string, opts Options) error {
	user, err := s.loadUser(ctx, userID, opts)
	if err != nil {
		return err
	}

	match, err := s.HasPassword(user, current)
	if err != nil {
		return oops.Code("PASSWORD_VERIFY_FAILED").Wrap(err)
	}
	if !match {
		return coded(CodeInvalidPassword, 400).Errorf("invalid current password")
	}

	return s.setPassword(ctx, user, next, opts)
}

// SetPassword persists a new password without verifying the current one.
// Intended for privileged and reset flows.
func (s *Service) SetPassword(ctx context.Context, userID, next string, opts Options) error {
	user, err := s.loadUser(ctx, userID, opts)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, user, next, opts)
}

func (s *Service) setPassword(ctx context.Context, user *User, next string, opts Options) error {
	hash, err := HashPassword(next, s.principalHasher(""))
	if err != nil {
		return err
	}
	_, err = s.UpdateUser(ctx, user.ID, Attributes{AttrPassword: hash}, opts)
	return err
}

// UpdateUser applies a partial update. Untrusted callers have
// server-controlled attributes stripped; a plaintext password attribute is
// hashed at assignment time. Identity and password changes revoke the
// user's outstanding tokens, subject to the options' exemptions.
func (s *Service) UpdateUser(ctx context.Context, userID string, attrs Attributes, opts Options) (*User, error) {
	if !opts.Trusted {
		attrs = attrs.SanitizeUntrusted()
	} else {
		attrs = attrs.Clone()
	}

	if raw, ok := attrs[AttrPassword]; ok {
		plain, isString := raw.(string)
		if !isString {
			return nil, coded(CodeInvalidPassword, 422).Errorf("password must be a string")
		}
		hash, err := HashPassword(plain, s.principalHasher(""))
		if err != nil {
			return nil, err
		}
		attrs[AttrPassword] = hash
	}
	if raw, ok := attrs[AttrEmail]; ok {
		if email, isString := raw.(string); isString {
			attrs[AttrEmail] = NormalizeEmail(email, s.settings.CaseSensitiveEmail)
		}
	}

	before, err := s.loadUser(ctx, userID, opts)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateAttributes(ctx, userID, attrs, opts); err != nil {
		return nil, err
	}

	if ShouldInvalidate(before, attrs, opts) {
		if err := s.inval.Revoke(ctx, []string{userID}, RevokeReasonMutation, opts); err != nil {
			return nil, err
		}
	}

	return s.users.FindByID(ctx, userID, opts)
}

// ReplaceUser performs a full replace. A replace is treated conservatively
// as "everything may have changed" and always triggers revocation, subject
// to the options' exemptions.
func (s *Service) ReplaceUser(ctx context.Context, user *User, opts Options) error {
	if _, err := s.loadUser(ctx, user.ID, opts); err != nil {
		return err
	}
	user.Email = NormalizeEmail(user.Email, s.settings.CaseSensitiveEmail)
	if err := s.users.Replace(ctx, user, opts); err != nil {
		return err
	}
	return s.inval.Revoke(ctx, []string{user.ID}, RevokeReasonMutation, opts)
}

// UpdateAllUsers applies a partial update to every user matched by the
// filter. The filter is resolved to the affected id set before mutating, so
// revocation touches exactly those users and never anyone else.
func (s *Service) UpdateAllUsers(ctx context.Context, f UserFilter, attrs Attributes, opts Options) (int64, error) {
	if !opts.Trusted {
		attrs = attrs.SanitizeUntrusted()
	} else {
		attrs = attrs.Clone()
	}

	triggers := attrsTouchCredentials(attrs, opts)
	var affected []string
	if triggers {
		ids, err := s.users.FindIDs(ctx, f, opts)
		if err != nil {
			return 0, oops.Code("BULK_RESOLVE_FAILED").Wrap(err)
		}
		affected = ids
	}

	if raw, ok := attrs[AttrPassword]; ok {
		plain, isString := raw.(string)
		if !isString {
			return 0, coded(CodeInvalidPassword, 422).Errorf("password must be a string")
		}
		hash, err := HashPassword(plain, s.principalHasher(""))
		if err != nil {
			return 0, err
		}
		attrs[AttrPassword] = hash
	}

	n, err := s.users.UpdateAll(ctx, f, attrs, opts)
	if err != nil {
		return n, err
	}

	if triggers {
		if err := s.inval.Revoke(ctx, affected, RevokeReasonMutation, opts); err != nil {
			return n, err
		}
	}
	return n, nil
}

// DeleteUser deletes a user and cascades to all of that user's tokens as
// part of the same logical operation.
func (s *Service) DeleteUser(ctx context.Context, userID string, opts Options) error {
	if err := s.users.Delete(ctx, userID, opts); err != nil {
		return err
	}
	return s.cascadeTokens(ctx, []string{userID}, opts)
}

// DeleteAllUsers deletes every user matched by the filter and exactly those
// users' tokens. The filter is resolved before the mutation.
func (s *Service) DeleteAllUsers(ctx context.Context, f UserFilter, opts Options) (int64, error) {
	ids, err := s.users.FindIDs(ctx, f, opts)
	if err != nil {
		return 0, oops.Code("BULK_RESOLVE_FAILED").Wrap(err)
	}

	n, err := s.users.DeleteAll(ctx, f, opts)
	if err != nil {
		return n, err
	}

	if err := s.cascadeTokens(ctx, ids, opts); err != nil {
		return n, err
	}
	return n, nil
}

// cascadeTokens removes every token of the deleted users. Delete cascades
// ignore the current-token exemption: a deleted user keeps no sessions.
func (s *Service) cascadeTokens(ctx context.Context, userIDs []string, opts Options) error {
	if s.tokens == nil || len(userIDs) == 0 {
		return nil
	}
	n, err := s.tokens.DeleteForUsers(ctx, userIDs, "", opts)
	if err != nil {
		return oops.Code("SESSION_INVALIDATION_FAILED").
			With("user_ids", userIDs).
			Wrap(err)
	}
	RecordTokensRevoked(RevokeReasonCascade, n)
	return nil
}

// normalizeRealm splits a realm-prefixed identifier
// ("realm<delimiter>identifier") out of the username or email when
// delimiter parsing is enabled. An explicitly supplied realm wins over an
// embedded prefix.
func (s *Service) normalizeRealm(realm, email, username string) (string, string, string) {
	delim := s.settings.RealmDelimiter
	if delim == "" {
		return realm, email, username
	}
	if realm == "" && username != "" {
		if r, rest, found := strings.Cut(username, delim); found && r != "" {
			return r, email, rest
		}
	}
	if realm == "" && email != "" {
		if r, rest, found := strings.Cut(email, delim); found && r != "" && strings.Contains(rest, "@") {
			return r, rest, username
		}
	}
	return realm, email, username
}

func (s *Service) lookupUser(ctx context.Context, realm, email, username string, opts Options) (*User, error) {
	if email != "" {
		email = NormalizeEmail(email, s.settings.CaseSensitiveEmail)
		return s.users.FindByEmail(ctx, realm, email, s.settings.CaseSensitiveEmail, opts)
	}
	return s.users.FindByUsername(ctx, realm, username, opts)
}

func (s *Service) loadUser(ctx context.Context, userID string, opts Options) (*User, error) {
	user, err := s.users.FindByID(ctx, userID, opts)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, coded(CodeUserNotFound, 401).
				With("user_id", userID).
				Errorf("user not found")
		}
		return nil, oops.Code("USER_LOOKUP_FAILED").Wrap(err)
	}
	return user, nil
}

// principalHasher returns the hasher for a principal type, falling back to
// the service default.
func (s *Service) principalHasher(principalType string) Hasher {
	if principal, ok := s.registry.Lookup(principalType); ok && principal.Hasher != nil {
		return principal.Hasher
	}
	return s.hasher
}

// attrsTouchCredentials reports whether a bulk payload can trigger
// invalidation at all. Bulk updates have no per-record before image, so any
// write to a credential or identity attribute counts as a change.
func attrsTouchCredentials(attrs Attributes, opts Options) bool {
	if _, ok := attrs[AttrPassword]; ok {
		return true
	}
	if opts.SkipIdentityInvalidation {
		return false
	}
	for _, key := range identityAttrs {
		if _, ok := attrs[key]; ok {
			return true
		}
	}
	return false
}

// credentialString guards lookup fields against operator injection: a
// non-string, non-nil value (for example a decoded JSON object) is rejected
// before any store query executes.
func credentialString(v any, code, field string) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	default:
		return "", coded(code, 400).Errorf("invalid %s: must be a string", field)
	}
}

func loginFailed() error {
	return coded(CodeLoginFailed, 401).Errorf("login failed")
}
