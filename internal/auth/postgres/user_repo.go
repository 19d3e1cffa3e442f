// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package postgres implements the auth stores using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// pgxPool is the subset of pgxpool.Pool the repositories use. Declared as
// an interface so pgxmock can stand in during tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = "id, email, username, realm, password_hash, email_verified, name, created_at, updated_at"

// UserRepository implements auth.UserStore using PostgreSQL. Per-realm
// email/username uniqueness is enforced by partial unique indexes; a
// conflicting concurrent write surfaces as a 409 error rather than being
// pre-checked.
type UserRepository struct {
	pool pgxPool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool pgxPool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, u *auth.User, _ auth.Options) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, username, realm, password_hash, email_verified, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		u.ID,
		nullable(u.Email),
		nullable(u.Username),
		u.Realm,
		u.PasswordHash,
		u.EmailVerified,
		u.Name,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if code, match := uniqueViolation(err); match {
			return oops.Code(code).
				With(auth.StatusKey, 409).
				With("realm", u.Realm).
				Wrap(err)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	return nil
}

// FindByID retrieves a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string, _ auth.Options) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return u, nil
}

// FindByEmail retrieves a user by (realm, email). Case-insensitive lookups
// compare lowercased values, matching the normalization applied on write.
func (r *UserRepository) FindByEmail(ctx context.Context, realm, email string, caseSensitive bool, _ auth.Options) (*auth.User, error) {
	predicate := "email = $2"
	if !caseSensitive {
		predicate = "lower(email) = lower($2)"
	}
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE realm = $1 AND `+predicate+`
	`, realm, email)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			With("realm", realm).
			Wrap(err)
	}
	return u, nil
}

// FindByUsername retrieves a user by (realm, username).
func (r *UserRepository) FindByUsername(ctx context.Context, realm, username string, _ auth.Options) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE realm = $1 AND username = $2
	`, realm, username)

	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("operation", "get user by username").
			With("realm", realm).
			Wrap(err)
	}
	return u, nil
}

// FindIDs resolves a filter to the matching user id set.
func (r *UserRepository) FindIDs(ctx context.Context, f auth.UserFilter, _ auth.Options) ([]string, error) {
	where, args := filterClause(f, 1)
	rows, err := r.pool.Query(ctx, `SELECT id FROM users`+where, args...)
	if err != nil {
		return nil, oops.Code("USER_FIND_IDS_FAILED").
			With("operation", "resolve user filter").
			Wrap(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, oops.Code("USER_FIND_IDS_FAILED").Wrap(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_FIND_IDS_FAILED").Wrap(err)
	}
	return ids, nil
}

// UpdateAttributes applies a partial update to one user.
func (r *UserRepository) UpdateAttributes(ctx context.Context, id string, attrs auth.Attributes, _ auth.Options) error {
	set, args := setClause(attrs, 2)
	if set == "" {
		return nil
	}
	tag, err := r.pool.Exec(ctx, `UPDATE users SET `+set+` WHERE id = $1`, append([]any{id}, args...)...)
	if err != nil {
		if code, match := uniqueViolation(err); match {
			return oops.Code(code).With(auth.StatusKey, 409).Wrap(err)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user attributes").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Replace overwrites all attributes of one user.
func (r *UserRepository) Replace(ctx context.Context, u *auth.User, _ auth.Options) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email = $2, username = $3, realm = $4, password_hash = $5,
		    email_verified = $6, name = $7, updated_at = $8
		WHERE id = $1
	`,
		u.ID,
		nullable(u.Email),
		nullable(u.Username),
		u.Realm,
		u.PasswordHash,
		u.EmailVerified,
		u.Name,
		time.Now(),
	)
	if err != nil {
		if code, match := uniqueViolation(err); match {
			return oops.Code(code).With(auth.StatusKey, 409).Wrap(err)
		}
		return oops.Code("USER_REPLACE_FAILED").
			With("operation", "replace user").
			With("id", u.ID).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", u.ID).Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateAll applies a partial update to every user matched by the filter.
func (r *UserRepository) UpdateAll(ctx context.Context, f auth.UserFilter, attrs auth.Attributes, _ auth.Options) (int64, error) {
	set, setArgs := setClause(attrs, 1)
	if set == "" {
		return 0, nil
	}
	where, whereArgs := filterClause(f, len(setArgs)+1)
	tag, err := r.pool.Exec(ctx, `UPDATE users SET `+set+where, append(setArgs, whereArgs...)...)
	if err != nil {
		return 0, oops.Code("USER_UPDATE_ALL_FAILED").
			With("operation", "bulk update users").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes one user. Owned tokens are dropped by the access_tokens
// foreign key cascade; the invalidation engine still issues an explicit
// revocation so non-cascading stores behave identically.
func (r *UserRepository) Delete(ctx context.Context, id string, _ auth.Options) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteAll removes every user matched by the filter.
func (r *UserRepository) DeleteAll(ctx context.Context, f auth.UserFilter, _ auth.Options) (int64, error) {
	where, args := filterClause(f, 1)
	tag, err := r.pool.Exec(ctx, `DELETE FROM users`+where, args...)
	if err != nil {
		return 0, oops.Code("USER_DELETE_ALL_FAILED").
			With("operation", "bulk delete users").
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	var email, username *string
	if err := row.Scan(&u.ID, &email, &username, &u.Realm, &u.PasswordHash, &u.EmailVerified, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if email != nil {
		u.Email = *email
	}
	if username != nil {
		u.Username = *username
	}
	return &u, nil
}

// nullable maps "" to NULL so the partial unique indexes ignore users
// without an email or username.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// uniqueViolation maps a unique index violation to the conflicting field's
// stable code.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return "", false
	}
	if strings.Contains(pgErr.ConstraintName, "email") {
		return auth.CodeEmailExists, true
	}
	if strings.Contains(pgErr.ConstraintName, "username") {
		return auth.CodeUsernameExists, true
	}
	return "USER_EXISTS", true
}

// attrColumns maps attribute keys to their columns. Unknown keys are
// ignored, matching the store contract.
var attrColumns = map[string]string{
	auth.AttrEmail:         "email",
	auth.AttrUsername:      "username",
	auth.AttrRealm:         "realm",
	auth.AttrPassword:      "password_hash",
	auth.AttrEmailVerified: "email_verified",
	auth.AttrName:          "name",
}

// attrOrder fixes the clause order so generated SQL is deterministic.
var attrOrder = []string{
	auth.AttrEmail,
	auth.AttrUsername,
	auth.AttrRealm,
	auth.AttrPassword,
	auth.AttrEmailVerified,
	auth.AttrName,
}

func setClause(attrs auth.Attributes, firstArg int) (string, []any) {
	var parts []string
	var args []any
	n := firstArg
	for _, key := range attrOrder {
		raw, ok := attrs[key]
		if !ok {
			continue
		}
		if key == auth.AttrEmail || key == auth.AttrUsername {
			if s, isString := raw.(string); isString {
				raw = nullable(s)
			}
		}
		parts = append(parts, fmt.Sprintf("%s = $%d", attrColumns[key], n))
		args = append(args, raw)
		n++
	}
	if len(parts) == 0 {
		return "", nil
	}
	parts = append(parts, fmt.Sprintf("updated_at = $%d", n))
	args = append(args, time.Now())
	return strings.Join(parts, ", "), args
}

func filterClause(f auth.UserFilter, firstArg int) (string, []any) {
	var parts []string
	var args []any
	n := firstArg
	if len(f.IDs) > 0 {
		parts = append(parts, fmt.Sprintf("id = ANY($%d)", n))
		args = append(args, f.IDs)
		n++
	}
	if f.Realm != nil {
		parts = append(parts, fmt.Sprintf("realm = $%d", n))
		args = append(args, *f.Realm)
		n++
	}
	if f.Email != nil {
		parts = append(parts, fmt.Sprintf("email = $%d", n))
		args = append(args, *f.Email)
		n++
	}
	if f.Username != nil {
		parts = append(parts, fmt.Sprintf("username = $%d", n))
		args = append(args, *f.Username)
		n++
	}
	if f.EmailVerified != nil {
		parts = append(parts, fmt.Sprintf("email_verified = $%d", n))
		args = append(args, *f.EmailVerified)
		n++
	}
	if f.Name != nil {
		parts = append(parts, fmt.Sprintf("name = $%d", n))
		args = append(args, *f.Name)
		n++
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}
