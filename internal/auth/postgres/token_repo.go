// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

const tokenColumns = "id, user_id, ttl, created_at, principal_type, scopes"

// TokenRepository implements auth.TokenStore using PostgreSQL.
type TokenRepository struct {
	pool pgxPool
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool pgxPool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// Create stores a new access token.
func (r *TokenRepository) Create(ctx context.Context, t *auth.AccessToken, _ auth.Options) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_tokens (id, user_id, ttl, created_at, principal_type, scopes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		t.ID,
		t.UserID,
		t.TTL,
		t.Created,
		t.PrincipalType,
		t.Scopes,
	)
	if err != nil {
		return oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert access_token").
			With("user_id", t.UserID).
			Wrap(err)
	}
	return nil
}

// FindByID retrieves a token by id.
func (r *TokenRepository) FindByID(ctx context.Context, id string, _ auth.Options) (*auth.AccessToken, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM access_tokens
		WHERE id = $1
	`, id)

	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_BY_ID_FAILED").
			With("operation", "get token by id").
			Wrap(err)
	}
	return t, nil
}

// ListForUser retrieves all tokens owned by the user.
func (r *TokenRepository) ListForUser(ctx context.Context, userID string, _ auth.Options) ([]*auth.AccessToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tokenColumns+`
		FROM access_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, oops.Code("TOKEN_LIST_FAILED").
			With("operation", "list tokens by user").
			With("user_id", userID).
			Wrap(err)
	}
	defer rows.Close()

	var tokens []*auth.AccessToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, oops.Code("TOKEN_LIST_FAILED").Wrap(err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TOKEN_LIST_FAILED").Wrap(err)
	}
	return tokens, nil
}

// Delete removes one token by id.
func (r *TokenRepository) Delete(ctx context.Context, id string, _ auth.Options) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM access_tokens WHERE id = $1`, id)
	if err != nil {
		return oops.Code("TOKEN_DELETE_FAILED").
			With("operation", "delete access_token").
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteForUsers removes all tokens of the given users except exceptID.
func (r *TokenRepository) DeleteForUsers(ctx context.Context, userIDs []string, exceptID string, _ auth.Options) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	var tag pgconn.CommandTag
	var err error
	if exceptID == "" {
		tag, err = r.pool.Exec(ctx, `DELETE FROM access_tokens WHERE user_id = ANY($1)`, userIDs)
	} else {
		tag, err = r.pool.Exec(ctx, `DELETE FROM access_tokens WHERE user_id = ANY($1) AND id <> $2`, userIDs, exceptID)
	}
	if err != nil {
		return 0, oops.Code("TOKEN_DELETE_FOR_USERS_FAILED").
			With("operation", "bulk delete access_tokens").
			With("user_ids", userIDs).
			Wrap(err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (*auth.AccessToken, error) {
	var t auth.AccessToken
	if err := row.Scan(&t.ID, &t.UserID, &t.TTL, &t.Created, &t.PrincipalType, &t.Scopes); err != nil {
		return nil, err
	}
	return &t, nil
}
