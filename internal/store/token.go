package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/esurat/apiserver/types"
)

// TokenRepository persists revocable access tokens.
type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, token types.AccessToken) (types.AccessToken, error) {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	const query = `
		INSERT INTO access_tokens (id, user_id, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, token.ID, token.UserID, token.Name, token.ExpiresAt, token.CreatedAt); err != nil {
		return types.AccessToken{}, err
	}
	return token, nil
}

func (r *TokenRepository) Get(ctx context.Context, id string) (types.AccessToken, error) {
	const query = `
		SELECT id, user_id, name, expires_at, last_used_at, created_at
		FROM access_tokens
		WHERE id = $1`
	var token types.AccessToken
	var lastUsed sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&token.ID,
		&token.UserID,
		&token.Name,
		&token.ExpiresAt,
		&lastUsed,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.AccessToken{}, ErrNotFound
		}
		return types.AccessToken{}, err
	}
	token.LastUsedAt = timePtr(lastUsed)
	return token, nil
}

// Touch records token usage.
func (r *TokenRepository) Touch(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE access_tokens SET last_used_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, at)
	return err
}

func (r *TokenRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM access_tokens WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
