package postgres

import (
	"context"
	"fmt"
	"time"
)

type BlacklistRepo struct {
	DB DBTX
}

const addBlacklisted = `-- name: AddBlacklisted
INSERT INTO blacklisted_tokens (token, expires_at)
VALUES ($1, $2)
ON CONFLICT (token) DO NOTHING
`

func (r *BlacklistRepo) Add(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := r.DB.Exec(ctx, addBlacklisted, token, expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const blacklistedExists = `-- name: BlacklistedExists
SELECT EXISTS (SELECT 1 FROM blacklisted_tokens WHERE token = $1)
`

func (r *BlacklistRepo) Exists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, blacklistedExists, token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

const deleteExpiredBlacklisted = `-- name: DeleteExpiredBlacklisted
DELETE FROM blacklisted_tokens
WHERE expires_at < $1
`

func (r *BlacklistRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredBlacklisted, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}
