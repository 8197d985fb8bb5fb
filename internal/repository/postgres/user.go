package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openbadger/openbadger/internal/apperrors"
	"github.com/openbadger/openbadger/internal/models"
	"github.com/openbadger/openbadger/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, username, email, first_name, last_name, password_hash, roles,
refresh_token_hash, refresh_token_expires_at, session_token`

const createUser = `-- name: CreateUser
INSERT INTO users (username, email, first_name, last_name, password_hash, roles)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	roles := arg.Roles
	if len(roles) == 0 {
		roles = []string{models.RoleEarner}
	}

	rows, _ := r.DB.Query(ctx, createUser, arg.Username, arg.Email, arg.FirstName, arg.LastName, arg.PasswordHash, roles)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return user, apperrors.ErrUserAlreadyExists
		}
		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + `
FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows, apperrors.ErrUserNotFound)
}

const getUserByUsername = `-- name: GetUserByUsername
SELECT ` + userColumns + `
FROM users
WHERE username = $1
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByUsername, username)
	return collectUser(rows, apperrors.ErrUserNotFound)
}

const getUserByRefreshHash = `-- name: GetUserByRefreshHash
SELECT ` + userColumns + `
FROM users
WHERE refresh_token_hash = $1
  AND refresh_token_hash <> ''
`

func (r *UserRepo) GetUserByRefreshHash(ctx context.Context, refreshHash string, validAt time.Time) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByRefreshHash, refreshHash)
	user, err := collectUser(rows, apperrors.ErrRefreshTokenNotFound)
	if err != nil {
		return user, err
	}

	if user.RefreshTokenExpiresAt == nil || user.RefreshTokenExpiresAt.Before(validAt) {
		return models.User{}, apperrors.ErrRefreshTokenExpired
	}

	return user, nil
}

const listUsers = `-- name: ListUsers
SELECT ` + userColumns + `
FROM users
ORDER BY created_at, username
`

func (r *UserRepo) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, _ := r.DB.Query(ctx, listUsers)
	users, err := pgx.CollectRows(rows, rowToUser)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

const listUsersByRole = `-- name: ListUsersByRole
SELECT ` + userColumns + `
FROM users
WHERE $1 = ANY(roles)
ORDER BY created_at, username
`

func (r *UserRepo) ListUsersByRole(ctx context.Context, role string) ([]models.User, error) {
	rows, _ := r.DB.Query(ctx, listUsersByRole, role)
	users, err := pgx.CollectRows(rows, rowToUser)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return users, nil
}

const setRoles = `-- name: SetRoles
UPDATE users
SET roles = $2
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) SetRoles(ctx context.Context, id uuid.UUID, roles []string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, setRoles, id, roles)
	return collectUser(rows, apperrors.ErrUserNotFound)
}

const setSession = `-- name: SetSession
UPDATE users
SET refresh_token_hash = $2, refresh_token_expires_at = $3, session_token = $4
WHERE id = $1
RETURNING id
`

func (r *UserRepo) SetSession(ctx context.Context, id uuid.UUID, s repository.Session) error {
	rows, _ := r.DB.Query(ctx, setSession, id, s.RefreshTokenHash, s.RefreshTokenExpiresAt, s.AccessToken)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])

	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrUserNotFound
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

const rotateSession = `-- name: RotateSession
UPDATE users
SET refresh_token_hash = $3, refresh_token_expires_at = $4, session_token = $5
FROM (SELECT session_token AS old_session_token FROM users WHERE id = $1) prev
WHERE id = $1 AND refresh_token_hash = $2
RETURNING prev.old_session_token
`

// RotateSession installs the new session only when the stored refresh
// hash still equals oldRefreshHash. Exactly one of two concurrent
// rotations with the same token can match, the other gets
// apperrors.ErrRefreshTokenNotFound.
func (r *UserRepo) RotateSession(ctx context.Context, id uuid.UUID, oldRefreshHash string, s repository.Session) (string, error) {
	rows, _ := r.DB.Query(ctx, rotateSession, id, oldRefreshHash, s.RefreshTokenHash, s.RefreshTokenExpiresAt, s.AccessToken)
	oldAccess, err := pgx.CollectOneRow(rows, pgx.RowTo[string])

	switch {
	case err == nil:
		return oldAccess, nil
	case errors.Is(err, pgx.ErrNoRows):
		return "", apperrors.ErrRefreshTokenNotFound
	default:
		return "", fmt.Errorf("db error: %w", err)
	}
}

const clearSession = `-- name: ClearSession
UPDATE users
SET refresh_token_hash = '', refresh_token_expires_at = 'epoch'::timestamptz, session_token = ''
WHERE id = $1
RETURNING id
`

func (r *UserRepo) ClearSession(ctx context.Context, id uuid.UUID) error {
	rows, _ := r.DB.Query(ctx, clearSession, id)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])

	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrUserNotFound
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

func collectUser(rows pgx.Rows, notFound error) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, notFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.CreatedAt, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&u.HashedPassword, &u.Roles,
		&u.RefreshTokenHash, &u.RefreshTokenExpiresAt, &u.SessionToken,
	)
	return u, err
}
