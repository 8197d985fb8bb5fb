package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openbadger/openbadger/internal/models"
)

// Session is the refresh state written to a user row when a token pair
// is issued. AccessToken is kept so rotation and logout know which
// access token to blacklist.
type Session struct {
	RefreshTokenHash      string
	RefreshTokenExpiresAt time.Time
	AccessToken           string
}

type CreateUserParams struct {
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Roles        []string
}

// User repository interface
type UserRepo interface {
	// Create user
	// If username or email is taken must return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// Find the user holding the refresh token hash
	// If no user holds it must return apperrors.ErrRefreshTokenNotFound;
	// if held but expired at validAt, apperrors.ErrRefreshTokenExpired
	GetUserByRefreshHash(ctx context.Context, refreshHash string, validAt time.Time) (models.User, error)

	ListUsers(ctx context.Context) ([]models.User, error)
	ListUsersByRole(ctx context.Context, role string) ([]models.User, error)

	// Replace the user's roles
	SetRoles(ctx context.Context, id uuid.UUID, roles []string) (models.User, error)

	// Overwrite the user's refresh session unconditionally
	SetSession(ctx context.Context, id uuid.UUID, s Session) error

	// Install a new session only if the stored refresh hash still equals
	// oldRefreshHash and return the previously stored access token.
	// If the condition fails (rotation already won by a concurrent call,
	// or session cleared) must return apperrors.ErrRefreshTokenNotFound
	RotateSession(ctx context.Context, id uuid.UUID, oldRefreshHash string, s Session) (oldAccessToken string, err error)

	// Reset the session to the sentinel: empty hash, epoch expiry
	ClearSession(ctx context.Context, id uuid.UUID) error
}

type CreateDomainParams struct {
	Name        string
	Description string
}

// Domain repository interface
type DomainRepo interface {
	// If name is taken must return apperrors.ErrDomainAlreadyExists
	CreateDomain(ctx context.Context, arg CreateDomainParams) (models.Domain, error)

	// If domain not found must return apperrors.ErrDomainNotFound
	GetDomainByID(ctx context.Context, id uuid.UUID) (models.Domain, error)

	ListDomains(ctx context.Context) ([]models.Domain, error)
}

// Blacklist of revoked access tokens keyed by the raw token string
type BlacklistRepo interface {
	// Record the token as revoked, duplicate adds are not an error
	Add(ctx context.Context, token string, expiresAt time.Time) error

	// Exact string lookup
	Exists(ctx context.Context, token string) (bool, error)

	// Delete entries expired at the given time, returns rows removed
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Storage bundles the repositories over one connection or transaction
type Storage interface {
	User() UserRepo
	Domain() DomainRepo
	Blacklist() BlacklistRepo

	// InTx runs fn with a transaction scoped Storage. Used for multi-step
	// operations that must be atomic, e.g. refresh rotation.
	InTx(ctx context.Context, fn func(Storage) error) error
}
