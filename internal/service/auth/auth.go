package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openbadger/openbadger/internal/apperrors"
	"github.com/openbadger/openbadger/internal/models"
	"github.com/openbadger/openbadger/internal/repository"
)

// Constraint is the per-variant check the authorization middleware runs
// over the loaded principal. All variants share the same pipeline:
// header, signature, blacklist, principal load, constraint.
type Constraint struct {
	kind models.PrincipalKind
	role string
}

// AnyUser authorizes any existing user
func AnyUser() Constraint {
	return Constraint{kind: models.KindUser}
}

// RequireRole authorizes users holding the role
func RequireRole(role string) Constraint {
	return Constraint{kind: models.KindUser, role: role}
}

// AnyDomain authorizes machine callers whose token subject is a
// registered domain id
func AnyDomain() Constraint {
	return Constraint{kind: models.KindDomain}
}

type TokenManager interface {
	GeneratePair(ctx context.Context, user models.User) (models.TokenPair, error)
	RotatePair(ctx context.Context, user models.User, oldRefreshHash string) (models.TokenPair, error)
	GenerateDomainToken(ctx context.Context, domain models.Domain) (models.IssuedToken, error)
	ParseAccess(ctx context.Context, access string) (uuid.UUID, error)
	HashRefresh(raw string) string
	Invalidate(ctx context.Context, access string) error
	IsBlacklisted(ctx context.Context, access string) (bool, error)
}

type Config struct {
	// Hasher used during registration and login
	// BcryptHasher is used if not set
	Hasher PasswordHasher
}

type RegisterParams struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// AuthService owns credential verification, token pair lifecycle and
// per-request authorization
type AuthService struct {
	token   TokenManager
	hasher  PasswordHasher
	storage repository.Storage
}

func NewService(cfg Config, token TokenManager, storage repository.Storage) (*AuthService, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	if token == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}

	return &AuthService{
		token:   token,
		hasher:  hasher,
		storage: storage,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, arg RegisterParams) (models.User, models.TokenPair, error) {
	hash, err := s.hasher.Hash(arg.Password)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	user, err := s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Username:     arg.Username,
		Email:        arg.Email,
		FirstName:    arg.FirstName,
		LastName:     arg.LastName,
		PasswordHash: hash,
		Roles:        []string{models.RoleEarner},
	})
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	return user, pair, nil
}

// Login verifies credentials and issues a fresh pair. Wrong username
// and wrong password collapse into the same ErrInvalidCredentials so
// the response never tells which field was off.
func (s *AuthService) Login(ctx context.Context, username string, password string) (models.TokenPair, error) {
	user, err := s.storage.User().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return models.TokenPair{}, apperrors.ErrInvalidCredentials
		}
		return models.TokenPair{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	pair, err := s.token.GeneratePair(ctx, user)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	return pair, nil
}

// Refresh exchanges a valid refresh token for a new pair. The stored
// hash must match and must not be expired at lookup time. Rotation is
// single use: the second caller with the same token gets
// apperrors.ErrRefreshTokenNotFound.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	hash := s.token.HashRefresh(refresh)

	user, err := s.storage.User().GetUserByRefreshHash(ctx, hash, time.Now())
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.token.RotatePair(ctx, user, hash)
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Logout blacklists the presented access token and resets the user's
// refresh session to the sentinel state. Both writes must succeed.
func (s *AuthService) Logout(ctx context.Context, access string, userID uuid.UUID) error {
	if err := s.token.Invalidate(ctx, access); err != nil {
		return fmt.Errorf("error while revoking access token. Err: %w", err)
	}

	if err := s.storage.User().ClearSession(ctx, userID); err != nil {
		return fmt.Errorf("error while clearing refresh session. Err: %w", err)
	}

	return nil
}

// Authenticate runs the authorization pipeline for one request:
// extract bearer token, verify signature and expiry, check the
// blacklist by the raw token string, load the principal named by the
// subject, apply the constraint. Every failure reason is collapsed by
// the middleware into one uniform 401.
//
// Signature verification runs strictly before the blacklist lookup so
// a forged token never reaches the database.
func (s *AuthService) Authenticate(ctx context.Context, r *http.Request, c Constraint) (models.AuthContext, error) {
	access, err := BearerToken(r)
	if err != nil {
		return models.AuthContext{}, err
	}

	subjectID, err := s.token.ParseAccess(ctx, access)
	if err != nil {
		return models.AuthContext{}, err
	}

	blacklisted, err := s.token.IsBlacklisted(ctx, access)
	if err != nil {
		return models.AuthContext{}, err
	}
	if blacklisted {
		return models.AuthContext{}, apperrors.ErrTokenBlacklisted
	}

	if c.kind == models.KindDomain {
		domain, err := s.storage.Domain().GetDomainByID(ctx, subjectID)
		if err != nil {
			return models.AuthContext{}, err
		}

		return models.AuthContext{
			ID:       domain.ID,
			Kind:     models.KindDomain,
			Username: domain.Name,
		}, nil
	}

	user, err := s.storage.User().GetUserByID(ctx, subjectID)
	if err != nil {
		return models.AuthContext{}, err
	}

	if c.role != "" && !user.HasRole(c.role) {
		return models.AuthContext{}, apperrors.ErrUnauthorized
	}

	return models.AuthContext{
		ID:       user.ID,
		Kind:     models.KindUser,
		Username: user.Username,
		Initials: user.Initials(),
		Roles:    user.Roles,
	}, nil
}

// BearerToken extracts the credential from the Authorization header:
// split on the first space, the second part is the candidate token
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperrors.ErrUnauthorized
	}

	_, token, found := strings.Cut(header, " ")
	if !found || token == "" {
		return "", apperrors.ErrUnauthorized
	}

	return token, nil
}
