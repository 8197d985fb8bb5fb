package tokenmanager

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/openbadger/openbadger/internal/models"
	"github.com/openbadger/openbadger/internal/repository"
)

const (
	defaultAccessTokenTTL  = 10 * time.Minute
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 7 * 24 * time.Hour

	// Blacklist entries must outlive the access token TTL so a revoked
	// token can never come back while still structurally valid
	defaultBlacklistTTL = 24 * time.Hour
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	SubjectID uuid.UUID `json:"uid"`
}

// Token manager config with sensible defaults
type Config struct {
	// Secret key to sign access tokens
	// Required to be set
	SecretKey string

	// Secret key for the refresh token keyed hash
	// Must differ from SecretKey, required to be set
	RefreshSecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set the default is used
	Alg string

	// Access, refresh and blacklist retention lifetimes
	// If not set the defaults are used
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	BlacklistTTL time.Duration
}

type TokenManager struct {
	key        string
	refreshKey string

	alg jwt.SigningMethod

	accessTTL    time.Duration
	refreshTTL   time.Duration
	blacklistTTL time.Duration

	storage repository.Storage
}

func New(cfg Config, storage repository.Storage) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}
	if cfg.RefreshSecretKey == "" || cfg.RefreshSecretKey == cfg.SecretKey {
		return nil, errors.New("refresh secret key must be set and differ from the signing key")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)
	setDefaultDuration(&cfg.BlacklistTTL, defaultBlacklistTTL)

	if cfg.BlacklistTTL < cfg.AccessTTL {
		return nil, errors.New("blacklist retention must not be shorter than the access token TTL")
	}

	return &TokenManager{
		key:          cfg.SecretKey,
		refreshKey:   cfg.RefreshSecretKey,
		alg:          jwt.GetSigningMethod(cfg.Alg),
		accessTTL:    cfg.AccessTTL,
		refreshTTL:   cfg.RefreshTTL,
		blacklistTTL: cfg.BlacklistTTL,
		storage:      storage,
	}, nil
}

// GeneratePair mints an access and refresh token for the user and stores
// the session (refresh hash, expiry, access token) on the user row. The
// write is awaited before the pair is returned: the caller never sees a
// refresh token that is not durably associated with the user.
func (m *TokenManager) GeneratePair(ctx context.Context, user models.User) (models.TokenPair, error) {
	pair, session, err := m.mintPair(user)
	if err != nil {
		return pair, err
	}

	if err := m.storage.User().SetSession(ctx, user.ID, session); err != nil {
		return models.TokenPair{}, fmt.Errorf("error while saving refresh session. Err: %w", err)
	}

	return pair, nil
}

// RotatePair exchanges the refresh token whose stored hash is
// oldRefreshHash for a fresh pair. The swap is one conditional update:
// of two concurrent calls with the same token exactly one wins, the
// other gets apperrors.ErrRefreshTokenNotFound. The access token that
// was active for the old session is blacklisted in the same transaction.
func (m *TokenManager) RotatePair(ctx context.Context, user models.User, oldRefreshHash string) (models.TokenPair, error) {
	pair, session, err := m.mintPair(user)
	if err != nil {
		return pair, err
	}

	err = m.storage.InTx(ctx, func(s repository.Storage) error {
		oldAccess, err := s.User().RotateSession(ctx, user.ID, oldRefreshHash, session)
		if err != nil {
			return err
		}

		if oldAccess != "" {
			return s.Blacklist().Add(ctx, oldAccess, time.Now().Add(m.blacklistTTL))
		}
		return nil
	})
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// GenerateDomainToken mints an access token whose subject is the domain
// id. Domains get no refresh companion, nothing is persisted.
func (m *TokenManager) GenerateDomainToken(ctx context.Context, domain models.Domain) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(m.accessTTL)

	access, err := m.signAccess(domain.ID, now, expiresAt)
	if err != nil {
		return models.IssuedToken{}, err
	}

	return models.IssuedToken{Value: access, ExpiresAt: expiresAt}, nil
}

// Parse and validate access token
func (m *TokenManager) ParseAccess(ctx context.Context, access string) (subjectID uuid.UUID, err error) {
	claims := &AccessTokenClaims{}

	_, err = jwt.ParseWithClaims(
		access,
		claims,
		func(t *jwt.Token) (any, error) {
			return []byte(m.key), nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error while parsing or validating token. Err: %w", err)
	}

	return claims.SubjectID, nil
}

// HashRefresh derives the stored form of a raw refresh token. The hash
// is keyed with a secret distinct from the signing key so leaked rows
// are useless without the process config.
func (m *TokenManager) HashRefresh(raw string) string {
	mac := hmac.New(sha512.New, []byte(m.refreshKey))
	mac.Write([]byte(raw))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Invalidate records the access token as revoked
func (m *TokenManager) Invalidate(ctx context.Context, access string) error {
	return m.storage.Blacklist().Add(ctx, access, time.Now().Add(m.blacklistTTL))
}

func (m *TokenManager) IsBlacklisted(ctx context.Context, access string) (bool, error) {
	return m.storage.Blacklist().Exists(ctx, access)
}

func (m *TokenManager) mintPair(user models.User) (models.TokenPair, repository.Session, error) {
	now := time.Now().Truncate(time.Second)
	accessExpiresAt := now.Add(m.accessTTL)
	refreshExpiresAt := now.Add(m.refreshTTL)

	access, err := m.signAccess(user.ID, now, accessExpiresAt)
	if err != nil {
		return models.TokenPair{}, repository.Session{}, err
	}

	// Refresh token is an independent random credential, only its keyed
	// hash is stored
	b := make([]byte, 32)
	_, err = rand.Read(b)
	if err != nil {
		return models.TokenPair{}, repository.Session{}, fmt.Errorf("error while generating refresh token. Err: %w", err)
	}
	refresh := hex.EncodeToString(b)

	pair := models.TokenPair{
		Access:  models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh: models.IssuedToken{Value: refresh, ExpiresAt: refreshExpiresAt},
	}
	session := repository.Session{
		RefreshTokenHash:      m.HashRefresh(refresh),
		RefreshTokenExpiresAt: refreshExpiresAt,
		AccessToken:           access,
	}

	return pair, session, nil
}

func (m *TokenManager) signAccess(subjectID uuid.UUID, now time.Time, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(
		m.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			SubjectID: subjectID,
		},
	)

	access, err := token.SignedString([]byte(m.key))
	if err != nil {
		return "", fmt.Errorf("error while signing access token. Err: %w", err)
	}
	return access, nil
}
