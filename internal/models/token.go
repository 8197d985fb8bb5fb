package models

import (
	"time"

	"github.com/google/uuid"
)

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by TokenManager, AuthService
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// BlacklistedToken is a revoked access token. Entries are written on
// logout and on every refresh rotation and reaped after ExpiresAt.
type BlacklistedToken struct {
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type PrincipalKind string

const (
	KindUser   PrincipalKind = "user"
	KindDomain PrincipalKind = "domain"
)

// AuthContext is the authenticated principal attached to a request by
// the auth middleware. For domains Username holds the domain name and
// Initials and Roles stay empty.
type AuthContext struct {
	ID       uuid.UUID
	Kind     PrincipalKind
	Username string
	Initials string
	Roles    []string
}
