package models

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role names a capability tag carried by a user
const (
	RoleEarner  = "earner"
	RoleIssuer  = "issuer"
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	Email          string
	FirstName      string
	LastName       string
	HashedPassword string
	Roles          []string

	// Refresh session state. At most one live refresh token per user:
	// issuing a new pair overwrites all three fields.
	RefreshTokenHash      string
	RefreshTokenExpiresAt *time.Time
	SessionToken          string
}

func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// Initials returns the uppercase first letters of first and last name
func (u *User) Initials() string {
	var b strings.Builder
	for _, name := range []string{u.FirstName, u.LastName} {
		for _, r := range name {
			b.WriteString(strings.ToUpper(string(r)))
			break
		}
	}
	return b.String()
}
