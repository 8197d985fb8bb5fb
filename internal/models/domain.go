package models

import (
	"time"

	"github.com/google/uuid"
)

// Domain is a machine caller (badge-issuing service) that authenticates
// with a signed token whose subject is the domain id. Domains have no
// password and no refresh session, existence is the only check.
type Domain struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	Name        string
	Description string
}
