package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/openbadger/openbadger/internal/models"
	"github.com/openbadger/openbadger/internal/repository"
)

// UserService serves profile and role management over the user store
type UserService struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *UserService {
	return &UserService{storage: storage}
}

func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.storage.User().ListUsers(ctx)
}

func (s *UserService) ListUsersByRole(ctx context.Context, role string) ([]models.User, error) {
	return s.storage.User().ListUsersByRole(ctx, role)
}

// SetRoles replaces the user's role set. The earner role is always
// kept, every registered identity stays an earner.
func (s *UserService) SetRoles(ctx context.Context, id uuid.UUID, roles []string) (models.User, error) {
	hasEarner := false
	for _, r := range roles {
		if r == models.RoleEarner {
			hasEarner = true
			break
		}
	}
	if !hasEarner {
		roles = append([]string{models.RoleEarner}, roles...)
	}

	user, err := s.storage.User().SetRoles(ctx, id, roles)
	if err != nil {
		return user, fmt.Errorf("can't update roles. Err: %w", err)
	}

	return user, nil
}
