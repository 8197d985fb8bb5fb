package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/openbadger/openbadger/internal/models"
	"github.com/openbadger/openbadger/internal/repository"
)

type TokenIssuer interface {
	GenerateDomainToken(ctx context.Context, domain models.Domain) (models.IssuedToken, error)
}

// DomainService manages machine caller principals and mints their
// access tokens
type DomainService struct {
	token   TokenIssuer
	storage repository.Storage
}

func NewService(token TokenIssuer, storage repository.Storage) *DomainService {
	return &DomainService{token: token, storage: storage}
}

func (s *DomainService) CreateDomain(ctx context.Context, arg repository.CreateDomainParams) (models.Domain, error) {
	return s.storage.Domain().CreateDomain(ctx, arg)
}

func (s *DomainService) GetDomain(ctx context.Context, id uuid.UUID) (models.Domain, error) {
	return s.storage.Domain().GetDomainByID(ctx, id)
}

func (s *DomainService) ListDomains(ctx context.Context) ([]models.Domain, error) {
	return s.storage.Domain().ListDomains(ctx)
}

func (s *DomainService) IssueToken(ctx context.Context, id uuid.UUID) (models.IssuedToken, error) {
	domain, err := s.storage.Domain().GetDomainByID(ctx, id)
	if err != nil {
		return models.IssuedToken{}, err
	}

	token, err := s.token.GenerateDomainToken(ctx, domain)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("token could not be generated. Err: %w", err)
	}

	return token, nil
}
