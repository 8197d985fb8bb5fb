package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openbadger/openbadger/internal/apperrors"
	"github.com/openbadger/openbadger/internal/models"
	"github.com/openbadger/openbadger/internal/repository"
)

type DomainRepo struct {
	DB DBTX
}

const createDomain = `-- name: CreateDomain
INSERT INTO domains (name, description)
VALUES ($1, $2)
RETURNING id, created_at, name, description
`

func (r *DomainRepo) CreateDomain(ctx context.Context, arg repository.CreateDomainParams) (models.Domain, error) {
	rows, _ := r.DB.Query(ctx, createDomain, arg.Name, arg.Description)
	domain, err := pgx.CollectOneRow(rows, rowToDomain)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
			return domain, apperrors.ErrDomainAlreadyExists
		}
		return domain, fmt.Errorf("db error: %w", err)
	}

	return domain, nil
}

const getDomainByID = `-- name: GetDomainByID
SELECT id, created_at, name, description
FROM domains
WHERE id = $1
`

func (r *DomainRepo) GetDomainByID(ctx context.Context, id uuid.UUID) (models.Domain, error) {
	rows, _ := r.DB.Query(ctx, getDomainByID, id)
	domain, err := pgx.CollectOneRow(rows, rowToDomain)

	switch {
	case err == nil:
		return domain, nil
	case errors.Is(err, pgx.ErrNoRows):
		return domain, apperrors.ErrDomainNotFound
	default:
		return domain, fmt.Errorf("db error: %w", err)
	}
}

const listDomains = `-- name: ListDomains
SELECT id, created_at, name, description
FROM domains
ORDER BY created_at, name
`

func (r *DomainRepo) ListDomains(ctx context.Context) ([]models.Domain, error) {
	rows, _ := r.DB.Query(ctx, listDomains)
	domains, err := pgx.CollectRows(rows, rowToDomain)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return domains, nil
}

func rowToDomain(row pgx.CollectableRow) (models.Domain, error) {
	var d models.Domain
	err := row.Scan(&d.ID, &d.CreatedAt, &d.Name, &d.Description)
	return d, err
}
