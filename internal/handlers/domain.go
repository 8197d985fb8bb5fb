package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/openbadger/openbadger/internal/apperrors"
	"github.com/openbadger/openbadger/internal/handlers/authctx"
	"github.com/openbadger/openbadger/internal/handlers/render"
	"github.com/openbadger/openbadger/internal/logger"
	"github.com/openbadger/openbadger/internal/models"
	"github.com/openbadger/openbadger/internal/repository"
)

type domainService interface {
	CreateDomain(ctx context.Context, arg repository.CreateDomainParams) (models.Domain, error)
	GetDomain(ctx context.Context, id uuid.UUID) (models.Domain, error)
	ListDomains(ctx context.Context) ([]models.Domain, error)
	IssueToken(ctx context.Context, id uuid.UUID) (models.IssuedToken, error)
}

type DomainHandler struct {
	domainService domainService
	logger        logger.Logger
}

func NewDomain(ds domainService, l logger.Logger) *DomainHandler {
	return &DomainHandler{domainService: ds, logger: l}
}

type domainResponse struct {
	ID          uuid.UUID `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

func toDomainResponse(d models.Domain) domainResponse {
	return domainResponse{
		ID:          d.ID,
		CreatedAt:   d.CreatedAt,
		Name:        d.Name,
		Description: d.Description,
	}
}

func (h *DomainHandler) Create(w http.ResponseWriter, r *http.Request) {
	type CreateDomainRequest struct {
		Name        string `json:"name" validate:"required,min=2,max=100"`
		Description string `json:"description" validate:"max=500"`
	}

	data, err := render.BindAndValidate[CreateDomainRequest](w, r)
	if err != nil {
		return
	}

	domain, err := h.domainService.CreateDomain(r.Context(), repository.CreateDomainParams{
		Name:        data.Name,
		Description: data.Description,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrDomainAlreadyExists):
			render.ServiceError(w, "Domain already exists", http.StatusConflict)
		default:
			h.logger.Error("failed to create domain", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, toDomainResponse(domain))
}

func (h *DomainHandler) List(w http.ResponseWriter, r *http.Request) {
	domains, err := h.domainService.ListDomains(r.Context())
	if err != nil {
		h.logger.Error("failed to list domains", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]domainResponse, 0, len(domains))
	for _, d := range domains {
		out = append(out, toDomainResponse(d))
	}
	render.JSON(w, out)
}

// IssueToken mints an access token for the domain machine caller
func (h *DomainHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	type DomainTokenResponse struct {
		AccessToken string    `json:"access_token"`
		ExpiresAt   time.Time `json:"expires_at"`
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid domain id", http.StatusBadRequest)
		return
	}

	token, err := h.domainService.IssueToken(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrDomainNotFound):
			render.ServiceError(w, "Domain not found", http.StatusNotFound)
		default:
			h.logger.Error("failed to issue domain token", "error", err, "domain_id", id)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, DomainTokenResponse{AccessToken: token.Value, ExpiresAt: token.ExpiresAt})
}

// WhoAmI echoes the authenticated domain, the route exercises the
// domain scoped middleware
func (h *DomainHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	type WhoAmIResponse struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	}

	authCtx, ok := authctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	render.JSON(w, WhoAmIResponse{ID: authCtx.ID, Name: authCtx.Username})
}
