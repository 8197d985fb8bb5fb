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
)

type userService interface {
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListUsersByRole(ctx context.Context, role string) ([]models.User, error)
	SetRoles(ctx context.Context, id uuid.UUID, roles []string) (models.User, error)
}

type UserHandler struct {
	userService userService
	logger      logger.Logger
}

func NewUser(us userService, l logger.Logger) *UserHandler {
	return &UserHandler{userService: us, logger: l}
}

// userResponse is the sanitized projection, no password hash and no
// refresh session state ever leaves the service
type userResponse struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Initials  string    `json:"initials"`
	Roles     []string  `json:"roles"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		CreatedAt: u.CreatedAt,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Initials:  u.Initials(),
		Roles:     u.Roles,
	}
}

func toUserResponses(users []models.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := authctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.userService.GetUser(r.Context(), authCtx.ID)
	if err != nil {
		h.logger.Error("failed to load own profile", "error", err, "user_id", authCtx.ID)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, toUserResponse(user))
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, toUserResponses(users))
}

// ListEarners backs the teacher scoped roster view
func (h *UserHandler) ListEarners(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsersByRole(r.Context(), models.RoleEarner)
	if err != nil {
		h.logger.Error("failed to list earners", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, toUserResponses(users))
}

func (h *UserHandler) SetRoles(w http.ResponseWriter, r *http.Request) {
	type SetRolesRequest struct {
		Roles []string `json:"roles" validate:"required,min=1,dive,oneof=earner issuer admin teacher"`
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	data, err := render.BindAndValidate[SetRolesRequest](w, r)
	if err != nil {
		return
	}

	user, err := h.userService.SetRoles(r.Context(), id, data.Roles)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			h.logger.Error("failed to set roles", "error", err, "user_id", id)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, toUserResponse(user))
}
