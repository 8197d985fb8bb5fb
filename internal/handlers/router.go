package handlers

import (
	"context"
	"net/http"

	"github.com/openbadger/openbadger/internal/handlers/middleware"
	"github.com/openbadger/openbadger/internal/logger"
	"github.com/openbadger/openbadger/internal/models"
	"github.com/openbadger/openbadger/internal/service/auth"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// authenticator is the auth service as the router needs it: route
// handlers plus the middleware authentication entry point
type authenticator interface {
	authService
	Authenticate(ctx context.Context, r *http.Request, c auth.Constraint) (models.AuthContext, error)
}

func NewRouter(
	authHandler *AuthHandler,
	userHandler *UserHandler,
	domainHandler *DomainHandler,
	authService authenticator,
	l logger.Logger,
) http.Handler {
	withUser := middleware.Auth(authService, auth.AnyUser())
	withAdmin := middleware.Auth(authService, auth.RequireRole(models.RoleAdmin))
	withTeacher := middleware.Auth(authService, auth.RequireRole(models.RoleTeacher))
	withDomain := middleware.Auth(authService, auth.AnyDomain())

	api := http.NewServeMux()

	api.HandleFunc("POST /auth/register", authHandler.Register)
	api.HandleFunc("POST /auth/login", authHandler.Login)
	api.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	api.Handle("POST /auth/logout", withUser(http.HandlerFunc(authHandler.Logout)))

	api.Handle("GET /users/me", withUser(http.HandlerFunc(userHandler.Me)))

	api.Handle("GET /admin/users", withAdmin(http.HandlerFunc(userHandler.List)))
	api.Handle("PUT /admin/users/{id}/roles", withAdmin(http.HandlerFunc(userHandler.SetRoles)))
	api.Handle("POST /admin/domains", withAdmin(http.HandlerFunc(domainHandler.Create)))
	api.Handle("GET /admin/domains", withAdmin(http.HandlerFunc(domainHandler.List)))
	api.Handle("POST /admin/domains/{id}/token", withAdmin(http.HandlerFunc(domainHandler.IssueToken)))

	api.Handle("GET /teacher/earners", withTeacher(http.HandlerFunc(userHandler.ListEarners)))

	api.Handle("GET /domain/whoami", withDomain(http.HandlerFunc(domainHandler.WhoAmI)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	return chain(root,
		middleware.LoggerMiddleware(l),
	)
}
