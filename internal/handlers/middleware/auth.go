package middleware

import (
	"context"
	"net/http"

	"github.com/openbadger/openbadger/internal/handlers/authctx"
	"github.com/openbadger/openbadger/internal/handlers/render"
	"github.com/openbadger/openbadger/internal/models"
	"github.com/openbadger/openbadger/internal/service/auth"
)

type authService interface {
	Authenticate(ctx context.Context, r *http.Request, c auth.Constraint) (models.AuthContext, error)
}

// Auth builds middleware enforcing the given constraint. One pipeline
// serves every variant: the constraint is the only difference between
// user, admin, teacher and domain protected routes.
//
// Every failure mode, missing header, forged or expired token,
// blacklisted token, unknown principal, failed constraint, or an
// unexpected storage error, answers with the same 401 body: the
// response never tells why authorization failed.
func Auth(as authService, c auth.Constraint) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, err := as.Authenticate(r.Context(), r, c)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := authctx.New(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
