package auth

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openbadger/openbadger/internal/service/auth"
	"github.com/openbadger/openbadger/internal/testutil"
	"github.com/openbadger/openbadger/tests/integration"
)

const (
	LogoutURL = "/api/auth/logout"
	MeURL     = "/api/users/me"
)

// Full sign-in, use, sign-out walkthrough: after logout neither the
// access token nor the refresh token may work again.
func Test_AuthLogout(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	integration.RunTx(pg.Pool, t, func(srvURL string, s integration.Services) {
		_, pair, err := s.AuthService.Register(t.Context(), auth.RegisterParams{
			Username: "nk",
			Email:    "nk@example.com",
			Password: "StrongEnoughPassword",
		})
		require.NoError(t, err)

		// Token works before logout
		resp, body := integration.Do(t, http.MethodGet, srvURL+MeURL, pair.Access.Value, "")
		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

		resp, body = integration.Do(t, http.MethodPost, srvURL+LogoutURL, pair.Access.Value, "")
		require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"message": "Signed out"
			}`, body)

		// The access token is revoked even though it is not yet expired
		resp, body = integration.Do(t, http.MethodGet, srvURL+MeURL, pair.Access.Value, "")
		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
		require.JSONEq(t, `
			{
				"error": "service_error",
				"message": "Unauthorized"
			}`, body)

		// The refresh session is cleared too
		data := fmt.Sprintf(`{"refresh_token": %q}`, pair.Refresh.Value)
		resp, body = integration.Do(t, http.MethodPost, srvURL+RefreshURL, "", data)
		require.Equalf(t, http.StatusForbidden, resp.StatusCode, "not expected code. Body: %s", body)

		// Signing out twice with the same token is a 401, the token is dead
		resp, body = integration.Do(t, http.MethodPost, srvURL+LogoutURL, pair.Access.Value, "")
		require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
	})
}
