package integration

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/openbadger/openbadger/internal/handlers"
	"github.com/openbadger/openbadger/internal/logger"
	"github.com/openbadger/openbadger/internal/repository"
	"github.com/openbadger/openbadger/internal/repository/postgres"
	"github.com/openbadger/openbadger/internal/service/auth"
	"github.com/openbadger/openbadger/internal/service/auth/tokenmanager"
	"github.com/openbadger/openbadger/internal/service/domain"
	"github.com/openbadger/openbadger/internal/service/user"
	"github.com/openbadger/openbadger/internal/testutil"
)

type Services struct {
	Storage       repository.Storage
	TokenManager  *tokenmanager.TokenManager
	AuthService   *auth.AuthService
	UserService   *user.UserService
	DomainService *domain.DomainService
}

// serve builds the full service stack over the given storage and runs
// an httptest server on top of it
func serve(t *testing.T, storage repository.Storage, fn func(srvURL string, s Services)) {
	t.Helper()

	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:        "test-secret-key",
		RefreshSecretKey: "test-refresh-secret",
	}, storage)
	require.NoError(t, err, "token manager should be created without errors")

	as, err := auth.NewService(auth.Config{}, tokenManager, storage)
	require.NoError(t, err, "auth service starting error")

	us := user.NewService(storage)
	ds := domain.NewService(tokenManager, storage)

	l := logger.NewNoOpLogger()
	router := handlers.NewRouter(
		handlers.NewAuth(as, l),
		handlers.NewUser(us, l),
		handlers.NewDomain(ds, l),
		as,
		l,
	)

	srv := httptest.NewServer(router)
	defer srv.Close()

	fn(srv.URL, Services{
		Storage:       storage,
		TokenManager:  tokenManager,
		AuthService:   as,
		UserService:   us,
		DomainService: ds,
	})
}

// RunTx wires the stack over one db transaction. The transaction is
// rolled back when the test ends, so the database stays clean between
// cases. Requests must stay sequential: they share one connection.
func RunTx(dbpool *pgxpool.Pool, t *testing.T, fn func(srvURL string, s Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		serve(t, postgres.NewStorage(tx), fn)
	})
}

// RunPool wires the stack over the shared pool. Written state stays in
// the database, use it for races the single transaction server cannot
// express: requests may run concurrently here.
func RunPool(dbpool *pgxpool.Pool, t *testing.T, fn func(srvURL string, s Services)) {
	serve(t, postgres.NewStorage(dbpool), fn)
}

// Do sends a request with an optional bearer token and json body and
// returns the response together with the fully read body
func Do(t *testing.T, method string, url string, token string, body string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(raw)
}
