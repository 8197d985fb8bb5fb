package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbadger/openbadger/internal/apperrors"
	"github.com/openbadger/openbadger/internal/models"
	"github.com/openbadger/openbadger/internal/repository"
	"github.com/openbadger/openbadger/internal/testutil"
)

func createTestUser(t *testing.T, repo repository.UserRepo, username string) models.User {
	t.Helper()

	user, err := repo.CreateUser(t.Context(), repository.CreateUserParams{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: "hashed_password",
	})
	require.NoError(t, err, "user should be created without errors")
	return user
}

func Test_UserRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	withRepo := func(t *testing.T, fn func(repo repository.UserRepo)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			fn(&UserRepo{DB: tx})
		})
	}

	t.Run("CreateUser", func(t *testing.T) {
		t.Run("create ok", func(t *testing.T) {
			withRepo(t, func(repo repository.UserRepo) {
				user, err := repo.CreateUser(t.Context(), repository.CreateUserParams{
					Username:     "alice",
					Email:        "alice@example.com",
					FirstName:    "Alice",
					LastName:     "Liddell",
					PasswordHash: "hashed_password",
				})

				require.NoError(t, err)
				assert.NotEqual(t, uuid.Nil, user.ID, "id should be generated")
				assert.WithinDuration(t, time.Now(), user.CreatedAt, 5*time.Second)
				assert.Equal(t, "alice", user.Username)
				assert.Equal(t, "alice@example.com", user.Email)
				assert.Equal(t, []string{models.RoleEarner}, user.Roles, "new users get the earner role")
				assert.Empty(t, user.RefreshTokenHash, "no refresh session on creation")
				assert.Nil(t, user.RefreshTokenExpiresAt)
			})
		})

		t.Run("duplicate username", func(t *testing.T) {
			withRepo(t, func(repo repository.UserRepo) {
				createTestUser(t, repo, "alice")

				_, err := repo.CreateUser(t.Context(), repository.CreateUserParams{
					Username:     "alice",
					Email:        "other@example.com",
					PasswordHash: "hashed_password",
				})

				require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
			})
		})

		t.Run("duplicate email", func(t *testing.T) {
			withRepo(t, func(repo repository.UserRepo) {
				createTestUser(t, repo, "alice")

				_, err := repo.CreateUser(t.Context(), repository.CreateUserParams{
					Username:     "bob",
					Email:        "alice@example.com",
					PasswordHash: "hashed_password",
				})

				require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
			})
		})
	})

	t.Run("GetUser", func(t *testing.T) {
		t.Run("by id and username", func(t *testing.T) {
			withRepo(t, func(repo repository.UserRepo) {
				created := createTestUser(t, repo, "alice")

				byID, err := repo.GetUserByID(t.Context(), created.ID)
				require.NoError(t, err)
				assert.Equal(t, created.ID, byID.ID)

				byName, err := repo.GetUserByUsername(t.Context(), "alice")
				require.NoError(t, err)
				assert.Equal(t, created.ID, byName.ID)
			})
		})

		t.Run("not found", func(t *testing.T) {
			withRepo(t, func(repo repository.UserRepo) {
				_, err := repo.GetUserByID(t.Context(), uuid.New())
				require.ErrorIs(t, err, apperrors.ErrUserNotFound)

				_, err = repo.GetUserByUsername(t.Context(), "nobody")
				require.ErrorIs(t, err, apperrors.ErrUserNotFound)
			})
		})
	})

	t.Run("Sessions", func(t *testing.T) {
		session := func(hash string, expiresAt time.Time) repository.Session {
			return repository.Session{
				RefreshTokenHash:      hash,
				RefreshTokenExpiresAt: expiresAt,
				AccessToken:           "access-token-for-" + hash,
			}
		}

		t.Run("set and find by refresh hash", func(t *testing.T) {
			withRepo(t, func(repo repository.UserRepo) {
				created := createTestUser(t, repo, "alice")

				err := repo.SetSession(t.Context(), created.ID, session("refresh-hash", time.Now().Add(time.Hour)))
				require.NoError(t, err)

				user, err := repo.GetUserByRefreshHash(t.Context(), "refresh-hash", time.Now())
				require.NoError(t, err)
				assert.Equal(t, created.ID, user.ID)
				assert.Equal(t, "access-token-for-refresh-hash", user.SessionToken)
			})
		})

		t.Run("expired hash reports expiry", func(t *testing.T) {
			withRepo(t, func(repo repository.UserRepo) {
				created := createTestUser(t, repo, "alice")

				// Expired one second before lookup
				err := repo.SetSession(t.Context(), created.ID, session("refresh-hash", time.Now().Add(-time.Second)))
				require.NoError(t, err)

				_, err = repo.GetUserByRefreshHash(t.Context(), "refresh-hash", time.Now())
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenExpired, "held but expired must be told apart from never issued")
			})
		})

		t.Run("empty hash never matches", func(t *testing.T) {
			withRepo(t, func(repo repository.UserRepo) {
				created := createTestUser(t, repo, "alice")

				err := repo.ClearSession(t.Context(), created.ID)
				require.NoError(t, err)

				_, err = repo.GetUserByRefreshHash(t.Context(), "", time.Now())
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "the cleared sentinel must not be matchable")
			})
		})

		t.Run("rotate ok", func(t *testing.T) {
			withRepo(t, func(repo repository.UserRepo) {
				created := createTestUser(t, repo, "alice")

				err := repo.SetSession(t.Context(), created.ID, session("old-hash", time.Now().Add(time.Hour)))
				require.NoError(t, err)

				oldAccess, err := repo.RotateSession(t.Context(), created.ID, "old-hash", session("new-hash", time.Now().Add(time.Hour)))

				require.NoError(t, err)
				assert.Equal(t, "access-token-for-old-hash", oldAccess, "rotation returns the replaced access token")

				_, err = repo.GetUserByRefreshHash(t.Context(), "old-hash", time.Now())
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "old hash must be gone after rotation")

				user, err := repo.GetUserByRefreshHash(t.Context(), "new-hash", time.Now())
				require.NoError(t, err)
				assert.Equal(t, created.ID, user.ID)
			})
		})

		t.Run("rotate is single use", func(t *testing.T) {
			withRepo(t, func(repo repository.UserRepo) {
				created := createTestUser(t, repo, "alice")

				err := repo.SetSession(t.Context(), created.ID, session("old-hash", time.Now().Add(time.Hour)))
				require.NoError(t, err)

				_, err = repo.RotateSession(t.Context(), created.ID, "old-hash", session("new-hash", time.Now().Add(time.Hour)))
				require.NoError(t, err)

				// Second rotation with the stale hash loses
				_, err = repo.RotateSession(t.Context(), created.ID, "old-hash", session("evil-hash", time.Now().Add(time.Hour)))
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
			})
		})

		t.Run("clear resets to sentinel", func(t *testing.T) {
			withRepo(t, func(repo repository.UserRepo) {
				created := createTestUser(t, repo, "alice")

				err := repo.SetSession(t.Context(), created.ID, session("refresh-hash", time.Now().Add(time.Hour)))
				require.NoError(t, err)

				err = repo.ClearSession(t.Context(), created.ID)
				require.NoError(t, err)

				user, err := repo.GetUserByID(t.Context(), created.ID)
				require.NoError(t, err)
				assert.Empty(t, user.RefreshTokenHash)
				assert.Empty(t, user.SessionToken)
				require.NotNil(t, user.RefreshTokenExpiresAt)
				assert.True(t, user.RefreshTokenExpiresAt.Before(time.Now()), "sentinel expiry must already be in the past")
			})
		})
	})

	t.Run("Roles", func(t *testing.T) {
		t.Run("set roles", func(t *testing.T) {
			withRepo(t, func(repo repository.UserRepo) {
				created := createTestUser(t, repo, "alice")

				user, err := repo.SetRoles(t.Context(), created.ID, []string{models.RoleEarner, models.RoleAdmin})

				require.NoError(t, err)
				assert.ElementsMatch(t, []string{models.RoleEarner, models.RoleAdmin}, user.Roles)
			})
		})

		t.Run("list by role", func(t *testing.T) {
			withRepo(t, func(repo repository.UserRepo) {
				alice := createTestUser(t, repo, "alice")
				bob := createTestUser(t, repo, "bob")

				_, err := repo.SetRoles(t.Context(), bob.ID, []string{models.RoleEarner, models.RoleTeacher})
				require.NoError(t, err)

				earners, err := repo.ListUsersByRole(t.Context(), models.RoleEarner)
				require.NoError(t, err)
				require.Len(t, earners, 2)

				teachers, err := repo.ListUsersByRole(t.Context(), models.RoleTeacher)
				require.NoError(t, err)
				require.Len(t, teachers, 1)
				assert.Equal(t, bob.ID, teachers[0].ID)

				_ = alice
			})
		})
	})
}
