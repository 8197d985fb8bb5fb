package authctx

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/openbadger/openbadger/internal/models"
)

func TestAuthCtx(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		want := models.AuthContext{
			ID:       uuid.New(),
			Kind:     models.KindUser,
			Username: "nk",
		}

		ctx := New(t.Context(), want)

		got, ok := FromContext(ctx)
		require.True(t, ok)
		require.Equal(t, want, got)
	})

	t.Run("empty context", func(t *testing.T) {
		_, ok := FromContext(t.Context())
		require.False(t, ok)
	})
}
