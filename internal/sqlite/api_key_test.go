package sqlite

import (
	"context"
	"testing"

	"github.com/rpggio/activitylog/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyRepository_CreateResolve(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewAPIKeyRepository(db)

	key := &repository.APIKey{
		KeyHash:     HashToken("secret"),
		ProfileID:   "p1",
		ExtensionID: "ext1",
		Description: "dev key",
	}
	require.NoError(t, repo.Create(ctx, key))
	require.ErrorIs(t, repo.Create(ctx, key), repository.ErrConflict)

	caller, err := repo.Resolve(ctx, HashToken("secret"))
	require.NoError(t, err)
	require.Equal(t, repository.Caller{ProfileID: "p1", ExtensionID: "ext1"}, caller)

	_, err = repo.Resolve(ctx, HashToken("wrong"))
	require.ErrorIs(t, err, repository.ErrNotFound)

	keys, err := repo.ListByProfile(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, "dev key", keys[0].Description)
	require.NotNil(t, keys[0].LastUsed)
}

func TestAPIKeyRepository_Validation(t *testing.T) {
	db := NewTestDB(t)
	repo := NewAPIKeyRepository(db)

	err := repo.Create(context.Background(), &repository.APIKey{KeyHash: HashToken("x"), ProfileID: "p1"})
	require.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestAPIKeyRepository_Delete(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewAPIKeyRepository(db)

	require.NoError(t, repo.Create(ctx, &repository.APIKey{KeyHash: HashToken("k"), ProfileID: "p1", ExtensionID: "e"}))
	require.NoError(t, repo.Delete(ctx, HashToken("k")))
	require.ErrorIs(t, repo.Delete(ctx, HashToken("k")), repository.ErrNotFound)
}
