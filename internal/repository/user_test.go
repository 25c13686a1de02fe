package repository_test

import (
	"testing"

	"github.com/endurain/backend/internal/entity"
	"github.com/endurain/backend/internal/repository"
	"github.com/endurain/backend/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	ctx := testutil.MockContext()
	userRepo := repository.NewUserRepository()

	require.NoError(t, userRepo.Create(ctx, &entity.User{
		Base: entity.Base{ID: "user-1"},
		Name: "tester",
	}))

	byID, err := userRepo.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, byID)
	require.Equal(t, "tester", byID.Name)

	byName, err := userRepo.GetByName(ctx, "tester")
	require.NoError(t, err)
	require.NotNil(t, byName)
	require.Equal(t, "user-1", byName.ID)

	missing, err := userRepo.GetByID(ctx, "no-such-user")
	require.NoError(t, err)
	require.Nil(t, missing)

	missing, err = userRepo.GetByName(ctx, "no-such-name")
	require.NoError(t, err)
	require.Nil(t, missing)
}
