package testutil

import (
	"context"

	"github.com/endurain/backend/internal/entity"
	"github.com/endurain/backend/internal/repository"
	"github.com/google/uuid"
)

// SampleUser creates a random user in the database of ctx and returns it.
func SampleUser(ctx context.Context) entity.User {
	user := entity.User{
		Base: entity.Base{ID: uuid.NewString()},
		Name: uuid.NewString(),
	}

	if err := repository.NewUserRepository().Create(ctx, &user); err != nil {
		panic(err)
	}

	return user
}

// SamplePolarAccount creates a user whose polar account already carries
// client credentials.
func SamplePolarAccount(
	ctx context.Context, repo repository.PolarAccountRepository,
) entity.PolarAccount {
	user := SampleUser(ctx)
	if err := repo.SetClientCredentials(ctx, user.ID, "client-id", "client-secret"); err != nil {
		panic(err)
	}

	account, err := repo.GetByUserID(ctx, user.ID)
	if err != nil {
		panic(err)
	}

	return *account
}
