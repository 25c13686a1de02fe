package repository_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/endurain/backend/internal/entity"
	"github.com/endurain/backend/internal/repository"
	"github.com/endurain/backend/pkg/api/polar"
	"github.com/endurain/backend/pkg/crypto"
	"github.com/endurain/backend/pkg/errorx"
	"github.com/endurain/backend/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func newPolarAccountRepo(t *testing.T) repository.PolarAccountRepository {
	cipher, err := crypto.NewAEADCipher("test-secret")
	require.NoError(t, err)
	return repository.NewPolarAccountRepository(cipher)
}

func TestPolarAccountRepository_GetOrCreate(t *testing.T) {
	ctx := testutil.MockContext()
	repo := newPolarAccountRepo(t)
	user := testutil.SampleUser(ctx)

	account, err := repo.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, user.ID, account.UserID)
	require.False(t, account.IsLinked)

	again, err := repo.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, account.ID, again.ID)
}

func TestPolarAccountRepository_SetState(t *testing.T) {
	ctx := testutil.MockContext()
	repo := newPolarAccountRepo(t)
	user := testutil.SampleUser(ctx)

	require.NoError(t, repo.SetState(ctx, user.ID, "state-abc"))

	account, err := repo.GetByState(ctx, "state-abc")
	require.NoError(t, err)
	require.NotNil(t, account)
	require.Equal(t, user.ID, account.UserID)
	require.True(t, account.StateIssuedAt.Valid)

	// The literal string "null" clears the state instead of storing it.
	require.NoError(t, repo.SetState(ctx, user.ID, "null"))

	account, err = repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, account.State.Valid)
	require.False(t, account.StateIssuedAt.Valid)

	missing, err := repo.GetByState(ctx, "null")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestPolarAccountRepository_SetClientCredentials(t *testing.T) {
	ctx := testutil.MockContext()
	repo := newPolarAccountRepo(t)
	user := testutil.SampleUser(ctx)

	err := repo.SetClientCredentials(ctx, user.ID, "", "secret")
	require.Equal(t, errorx.New(errorx.BadRequest, "Client ID and secret are required"), err)

	require.NoError(t, repo.SetClientCredentials(ctx, user.ID, "client-id", "client-secret"))

	account, err := repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, account.ClientID.Valid)
	require.NotEqual(t, "client-id", account.ClientID.String)
	require.NotEqual(t, "client-secret", account.ClientSecret.String)

	clientID, clientSecret, err := repo.DecryptClientCredentials(account)
	require.NoError(t, err)
	require.Equal(t, "client-id", clientID)
	require.Equal(t, "client-secret", clientSecret)
}

func TestPolarAccountRepository_StoreTokenPayload(t *testing.T) {
	ctx := testutil.MockContext()
	repo := newPolarAccountRepo(t)
	user := testutil.SampleUser(ctx)

	require.NoError(t, repo.SetState(ctx, user.ID, "state-abc"))
	account, err := repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)

	payload := polar.TokenPayload{
		AccessToken: "the-token",
		TokenType:   "bearer",
		ExpiresIn:   3600,
		XUserID:     42,
	}
	require.NoError(t, repo.StoreTokenPayload(ctx, account, payload, "accesslink.read_all"))

	account, err = repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, account.IsLinked)
	require.False(t, account.State.Valid)
	require.Equal(t, "accesslink.read_all", account.TokenScope.String)
	require.EqualValues(t, 42, account.XUserID.Int64)
	require.True(t, account.TokenIssuedAt.Valid)
	require.True(t, account.TokenExpiresAt.Valid)
	require.WithinDuration(t,
		account.TokenIssuedAt.Time.Add(time.Hour), account.TokenExpiresAt.Time, time.Second)

	// The token is never persisted in clear text.
	require.NotEqual(t, "the-token", account.AccessToken.String)
	token, err := repo.DecryptAccessToken(account)
	require.NoError(t, err)
	require.Equal(t, "the-token", token)
}

func TestPolarAccountRepository_StoreTokenPayloadWithoutExpiry(t *testing.T) {
	ctx := testutil.MockContext()
	repo := newPolarAccountRepo(t)
	user := testutil.SampleUser(ctx)

	account, err := repo.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)

	payload := polar.TokenPayload{AccessToken: "the-token"}
	require.NoError(t, repo.StoreTokenPayload(ctx, account, payload, "accesslink.read_all"))

	account, err = repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, account.TokenExpiresAt.Valid)
}

func TestPolarAccountRepository_StoreRegistrationDetails(t *testing.T) {
	ctx := testutil.MockContext()
	repo := newPolarAccountRepo(t)
	user := testutil.SampleUser(ctx)

	account, err := repo.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)

	// The trailing Z is UTC, not a format error.
	require.NoError(t, repo.StoreRegistrationDetails(ctx, account, polar.Registration{
		PolarUserID:      7001,
		MemberID:         "endurain-" + user.ID,
		RegistrationDate: "2026-08-01T10:30:00Z",
	}))

	account, err = repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, account.RegistrationDate.Valid)
	require.Equal(t,
		time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC),
		account.RegistrationDate.Time.UTC())

	err = repo.StoreRegistrationDetails(ctx, account, polar.Registration{
		PolarUserID:      7001,
		RegistrationDate: "definitely-not-a-date",
	})
	require.Error(t, err)
}

func TestPolarAccountRepository_Unlink(t *testing.T) {
	ctx := testutil.MockContext()
	repo := newPolarAccountRepo(t)
	user := testutil.SampleUser(ctx)

	require.NoError(t, repo.SetClientCredentials(ctx, user.ID, "client-id", "client-secret"))
	account, err := repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)

	payload := polar.TokenPayload{AccessToken: "the-token", ExpiresIn: 3600}
	require.NoError(t, repo.StoreTokenPayload(ctx, account, payload, "accesslink.read_all"))
	require.NoError(t, repo.StoreRegistrationDetails(ctx, account, polar.Registration{
		PolarUserID:      7001,
		MemberID:         "endurain-" + user.ID,
		RegistrationDate: "2026-08-01T00:00:00Z",
	}))

	require.NoError(t, repo.Unlink(ctx, user.ID))

	account, err = repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, account.IsLinked)
	require.False(t, account.AccessToken.Valid)
	require.False(t, account.PolarUserID.Valid)
	require.False(t, account.MemberID.Valid)
	require.False(t, account.RegistrationDate.Valid)
	require.False(t, account.State.Valid)

	// Credentials survive an unlink so the user can relink directly.
	clientID, clientSecret, err := repo.DecryptClientCredentials(account)
	require.NoError(t, err)
	require.Equal(t, "client-id", clientID)
	require.Equal(t, "client-secret", clientSecret)
}

func TestPolarAccountRepository_GetByPolarUserID(t *testing.T) {
	ctx := testutil.MockContext()
	repo := newPolarAccountRepo(t)
	user := testutil.SampleUser(ctx)

	missing, err := repo.GetByPolarUserID(ctx, 7001)
	require.NoError(t, err)
	require.Nil(t, missing)

	account, err := repo.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, repo.StoreRegistrationDetails(ctx, account, polar.Registration{
		PolarUserID: 7001,
		MemberID:    "endurain-" + user.ID,
	}))

	found, err := repo.GetByPolarUserID(ctx, 7001)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, user.ID, found.UserID)
}

func TestPolarAccountRepository_DecryptAccessTokenMissing(t *testing.T) {
	ctx := testutil.MockContext()
	repo := newPolarAccountRepo(t)
	user := testutil.SampleUser(ctx)

	account, err := repo.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)

	_, err = repo.DecryptAccessToken(account)
	require.Equal(t, errorx.New(errorx.FailedDependency, "Polar access token not found"), err)
}

func TestActivityRepository_PolarQueries(t *testing.T) {
	ctx := testutil.MockContext()
	activityRepo := repository.NewActivityRepository()
	user := testutil.SampleUser(ctx)

	polarActivity := &entity.Activity{
		Base:            entity.Base{ID: "activity-1"},
		UserID:          user.ID,
		Name:            "Polar exercise ex-1",
		PolarExerciseID: sql.NullString{Valid: true, String: "ex-1"},
	}
	manualActivity := &entity.Activity{
		Base:   entity.Base{ID: "activity-2"},
		UserID: user.ID,
		Name:   "Morning run",
	}
	require.NoError(t, activityRepo.Create(ctx, polarActivity))
	require.NoError(t, activityRepo.Create(ctx, manualActivity))

	found, err := activityRepo.GetByPolarExerciseID(ctx, user.ID, "ex-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, "activity-1", found.ID)

	missing, err := activityRepo.GetByPolarExerciseID(ctx, user.ID, "ex-2")
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, activityRepo.DeleteAllPolarByUserID(ctx, user.ID))

	deleted, err := activityRepo.GetByPolarExerciseID(ctx, user.ID, "ex-1")
	require.NoError(t, err)
	require.Nil(t, deleted)

	kept, err := activityRepo.GetByID(ctx, "activity-2")
	require.NoError(t, err)
	require.Equal(t, "Morning run", kept.Name)
}
