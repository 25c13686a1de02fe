package testutil

import (
	"context"

	"github.com/endurain/backend/pkg/api"
	"github.com/endurain/backend/pkg/api/polar"
	"github.com/endurain/backend/pkg/errorx"
)

type MockPolarEndpoint struct {
	ExchangeCodeForTokenFunc   func(ctx context.Context, clientID, clientSecret, code, redirectURI string) (polar.TokenPayload, error)
	RegisterUserFunc           func(ctx context.Context, accessToken, memberID string) (polar.Registration, error)
	DeregisterUserFunc         func(ctx context.Context, accessToken string, polarUserID int64) error
	FetchMetadataFunc          func(ctx context.Context, accessToken, url string) (api.JSON, error)
	DownloadExerciseFunc       func(ctx context.Context, accessToken, exerciseID string) ([]byte, error)
	VerifyWebhookSignatureFunc func(ctx context.Context, signature string, payload []byte) bool
}

func (m *MockPolarEndpoint) ExchangeCodeForToken(
	ctx context.Context, clientID, clientSecret, code, redirectURI string,
) (polar.TokenPayload, error) {
	if m.ExchangeCodeForTokenFunc != nil {
		return m.ExchangeCodeForTokenFunc(ctx, clientID, clientSecret, code, redirectURI)
	}

	return polar.TokenPayload{}, errorx.New(errorx.NotImplemented, "Not implemented")
}

func (m *MockPolarEndpoint) RegisterUser(
	ctx context.Context, accessToken, memberID string,
) (polar.Registration, error) {
	if m.RegisterUserFunc != nil {
		return m.RegisterUserFunc(ctx, accessToken, memberID)
	}

	return polar.Registration{}, errorx.New(errorx.NotImplemented, "Not implemented")
}

func (m *MockPolarEndpoint) DeregisterUser(
	ctx context.Context, accessToken string, polarUserID int64,
) error {
	if m.DeregisterUserFunc != nil {
		return m.DeregisterUserFunc(ctx, accessToken, polarUserID)
	}

	return nil
}

func (m *MockPolarEndpoint) FetchMetadata(
	ctx context.Context, accessToken, url string,
) (api.JSON, error) {
	if m.FetchMetadataFunc != nil {
		return m.FetchMetadataFunc(ctx, accessToken, url)
	}

	return nil, errorx.New(errorx.NotImplemented, "Not implemented")
}

func (m *MockPolarEndpoint) DownloadExercise(
	ctx context.Context, accessToken, exerciseID string,
) ([]byte, error) {
	if m.DownloadExerciseFunc != nil {
		return m.DownloadExerciseFunc(ctx, accessToken, exerciseID)
	}

	return nil, errorx.New(errorx.NotImplemented, "Not implemented")
}

func (m *MockPolarEndpoint) VerifyWebhookSignature(
	ctx context.Context, signature string, payload []byte,
) bool {
	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(ctx, signature, payload)
	}

	return true
}
