package polar

import (
	"context"

	"github.com/endurain/backend/pkg/api"
)

type IEndpoint interface {
	ExchangeCodeForToken(ctx context.Context, clientID, clientSecret, code, redirectURI string) (TokenPayload, error)
	RegisterUser(ctx context.Context, accessToken, memberID string) (Registration, error)
	DeregisterUser(ctx context.Context, accessToken string, polarUserID int64) error
	FetchMetadata(ctx context.Context, accessToken, url string) (api.JSON, error)
	DownloadExercise(ctx context.Context, accessToken, exerciseID string) ([]byte, error)
	VerifyWebhookSignature(ctx context.Context, signature string, payload []byte) bool
}
