package polar

import (
	"context"
	"crypto/sha256"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/endurain/backend/config"
	"github.com/endurain/backend/pkg/api"
	"github.com/endurain/backend/pkg/crypto"
	"github.com/endurain/backend/pkg/errorx"
	"github.com/endurain/backend/pkg/xcontext"
)

const defaultTokenURL = "https://polarremote.com/v2/oauth2/token"
const defaultApiURL = "https://www.polaraccesslink.com/v3"

const apiTimeout = 30 * time.Second
const downloadTimeout = 60 * time.Second

type Endpoint struct {
	tokenURL      string
	apiURL        string
	webhookSecret string

	apiGenerator api.Generator

	// Logged once per process when webhook signature verification is
	// disabled because no secret is configured.
	missingSecretWarning sync.Once
}

func New(cfg config.PolarConfigs) *Endpoint {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}

	apiURL := cfg.ApiURL
	if apiURL == "" {
		apiURL = defaultApiURL
	}

	return &Endpoint{
		tokenURL:      tokenURL,
		apiURL:        apiURL,
		webhookSecret: cfg.WebhookSecret,
		apiGenerator:  api.NewGenerator(),
	}
}

func (e *Endpoint) ExchangeCodeForToken(
	ctx context.Context, clientID, clientSecret, code, redirectURI string,
) (TokenPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	resp, err := e.apiGenerator.New(e.tokenURL, "").
		Header("Accept", "application/json;charset=UTF-8").
		Body(api.Parameter{
			"grant_type":   "authorization_code",
			"code":         code,
			"redirect_uri": redirectURI,
		}).
		POST(ctx, api.BasicAuth(clientID, clientSecret))
	if err != nil {
		xcontext.Logger(ctx).Errorf("Error exchanging Polar authorization code: %v", err)
		return TokenPayload{}, errorx.New(errorx.Unavailable, "Unable to reach Polar token endpoint")
	}

	if resp.Code != http.StatusOK {
		xcontext.Logger(ctx).Errorf("Polar token endpoint returned %d: %s", resp.Code, resp.RawBody)
		return TokenPayload{}, errorx.New(errorx.FailedDependency, "Polar token exchange failed")
	}

	body, ok := resp.Body.(api.JSON)
	if !ok {
		return TokenPayload{}, errors.New("invalid response")
	}

	accessToken, err := body.GetString("access_token")
	if err != nil {
		return TokenPayload{}, err
	}

	payload := TokenPayload{AccessToken: accessToken}
	payload.TokenType, _ = body.GetString("token_type")
	payload.Scope, _ = body.GetString("scope")
	payload.ExpiresIn, _ = body.GetInt("expires_in")
	payload.XUserID, _ = body.GetInt64("x_user_id")

	return payload, nil
}

func (e *Endpoint) RegisterUser(
	ctx context.Context, accessToken, memberID string,
) (Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	resp, err := e.apiGenerator.New(e.apiURL, "/users").
		Header("Accept", "application/json").
		Body(api.JSON{"member-id": memberID}).
		POST(ctx, api.OAuth2("Bearer", accessToken))
	if err != nil {
		xcontext.Logger(ctx).Errorf("Error registering Polar user: %v", err)
		return Registration{}, errorx.New(errorx.Unavailable, "Unable to register Polar user")
	}

	if resp.Code == http.StatusConflict {
		return Registration{}, errorx.New(errorx.AlreadyExists,
			"Polar user already registered for these client credentials")
	}

	if resp.Code != http.StatusOK {
		xcontext.Logger(ctx).Errorf("Unexpected Polar register response %d: %s", resp.Code, resp.RawBody)
		return Registration{}, errorx.New(errorx.FailedDependency, "Polar registration failed")
	}

	body, ok := resp.Body.(api.JSON)
	if !ok {
		return Registration{}, errors.New("invalid response")
	}

	registration := Registration{}
	registration.PolarUserID, _ = body.GetInt64("polar-user-id")
	registration.MemberID, _ = body.GetString("member-id")
	registration.RegistrationDate, _ = body.GetString("registration-date")

	return registration, nil
}

// DeregisterUser removes the remote registration. A failed deregistration is
// logged but never returned as an error so that a local unlink cannot be
// blocked by the remote side.
func (e *Endpoint) DeregisterUser(
	ctx context.Context, accessToken string, polarUserID int64,
) error {
	if polarUserID == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	resp, err := e.apiGenerator.New(e.apiURL, "/users/%d", polarUserID).
		Header("Accept", "application/json").
		DELETE(ctx, api.OAuth2("Bearer", accessToken))
	if err != nil {
		xcontext.Logger(ctx).Errorf("Error deregistering Polar user %d: %v", polarUserID, err)
		return errorx.New(errorx.Unavailable, "Unable to contact Polar to unlink the user")
	}

	if resp.Code != http.StatusOK && resp.Code != http.StatusNoContent {
		xcontext.Logger(ctx).Warnf("Unexpected response while deleting Polar user %d: %d %s",
			polarUserID, resp.Code, resp.RawBody)
	}

	return nil
}

func (e *Endpoint) FetchMetadata(
	ctx context.Context, accessToken, url string,
) (api.JSON, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	resp, err := e.apiGenerator.New(url, "").
		Header("Accept", "application/json").
		GET(ctx, api.OAuth2("Bearer", accessToken))
	if err != nil {
		xcontext.Logger(ctx).Errorf("Error calling Polar API %s: %v", url, err)
		return nil, errorx.New(errorx.Unavailable, "Unable to reach Polar API")
	}

	if resp.Code < http.StatusOK || resp.Code >= http.StatusMultipleChoices {
		xcontext.Logger(ctx).Errorf("Polar API responded with %d for %s: %s", resp.Code, url, resp.RawBody)
		return nil, errorx.New(errorx.FailedDependency, "Polar API call failed")
	}

	body, ok := resp.Body.(api.JSON)
	if !ok {
		return nil, errors.New("invalid response")
	}

	return body, nil
}

func (e *Endpoint) DownloadExercise(
	ctx context.Context, accessToken, exerciseID string,
) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	resp, err := e.apiGenerator.New(e.apiURL, "/exercises/%s/gpx", exerciseID).
		Header("Accept", "application/gpx+xml").
		GET(ctx, api.OAuth2("Bearer", accessToken))
	if err != nil {
		xcontext.Logger(ctx).Errorf("Error downloading Polar GPX %s: %v", exerciseID, err)
		return nil, errorx.New(errorx.Unavailable, "Unable to download Polar exercise GPX")
	}

	if resp.Code != http.StatusOK {
		xcontext.Logger(ctx).Errorf("Polar GPX download failed (%d) for exercise %s", resp.Code, exerciseID)
		return nil, errorx.New(errorx.FailedDependency, "Polar exercise download failed")
	}

	return resp.RawBody, nil
}

// VerifyWebhookSignature checks the signature against the HMAC-SHA256 hex
// digest of the raw payload bytes. Without a configured secret every payload
// is accepted, which is only acceptable for local setups.
func (e *Endpoint) VerifyWebhookSignature(
	ctx context.Context, signature string, payload []byte,
) bool {
	if e.webhookSecret == "" {
		e.missingSecretWarning.Do(func() {
			xcontext.Logger(ctx).Warnf(
				"Polar webhook secret is not configured; webhook signatures will not be verified")
		})
		return true
	}

	if signature == "" {
		return false
	}

	expected := crypto.HMAC(sha256.New, payload, []byte(e.webhookSecret))
	return crypto.HMACEqual(expected, signature)
}
