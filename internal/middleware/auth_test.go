package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/endurain/backend/config"
	"github.com/endurain/backend/internal/model"
	"github.com/endurain/backend/pkg/authenticator"
	"github.com/endurain/backend/pkg/errorx"
	"github.com/endurain/backend/pkg/logger"
	"github.com/endurain/backend/pkg/router"
	"github.com/endurain/backend/pkg/xcontext"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(t *testing.T, verifier *AuthVerifier) (*router.Router, *string) {
	cfg := config.Configs{
		Auth: config.AuthConfigs{
			TokenSecret: "secret",
			AccessToken: config.TokenConfigs{Name: "access_token", Expiration: time.Minute},
		},
	}

	r := router.New(nil, cfg, logger.NewLogger(logger.SILENCE))
	r.Before(verifier.Middleware())

	userID := new(string)
	router.GET(r, "/me", func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		*userID = xcontext.RequestUserID(ctx)
		return &struct{}{}, nil
	})

	return r, userID
}

func generateToken(t *testing.T, scopes ...string) string {
	engine := authenticator.NewTokenEngine[model.AccessToken]("secret", time.Minute)
	token, err := engine.Generate("user-1", model.AccessToken{
		ID:     "user-1",
		Name:   "tester",
		Scopes: scopes,
	})
	require.NoError(t, err)
	return token
}

func responseCode(t *testing.T, w *httptest.ResponseRecorder) int64 {
	var resp struct {
		Code int64 `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Code
}

func TestAuthVerifier_BearerToken(t *testing.T) {
	r, userID := newAuthRouter(t, NewAuthVerifier().WithAccessToken().WithScopes("profile"))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+generateToken(t, "profile"))

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	require.Zero(t, responseCode(t, w))
	require.Equal(t, "user-1", *userID)
}

func TestAuthVerifier_CookieToken(t *testing.T) {
	r, userID := newAuthRouter(t, NewAuthVerifier().WithAccessToken())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: generateToken(t)})

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	require.Zero(t, responseCode(t, w))
	require.Equal(t, "user-1", *userID)
}

func TestAuthVerifier_MissingToken(t *testing.T) {
	r, _ := newAuthRouter(t, NewAuthVerifier().WithAccessToken())

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.EqualValues(t, errorx.Unauthenticated, responseCode(t, w))
}

func TestAuthVerifier_InvalidToken(t *testing.T) {
	r, _ := newAuthRouter(t, NewAuthVerifier().WithAccessToken())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	require.EqualValues(t, errorx.Unauthenticated, responseCode(t, w))
}

func TestAuthVerifier_MissingScope(t *testing.T) {
	r, _ := newAuthRouter(t, NewAuthVerifier().WithAccessToken().WithScopes("profile"))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+generateToken(t, "sessions"))

	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	require.EqualValues(t, errorx.PermissionDenied, responseCode(t, w))
}
