package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/endurain/backend/pkg/errorx"
	"github.com/endurain/backend/pkg/router"
	"github.com/endurain/backend/pkg/xcontext"
	"golang.org/x/exp/slices"
)

type AuthVerifier struct {
	useAccessToken bool
	scopes         []string
}

func NewAuthVerifier() *AuthVerifier {
	return &AuthVerifier{}
}

func (a *AuthVerifier) WithAccessToken() *AuthVerifier {
	a.useAccessToken = true
	return a
}

// WithScopes additionally requires the token to carry at least one of the
// given scopes.
func (a *AuthVerifier) WithScopes(scopes ...string) *AuthVerifier {
	a.scopes = append(a.scopes, scopes...)
	return a
}

func (a *AuthVerifier) Middleware() router.MiddlewareFunc {
	return func(ctx context.Context) (context.Context, error) {
		if a.useAccessToken {
			token := getAccessToken(ctx, xcontext.HTTPRequest(ctx))
			if token == "" {
				return nil, errorx.New(errorx.Unauthenticated, "You need to authenticate before")
			}

			info, err := xcontext.TokenEngine(ctx).Verify(token)
			if err != nil {
				xcontext.Logger(ctx).Debugf("Cannot verify access token: %v", err)
				return nil, errorx.New(errorx.Unauthenticated, "Invalid access token")
			}

			if len(a.scopes) > 0 {
				matched := false
				for _, scope := range a.scopes {
					if slices.Contains(info.Scopes, scope) {
						matched = true
						break
					}
				}

				if !matched {
					return nil, errorx.New(errorx.PermissionDenied, "Permission denied")
				}
			}

			return xcontext.WithRequestUserID(ctx, info.ID), nil
		}

		return nil, errorx.New(errorx.Unauthenticated, "You need to authenticate before")
	}
}

func getAccessToken(ctx context.Context, r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	auth, token, found := strings.Cut(authorization, " ")
	if found {
		if auth == "Bearer" {
			return token
		}
		return ""
	}

	cookie, err := r.Cookie(xcontext.Configs(ctx).Auth.AccessToken.Name)
	if err != nil {
		return ""
	}

	return cookie.Value
}
