package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/endurain/backend/config"
	"github.com/endurain/backend/pkg/errorx"
	"github.com/endurain/backend/pkg/logger"
	"github.com/endurain/backend/pkg/xcontext"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code  int64           `json:"code"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

func newTestRouter() *Router {
	return New(nil, config.Configs{}, logger.NewLogger(logger.SILENCE))
}

func serve(r *Router, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		panic(err)
	}

	return w, resp
}

type echoRequest struct {
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Active bool   `json:"active"`
}

type echoResponse struct {
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Active bool   `json:"active"`
}

func echoHandler(_ context.Context, req *echoRequest) (*echoResponse, error) {
	return &echoResponse{Name: req.Name, Count: req.Count, Active: req.Active}, nil
}

func TestRouterQueryBinding(t *testing.T) {
	r := newTestRouter()
	GET(r, "/echo", echoHandler)

	req := httptest.NewRequest(http.MethodGet, "/echo?name=foo&count=3&active=true", nil)
	w, resp := serve(r, req)

	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.Zero(t, resp.Code)

	var data echoResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Equal(t, echoResponse{Name: "foo", Count: 3, Active: true}, data)
}

func TestRouterJSONBinding(t *testing.T) {
	r := newTestRouter()
	POST(r, "/echo", echoHandler)

	body := strings.NewReader(`{"name": "foo", "count": 3, "active": true}`)
	req := httptest.NewRequest(http.MethodPost, "/echo", body)
	_, resp := serve(r, req)

	require.Zero(t, resp.Code)

	var data echoResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Equal(t, echoResponse{Name: "foo", Count: 3, Active: true}, data)
}

func TestRouterInvalidJSON(t *testing.T) {
	r := newTestRouter()
	POST(r, "/echo", echoHandler)

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"name": `))
	_, resp := serve(r, req)

	require.EqualValues(t, errorx.BadRequest, resp.Code)
	require.Equal(t, "Cannot bind the request", resp.Error)
}

func TestRouterMethodNotSupported(t *testing.T) {
	r := newTestRouter()
	POST(r, "/echo", echoHandler)

	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	_, resp := serve(r, req)

	require.EqualValues(t, errorx.BadRequest, resp.Code)
	require.Equal(t, "Not supported method GET", resp.Error)
}

type rawBodyRequest struct {
	signature string
	rawBody   []byte
}

func (r *rawBodyRequest) Bind(req *http.Request, body []byte) error {
	r.signature = req.Header.Get("X-Signature")
	r.rawBody = body
	return nil
}

func TestRouterBinder(t *testing.T) {
	r := newTestRouter()

	var bound rawBodyRequest
	POST(r, "/hook", func(_ context.Context, req *rawBodyRequest) (*echoResponse, error) {
		bound = *req
		return &echoResponse{}, nil
	})

	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{"event": "PING"}`))
	req.Header.Set("X-Signature", "abc")
	_, resp := serve(r, req)

	require.Zero(t, resp.Code)
	require.Equal(t, "abc", bound.signature)
	require.Equal(t, []byte(`{"event": "PING"}`), bound.rawBody)
}

func TestRouterErrorEnvelope(t *testing.T) {
	r := newTestRouter()

	GET(r, "/known", func(context.Context, *echoRequest) (*echoResponse, error) {
		return nil, errorx.New(errorx.NotFound, "Polar account not found")
	})
	GET(r, "/unknown", func(context.Context, *echoRequest) (*echoResponse, error) {
		return nil, context.DeadlineExceeded
	})

	_, resp := serve(r, httptest.NewRequest(http.MethodGet, "/known", nil))
	require.EqualValues(t, errorx.NotFound, resp.Code)
	require.Equal(t, "Polar account not found", resp.Error)

	// Errors outside the error code space are never leaked to the client.
	_, resp = serve(r, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	require.Equal(t, int64(errorx.Unknown.Code), resp.Code)
	require.Equal(t, errorx.Unknown.Message, resp.Error)
}

func TestRouterMiddlewareAndClosers(t *testing.T) {
	r := newTestRouter()

	var order []string
	r.Before(func(ctx context.Context) (context.Context, error) {
		order = append(order, "before")
		return ctx, nil
	})
	r.AddCloser(func(ctx context.Context) {
		order = append(order, "closer")
	})

	GET(r, "/ok", func(context.Context, *echoRequest) (*echoResponse, error) {
		order = append(order, "handler")
		return &echoResponse{}, nil
	})

	_, resp := serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.Zero(t, resp.Code)
	require.Equal(t, []string{"before", "handler", "closer"}, order)
}

func TestRouterMiddlewareAbort(t *testing.T) {
	r := newTestRouter()
	r.Before(func(ctx context.Context) (context.Context, error) {
		return ctx, errorx.New(errorx.Unauthenticated, "You need to authenticate before")
	})

	called := false
	GET(r, "/secure", func(context.Context, *echoRequest) (*echoResponse, error) {
		called = true
		return &echoResponse{}, nil
	})

	_, resp := serve(r, httptest.NewRequest(http.MethodGet, "/secure", nil))
	require.EqualValues(t, errorx.Unauthenticated, resp.Code)
	require.False(t, called)
}

func TestRouterBranchIsolation(t *testing.T) {
	root := newTestRouter()

	var rootSeen, branchSeen bool
	GET(root, "/public", func(context.Context, *echoRequest) (*echoResponse, error) {
		rootSeen = true
		return &echoResponse{}, nil
	})

	branch := root.Branch()
	branch.Before(func(ctx context.Context) (context.Context, error) {
		return ctx, errorx.New(errorx.Unauthenticated, "You need to authenticate before")
	})
	GET(branch, "/private", func(context.Context, *echoRequest) (*echoResponse, error) {
		branchSeen = true
		return &echoResponse{}, nil
	})

	// The branch middleware never applies to routes of the root router.
	_, resp := serve(root, httptest.NewRequest(http.MethodGet, "/public", nil))
	require.Zero(t, resp.Code)
	require.True(t, rootSeen)

	_, resp = serve(root, httptest.NewRequest(http.MethodGet, "/private", nil))
	require.EqualValues(t, errorx.Unauthenticated, resp.Code)
	require.False(t, branchSeen)
}

func TestRouterContextValues(t *testing.T) {
	cfg := config.Configs{Env: "local"}
	r := New(nil, cfg, logger.NewLogger(logger.SILENCE))

	GET(r, "/ctx", func(ctx context.Context, _ *echoRequest) (*echoResponse, error) {
		require.Equal(t, "local", xcontext.Configs(ctx).Env)
		require.NotNil(t, xcontext.Logger(ctx))
		require.NotNil(t, xcontext.HTTPRequest(ctx))
		require.NotNil(t, xcontext.HTTPWriter(ctx))
		return &echoResponse{}, nil
	})

	_, resp := serve(r, httptest.NewRequest(http.MethodGet, "/ctx", nil))
	require.Zero(t, resp.Code)
}
