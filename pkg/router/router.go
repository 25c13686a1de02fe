package router

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/endurain/backend/config"
	"github.com/endurain/backend/internal/model"
	"github.com/endurain/backend/pkg/authenticator"
	"github.com/endurain/backend/pkg/errorx"
	"github.com/endurain/backend/pkg/logger"
	"github.com/endurain/backend/pkg/xcontext"
	"github.com/gorilla/sessions"
	"gorm.io/gorm"
)

type HandlerFunc[Request, Response any] func(ctx context.Context, req *Request) (*Response, error)

// MiddlewareFunc runs before the handler. A returned error aborts the request
// and is written as the response.
type MiddlewareFunc func(ctx context.Context) (context.Context, error)

// CloserFunc runs after the response is written, regardless of the outcome.
type CloserFunc func(ctx context.Context)

// Binder lets a request type take over binding, receiving the raw body bytes.
type Binder interface {
	Bind(r *http.Request, body []byte) error
}

const maxBodySize = 1 << 20

type Router struct {
	mux *http.ServeMux

	db           *gorm.DB
	cfg          config.Configs
	logger       logger.Logger
	sessionStore sessions.Store
	tokenEngine  authenticator.TokenEngine[model.AccessToken]

	befores []MiddlewareFunc
	afters  []MiddlewareFunc
	closers []CloserFunc
}

func New(db *gorm.DB, cfg config.Configs, logger logger.Logger) *Router {
	return &Router{
		mux:          http.NewServeMux(),
		db:           db,
		cfg:          cfg,
		logger:       logger,
		sessionStore: sessions.NewCookieStore([]byte(cfg.Session.Secret)),
		tokenEngine: authenticator.NewTokenEngine[model.AccessToken](
			cfg.Auth.TokenSecret, cfg.Auth.AccessToken.Expiration),
	}
}

// Branch returns a router sharing the same mux but with its own middleware
// chain. Routes registered on the branch see only the branch's chain.
func (r *Router) Branch() *Router {
	clone := *r
	clone.befores = make([]MiddlewareFunc, len(r.befores))
	copy(clone.befores, r.befores)
	clone.afters = make([]MiddlewareFunc, len(r.afters))
	copy(clone.afters, r.afters)
	clone.closers = make([]CloserFunc, len(r.closers))
	copy(clone.closers, r.closers)
	return &clone
}

func (r *Router) Before(middleware MiddlewareFunc) {
	r.befores = append(r.befores, middleware)
}

func (r *Router) After(middleware MiddlewareFunc) {
	r.afters = append(r.afters, middleware)
}

func (r *Router) AddCloser(closer CloserFunc) {
	r.closers = append(r.closers, closer)
}

func (r *Router) Handler() http.Handler {
	return r.mux
}

func GET[Request, Response any](r *Router, pattern string, handler HandlerFunc[Request, Response]) {
	handle(r, http.MethodGet, pattern, handler)
}

func POST[Request, Response any](r *Router, pattern string, handler HandlerFunc[Request, Response]) {
	handle(r, http.MethodPost, pattern, handler)
}

func PUT[Request, Response any](r *Router, pattern string, handler HandlerFunc[Request, Response]) {
	handle(r, http.MethodPut, pattern, handler)
}

func DELETE[Request, Response any](r *Router, pattern string, handler HandlerFunc[Request, Response]) {
	handle(r, http.MethodDelete, pattern, handler)
}

func handle[Request, Response any](
	r *Router, method, pattern string, handler HandlerFunc[Request, Response],
) {
	befores := r.befores
	afters := r.afters
	closers := r.closers

	r.mux.HandleFunc(pattern, func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		ctx = xcontext.WithDB(ctx, r.db)
		ctx = xcontext.WithConfigs(ctx, r.cfg)
		ctx = xcontext.WithLogger(ctx, r.logger)
		ctx = xcontext.WithSessionStore(ctx, r.sessionStore)
		ctx = xcontext.WithTokenEngine(ctx, r.tokenEngine)
		ctx = xcontext.WithHTTPRequest(ctx, req)
		ctx = xcontext.WithHTTPWriter(ctx, w)
		ctx = xcontext.WithStartTime(ctx, time.Now())
		ctx = xcontext.WithErrorAndResponse(ctx)

		defer func() {
			handleResponse()(ctx)
			for _, closer := range closers {
				closer(ctx)
			}
		}()

		if req.Method != method {
			xcontext.SetError(ctx, errorx.New(errorx.BadRequest, "Not supported method %s", req.Method))
			return
		}

		body, err := io.ReadAll(io.LimitReader(req.Body, maxBodySize))
		if err != nil {
			xcontext.SetError(ctx, errorx.New(errorx.BadRequest, "Cannot read the request body"))
			return
		}
		ctx = xcontext.WithRawRequestBody(ctx, body)

		for _, before := range befores {
			next, err := before(ctx)
			if err != nil {
				xcontext.SetError(ctx, err)
				return
			}
			ctx = next
		}

		var request Request
		if err := bindRequest(req, body, &request); err != nil {
			xcontext.SetError(ctx, errorx.New(errorx.BadRequest, "Cannot bind the request"))
			return
		}

		resp, err := handler(ctx, &request)
		if err != nil {
			xcontext.SetError(ctx, err)
			return
		}
		xcontext.SetResponse(ctx, resp)

		for _, after := range afters {
			next, err := after(ctx)
			if err != nil {
				xcontext.SetError(ctx, err)
				return
			}
			ctx = next
		}
	})
}
