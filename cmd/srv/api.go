package main

import (
	"fmt"
	"net/http"

	"github.com/endurain/backend/internal/middleware"
	"github.com/endurain/backend/pkg/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func (s *srv) startApi(cctx *cli.Context) error {
	s.loadConfig(cctx)
	s.loadLogger()
	s.loadDatabase()
	s.loadStorage()
	s.loadPublisher()
	s.loadRedis()
	s.loadEndpoint()
	s.loadRepos()
	s.loadDomains()
	s.loadMetrics()
	s.loadRouter()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", s.router.Handler())

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%s", s.configs.ApiServer.Port),
		Handler: mux,
	}

	s.logger.Infof("Starting server on port: %s", s.configs.ApiServer.Port)
	if err := s.server.ListenAndServe(); err != nil {
		panic(err)
	}
	s.logger.Infof("Server stop")
	return nil
}

func (s *srv) loadRouter() {
	s.router = router.New(s.db, *s.configs, s.logger)
	s.router.Before(middleware.AllowCors())
	s.router.AddCloser(middleware.Logger())
	s.router.AddCloser(middleware.Prometheus())

	// Webhook and link callbacks carry no user token, the state or the
	// signature identifies the caller.
	publicRouter := s.router.Branch()
	{
		router.PUT(publicRouter, "/polar/link", s.polarDomain.Link)
		router.POST(publicRouter, "/polar/webhook", s.polarDomain.Webhook)
	}

	authRouter := s.router.Branch()
	authVerifier := middleware.NewAuthVerifier().WithAccessToken().WithScopes("profile")
	authRouter.Before(authVerifier.Middleware())
	{
		router.PUT(authRouter, "/polar/client", s.polarDomain.SetClient)
		router.PUT(authRouter, "/polar/state", s.polarDomain.SetState)
		router.DELETE(authRouter, "/polar/unlink", s.polarDomain.Unlink)
	}
}
