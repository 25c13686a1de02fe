package main

import (
	"context"
	"net/http"

	"github.com/BurntSushi/toml"
	"github.com/endurain/backend/config"
	"github.com/endurain/backend/internal/common"
	"github.com/endurain/backend/internal/domain"
	"github.com/endurain/backend/internal/repository"
	"github.com/endurain/backend/pkg/api/polar"
	"github.com/endurain/backend/pkg/crypto"
	"github.com/endurain/backend/pkg/kafka"
	"github.com/endurain/backend/pkg/logger"
	"github.com/endurain/backend/pkg/pubsub"
	"github.com/endurain/backend/pkg/router"
	"github.com/endurain/backend/pkg/storage"
	"github.com/endurain/backend/pkg/xcontext"
	"github.com/endurain/backend/pkg/xredis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type srv struct {
	app *cli.App
	ctx context.Context

	configs *config.Configs
	logger  logger.Logger

	db          *gorm.DB
	storage     storage.Storage
	publisher   pubsub.Publisher
	subscriber  pubsub.Subscriber
	redisClient xredis.Client

	polarEndpoint polar.IEndpoint

	userRepo         repository.UserRepository
	activityRepo     repository.ActivityRepository
	polarAccountRepo repository.PolarAccountRepository

	activityImporter domain.ActivityImporter
	polarDomain      domain.PolarDomain

	router *router.Router
	server *http.Server
}

func (s *srv) loadConfig(cctx *cli.Context) {
	s.configs = &config.Configs{}
	if _, err := toml.DecodeFile(cctx.String("config"), s.configs); err != nil {
		panic(err)
	}

	s.ctx = xcontext.WithConfigs(context.Background(), *s.configs)
}

func (s *srv) loadLogger() {
	level := logger.INFO
	if s.configs.Env == "local" {
		level = logger.DEBUG
	}

	s.logger = logger.NewLogger(level)
	s.ctx = xcontext.WithLogger(s.ctx, s.logger)
}

func (s *srv) loadDatabase() {
	var err error
	s.db, err = gorm.Open(mysql.Open(s.configs.Database.ConnectionString()), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	s.ctx = xcontext.WithDB(s.ctx, s.db)
}

func (s *srv) loadStorage() {
	if s.configs.Storage.Endpoint != "" {
		s.storage = storage.NewS3Storage(s.configs.Storage)
	} else {
		s.storage = storage.NewLocalStorage(s.configs.File.Dir)
	}
}

func (s *srv) loadPublisher() {
	s.publisher = kafka.NewPublisher("endurain", []string{s.configs.Kafka.Addr})
}

func (s *srv) loadRedis() {
	redisClient, err := xredis.NewClient(s.ctx)
	if err != nil {
		panic(err)
	}

	s.redisClient = redisClient
}

func (s *srv) loadEndpoint() {
	s.polarEndpoint = polar.New(s.configs.Polar)
}

func (s *srv) loadRepos() {
	cipher, err := crypto.NewAEADCipher(s.configs.Auth.SecretKey)
	if err != nil {
		panic(err)
	}

	s.userRepo = repository.NewUserRepository()
	s.activityRepo = repository.NewActivityRepository()
	s.polarAccountRepo = repository.NewPolarAccountRepository(cipher)
}

func (s *srv) loadDomains() {
	s.activityImporter = domain.NewActivityImporter(s.activityRepo, s.publisher)
	s.polarDomain = domain.NewPolarDomain(
		s.userRepo,
		s.polarAccountRepo,
		s.activityRepo,
		s.polarEndpoint,
		s.publisher,
		s.redisClient,
		s.storage,
		s.activityImporter,
	)
}

func (s *srv) loadMetrics() {
	for _, counter := range common.PromCounters {
		prometheus.MustRegister(counter)
	}

	for _, histogram := range common.PromHistograms {
		prometheus.MustRegister(histogram)
	}
}
