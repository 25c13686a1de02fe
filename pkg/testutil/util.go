package testutil

import (
	"context"
	"time"

	"github.com/endurain/backend/config"
	"github.com/endurain/backend/internal/model"
	"github.com/endurain/backend/migration"
	"github.com/endurain/backend/pkg/authenticator"
	"github.com/endurain/backend/pkg/logger"
	"github.com/endurain/backend/pkg/xcontext"
	"github.com/gorilla/sessions"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func MockContext() context.Context {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic(err)
	}

	cfg := config.Configs{
		Auth: config.AuthConfigs{
			TokenSecret: "secret",
			AccessToken: config.TokenConfigs{
				Name:       "access_token",
				Expiration: time.Minute,
			},
			SecretKey: "super-secret-key",
		},
		Session: config.SessionConfigs{
			Secret: "session-secret",
		},
		Storage: config.S3Configs{
			Bucket: "endurain",
		},
		Polar: config.PolarConfigs{
			Host:          "https://endurain.example.com",
			WebhookSecret: "webhook-secret",
		},
	}

	ctx := context.Background()
	ctx = xcontext.WithConfigs(ctx, cfg)
	ctx = xcontext.WithLogger(ctx, logger.NewLogger(logger.SILENCE))
	ctx = xcontext.WithTokenEngine(ctx, authenticator.NewTokenEngine[model.AccessToken](
		cfg.Auth.TokenSecret, cfg.Auth.AccessToken.Expiration))
	ctx = xcontext.WithSessionStore(ctx, sessions.NewCookieStore([]byte(cfg.Session.Secret)))
	ctx = xcontext.WithDB(ctx, db)

	if err := migration.AutoMigrate(ctx); err != nil {
		panic(err)
	}

	return ctx
}

func MockContextWithUserID(userID string) context.Context {
	return xcontext.WithRequestUserID(MockContext(), userID)
}
