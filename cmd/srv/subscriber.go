package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/endurain/backend/internal/common"
	"github.com/endurain/backend/internal/model"
	"github.com/endurain/backend/pkg/kafka"
	"github.com/endurain/backend/pkg/pubsub"
	"github.com/endurain/backend/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startSubscriber(cctx *cli.Context) error {
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

	s.subscriber = kafka.NewSubscriber(
		"polar-subscriber",
		[]string{s.configs.Kafka.Addr},
		[]string{common.PolarExerciseTopic},
		s.handleExercisePack,
	)

	s.logger.Infof("Starting subscriber")
	s.subscriber.Subscribe(s.ctx)
	<-s.ctx.Done()
	return s.subscriber.Stop(s.ctx)
}

func (s *srv) handleExercisePack(ctx context.Context, pack *pubsub.Pack, t time.Time) {
	ctx = xcontext.WithConfigs(ctx, *s.configs)
	ctx = xcontext.WithLogger(ctx, s.logger)
	ctx = xcontext.WithDB(ctx, s.db)

	var notification model.ExerciseNotification
	if err := json.Unmarshal(pack.Msg, &notification); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot unmarshal exercise notification: %v", err)
		return
	}

	if err := s.polarDomain.ProcessExerciseNotification(ctx, &notification); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot process polar exercise %s: %v",
			notification.ExerciseID, err)
	}
}
