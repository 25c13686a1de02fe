package domain

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/endurain/backend/internal/common"
	"github.com/endurain/backend/internal/entity"
	"github.com/endurain/backend/internal/model"
	"github.com/endurain/backend/internal/repository"
	"github.com/endurain/backend/pkg/api"
	"github.com/endurain/backend/pkg/pubsub"
	"github.com/endurain/backend/pkg/xcontext"
	"github.com/google/uuid"
)

// ActivityImporter turns a stored exercise file into an activity record and
// announces it.
type ActivityImporter interface {
	Import(ctx context.Context, userID, filePath, exerciseID string, importInfo entity.Map) (*entity.Activity, error)
}

type activityImporter struct {
	activityRepo repository.ActivityRepository
	publisher    pubsub.Publisher
}

func NewActivityImporter(
	activityRepo repository.ActivityRepository,
	publisher pubsub.Publisher,
) *activityImporter {
	return &activityImporter{
		activityRepo: activityRepo,
		publisher:    publisher,
	}
}

func (i *activityImporter) Import(
	ctx context.Context, userID, filePath, exerciseID string, importInfo entity.Map,
) (*entity.Activity, error) {
	activity := &entity.Activity{
		Base:            entity.Base{ID: uuid.NewString()},
		UserID:          userID,
		Name:            fmt.Sprintf("Polar exercise %s", exerciseID),
		Type:            exerciseType(importInfo),
		FilePath:        filePath,
		PolarExerciseID: sql.NullString{Valid: true, String: exerciseID},
		ImportInfo:      importInfo,
	}

	if err := i.activityRepo.Create(ctx, activity); err != nil {
		return nil, err
	}

	event := model.ActivityCreatedEvent{
		UserID:     userID,
		ActivityID: activity.ID,
		Source:     "polar",
	}

	msg, err := json.Marshal(event)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot marshal activity created event: %v", err)
		return activity, nil
	}

	pack := &pubsub.Pack{Key: []byte(activity.ID), Msg: msg}
	if err := i.publisher.Publish(ctx, common.ActivityCreatedTopic, pack); err != nil {
		xcontext.Logger(ctx).Warnf("Cannot announce imported activity %s: %v", activity.ID, err)
	}

	return activity, nil
}

func exerciseType(importInfo entity.Map) string {
	metadata, ok := importInfo["metadata"].(api.JSON)
	if !ok {
		return ""
	}

	sport, err := metadata.GetString("detailed-sport-info")
	if err != nil {
		return ""
	}

	return sport
}
