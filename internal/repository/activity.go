package repository

import (
	"context"
	"errors"

	"github.com/endurain/backend/internal/entity"
	"github.com/endurain/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type ActivityRepository interface {
	Create(ctx context.Context, activity *entity.Activity) error
	GetByID(ctx context.Context, id string) (*entity.Activity, error)
	GetByPolarExerciseID(ctx context.Context, userID, exerciseID string) (*entity.Activity, error)
	DeleteAllPolarByUserID(ctx context.Context, userID string) error
}

type activityRepository struct{}

func NewActivityRepository() *activityRepository {
	return &activityRepository{}
}

func (r *activityRepository) Create(ctx context.Context, activity *entity.Activity) error {
	return xcontext.DB(ctx).Create(activity).Error
}

func (r *activityRepository) GetByID(ctx context.Context, id string) (*entity.Activity, error) {
	var result entity.Activity
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

// GetByPolarExerciseID returns nil without an error when the user has no
// activity imported from the given exercise.
func (r *activityRepository) GetByPolarExerciseID(
	ctx context.Context, userID, exerciseID string,
) (*entity.Activity, error) {
	var result entity.Activity
	err := xcontext.DB(ctx).
		Take(&result, "user_id=? AND polar_exercise_id=?", userID, exerciseID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &result, nil
}

func (r *activityRepository) DeleteAllPolarByUserID(ctx context.Context, userID string) error {
	return xcontext.DB(ctx).
		Where("user_id=? AND polar_exercise_id IS NOT NULL", userID).
		Delete(&entity.Activity{}).Error
}
