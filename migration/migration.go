package migration

import (
	"context"
	"errors"
	"time"

	"github.com/endurain/backend/internal/entity"
	"github.com/endurain/backend/pkg/xcontext"
	"gorm.io/gorm"
)

// Migrators maps a version to its migrator. Versions are applied explicitly
// through the migrate command, never implicitly at startup.
var Migrators = map[string]func(context.Context) error{
	"0000": migrate0000,
	"0001": migrate0001,
}

// Apply runs the migrator of the given version if it has not been recorded
// yet.
func Apply(ctx context.Context, version string) error {
	migrator, ok := Migrators[version]
	if !ok {
		return errors.New("unknown migration version " + version)
	}

	// The bookkeeping table must exist before the first version is applied.
	if err := xcontext.DB(ctx).AutoMigrate(&entity.Migration{}); err != nil {
		return err
	}

	var record entity.Migration
	err := xcontext.DB(ctx).Take(&record, "version=?", version).Error
	if err == nil {
		xcontext.Logger(ctx).Infof("Migration %s is already applied", version)
		return nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := migrator(ctx); err != nil {
		return err
	}

	return xcontext.DB(ctx).Create(&entity.Migration{
		Version:   version,
		AppliedAt: time.Now(),
	}).Error
}
