package migration

import (
	"context"

	"github.com/endurain/backend/internal/entity"
	"github.com/endurain/backend/pkg/xcontext"
)

// migrate0000 will create the database with the latest version.
func migrate0000(ctx context.Context) error {
	return xcontext.DB(ctx).AutoMigrate(
		&entity.User{},
		&entity.Activity{},
		&entity.PolarAccount{},
		&entity.Migration{},
	)
}
