package migration

import (
	"context"

	"github.com/endurain/backend/internal/entity"
	"github.com/endurain/backend/pkg/xcontext"
)

// When this migrator is called, no need to call other migrators.
func AutoMigrate(ctx context.Context) error {
	return xcontext.DB(ctx).AutoMigrate(
		&entity.User{},
		&entity.Activity{},
		&entity.PolarAccount{},
		&entity.Migration{},
	)
}
