package migration

import (
	"context"

	"github.com/endurain/backend/internal/entity"
	"github.com/endurain/backend/pkg/xcontext"
)

// migrate0001 adds the state expiry and webhook bookkeeping columns to polar
// accounts.
func migrate0001(ctx context.Context) error {
	migrator := xcontext.DB(ctx).Migrator()
	if !migrator.HasColumn(&entity.PolarAccount{}, "state_issued_at") {
		if err := migrator.AddColumn(&entity.PolarAccount{}, "state_issued_at"); err != nil {
			return err
		}
	}

	if !migrator.HasColumn(&entity.PolarAccount{}, "last_notification_at") {
		if err := migrator.AddColumn(&entity.PolarAccount{}, "last_notification_at"); err != nil {
			return err
		}
	}

	return nil
}
