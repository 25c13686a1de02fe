package main

import (
	"github.com/endurain/backend/migration"
	"github.com/urfave/cli/v2"
)

func (s *srv) startMigrate(cctx *cli.Context) error {
	s.loadConfig(cctx)
	s.loadLogger()
	s.loadDatabase()

	version := cctx.String("version")
	if version == "auto" {
		return migration.AutoMigrate(s.ctx)
	}

	return migration.Apply(s.ctx, version)
}
