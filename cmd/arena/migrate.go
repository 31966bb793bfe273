package main

import (
	"context"

	"github.com/Kumar2007/MarvelClashArena/internal/storage"
)

// MigrateCmd runs goose against the configured database
type MigrateCmd struct {
	Command  string `arg:"" default:"up" enum:"up,down,status,version,redo,reset" help:"Migration command (${enum})"`
	Database string `help:"SQLite path, overrides the config file"`
}

func (c *MigrateCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config, ".env")
	if err != nil {
		return err
	}
	path := cfg.Server.Database
	if c.Database != "" {
		path = c.Database
	}

	logger, err := setupLogger(cfg.Server.LogLevel, false)
	if err != nil {
		return err
	}

	db, err := storage.OpenDB(path, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	return storage.Migrate(context.Background(), db, c.Command, logger)
}
