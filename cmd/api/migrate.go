package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/observability"
	"github.com/spec-kit/task-service/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Apply, roll back or inspect database migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE:      runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	m, err := persistence.NewMigrator(cfg.Postgres.DSN, logger)
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck

	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	default:
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", version, dirty)
		return nil
	}
}
