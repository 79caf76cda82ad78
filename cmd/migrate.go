package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"scenerelay/server"
	"scenerelay/storage/postgres/migrations"
)

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the postgres schema",
	}
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateWith((*migrations.Migrator).Up)
		},
	})
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateWith((*migrations.Migrator).Down)
		},
	})
	return migrateCmd
}

func migrateWith(step func(*migrations.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.Postgres.URL == "" {
		return errors.New("storage.postgres.url (or DATABASE_URL) is required")
	}
	log, err := server.NewLogger(logOptions(cfg))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer server.SyncLogger(log)
	return runMigrations(cfg.Storage.Postgres.URL, log, step)
}

func runMigrations(url string, log *zap.SugaredLogger, step func(*migrations.Migrator) error) error {
	m, err := migrations.New(url, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warnw("close migrator", "error", err)
		}
	}()
	return step(m)
}
