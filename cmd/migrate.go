package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/go-petr/pet-ledger/internal/middleware"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert the database schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(func(m *migrate.Migrate) error { return m.Up() })
		},
	})

	var steps int

	down := &cobra.Command{
		Use:   "down",
		Short: "Revert the last migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(func(m *migrate.Migrate) error { return m.Steps(-steps) })
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")

	cmd.AddCommand(down)

	return cmd
}

func runMigrate(apply func(m *migrate.Migrate) error) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	logger := middleware.CreateLogger(config)

	m, err := migrate.New(config.MigrationURL, config.DBSource)
	if err != nil {
		return fmt.Errorf("cannot create migration instance: %w", err)
	}
	defer m.Close()

	if err := apply(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info().Msg("no migrations to apply")
			return nil
		}

		var dirtyErr migrate.ErrDirty
		if errors.As(err, &dirtyErr) {
			return fmt.Errorf("migration failed: dirty database version %d", dirtyErr.Version)
		}

		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("cannot read migration version: %w", err)
	}

	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")

	return nil
}
