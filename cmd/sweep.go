package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-petr/pet-ledger/cmd/httpserver"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiry and reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}

			logger := middleware.CreateLogger(config)

			db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
			if err != nil {
				return fmt.Errorf("cannot connect to database: %w", err)
			}
			defer db.Close()

			rdb := newRedis(config)
			defer rdb.Close()

			server, err := httpserver.New(db, rdb, logger, config)
			if err != nil {
				return fmt.Errorf("cannot create server: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			server.Start(ctx)
			defer server.Close()

			report, err := server.Sweeper.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "expired=%d completed=%d failed=%d pending=%d\n",
				report.Expired, report.Completed, report.Failed, report.Pending)

			return nil
		},
	}
}
