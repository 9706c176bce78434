package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-petr/pet-ledger/cmd/httpserver"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var withSweeper bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the notification workers and the sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), withSweeper)
		},
	}

	cmd.Flags().BoolVar(&withSweeper, "sweeper", true, "run the expiry and reconciliation sweeper in process")

	return cmd
}

func runServe(ctx context.Context, withSweeper bool) error {
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

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server.Start(ctx)
	defer server.Close()

	if withSweeper {
		go server.Sweeper.Run(ctx)
	}

	srv := &http.Server{
		Addr:              config.ServerAddress,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info().Str("address", config.ServerAddress).Msg("LEDGER API SERVER HAS STARTED")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("cannot start server: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("cannot shut down server: %w", err)
	}

	return nil
}
