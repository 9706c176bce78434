// Package main runs the pet-ledger API and its maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"

	"github.com/go-petr/pet-ledger/pkg/configpkg"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "pet-ledger",
		Short:         "Wallet ledger with verified funding, withdrawals, transfers and bill payments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs", "directory holding app.env")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (configpkg.Config, error) {
	config, err := configpkg.Load(configPath)
	if err != nil {
		return config, fmt.Errorf("cannot load config: %w", err)
	}

	return config, nil
}

func newRedis(config configpkg.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     config.RedisAddress,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
}
