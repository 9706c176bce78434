package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
)

func tokenCmd() *cobra.Command {
	var (
		owner    string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				return errors.New("--owner is required")
			}

			config, err := loadConfig()
			if err != nil {
				return err
			}

			if duration == 0 {
				duration = config.AccessTokenDuration
			}

			maker, err := tokenpkg.New(config.TokenKind, config.TokenSymmetricKey)
			if err != nil {
				return fmt.Errorf("cannot create token maker: %w", err)
			}

			token, payload, err := maker.CreateToken(owner, duration)
			if err != nil {
				return fmt.Errorf("cannot create token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", payload.ExpiredAt.Format(time.RFC3339))

			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner name carried by the token")
	cmd.Flags().DurationVar(&duration, "duration", 0, "token lifetime, defaults to ACCESS_TOKEN_DURATION")

	return cmd
}
