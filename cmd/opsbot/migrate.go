package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oasis-community/opsbot/internal/config"
	"github.com/oasis-community/opsbot/internal/observability"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			_, closeStore, err := openStore(cmd.Context(), cfg, true, logger)
			if err != nil {
				return err
			}
			closeStore()
			logger.Info("migrations applied", zap.String("driver", cfg.Store.Driver))
			return nil
		},
	}
}
