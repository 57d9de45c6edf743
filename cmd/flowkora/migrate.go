package main

import (
	"context"
	"fmt"

	"flowkora/config"
	pgStorage "flowkora/internal/adapter/storage/postgres"
	"flowkora/pkg/logger"

	"github.com/spf13/cobra"
)

func migrateCmd(configPath *string) *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Apply the PostgreSQL schema. Every statement is idempotent, so the
command is safe to run on each deploy.

Examples:
  flowkora migrate
  flowkora migrate --print > schema.sql`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				fmt.Fprint(cmd.OutOrStdout(), pgStorage.Schema())
				return nil
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

			ctx := context.Background()
			pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
			if err != nil {
				return fmt.Errorf("connect to PostgreSQL: %w", err)
			}
			defer pool.Close()

			if err := pgStorage.Migrate(ctx, pool); err != nil {
				return err
			}
			log.Info().Str("database", cfg.Database.DBName).Msg("Schema applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "print the schema instead of applying it")
	return cmd
}
