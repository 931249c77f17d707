package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/uxerra/studio-api/internal/config"
	"github.com/uxerra/studio-api/internal/lib/sl"
	"github.com/uxerra/studio-api/internal/migrations"
	"github.com/uxerra/studio-api/internal/storage/repository"
)

func migrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := sl.New(cfg.Env, os.Stdout)

			db, err := repository.New(cfg.StorageConnectionString)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if down {
				if err = migrations.Down(db.DB); err != nil {
					return err
				}
				logger.Info("migrations rolled back")
				return nil
			}
			if err = migrations.Run(db.DB); err != nil {
				return err
			}
			logger.Info("migrations applied", slog.String("env", cfg.Env))
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Roll back all migrations")
	return cmd
}
