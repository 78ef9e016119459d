package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-resource-api/pkg/config"
	"github.com/noah-isme/edu-resource-api/pkg/logger"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert default grades, subjects, resource types, tags and the admin account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logr.Sync() //nolint:errcheck

			app, err := bootstrap(cmd.Context(), cfg, logr)
			if err != nil {
				return err
			}
			defer app.close()

			result, err := app.seeder.Run(cmd.Context())
			if err != nil {
				return err
			}
			logr.Info("seed complete", zap.Any("inserted", result))
			return nil
		},
	}
}
