package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pybake/internal/config"
	"pybake/internal/engine"
	"pybake/internal/logging"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload form, gRPC health and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logging.InitFromEnv(cfg.Log.Level, cfg.Log.JSON)

			e, err := engine.Bootstrap(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			if err := e.Run(cmd.Context()); err != nil {
				return fmt.Errorf("engine: %w", err)
			}
			return nil
		},
	}
}
