package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rotation-engine/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres and ClickHouse migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if a.cfg.Storage.Backend != config.BackendSQL {
				return fmt.Errorf("%w: migrate needs the %s backend", config.ErrInvalid, config.BackendSQL)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a.cfg.Storage.Migrate = true
			s, err := openStores(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			s.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
