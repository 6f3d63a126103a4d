// Command rotation runs options profile backtests, renders reports and
// verifies stored runs by replay.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"rotation-engine/internal/config"
	"rotation-engine/internal/observability"
)

const version = "v0.4.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "rotation",
		Short:        "Options rotation backtester",
		Long:         "Simulates options profile trade lifecycles over a daily feature table and reports the results.",
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "rotation.yaml", "Run configuration file")
	root.PersistentFlags().String("log-level", "", "Log level override (debug|info|warn|error)")
	root.PersistentFlags().Bool("pretty", false, "Human-readable console logs")

	root.AddCommand(
		newBacktestCmd(),
		newReportCmd(),
		newVerifyCmd(),
		newMigrateCmd(),
	)
	return root
}

// app holds what every subcommand needs.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// loadApp loads the config file and applies persistent flag overrides.
func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		cfg.Log.Pretty = true
	}

	logger, err := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
