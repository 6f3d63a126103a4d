package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"rotation-engine/internal/backtest"
	"rotation-engine/internal/config"
	"rotation-engine/internal/observability"
	"rotation-engine/internal/pipeline"
)

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run every configured profile and write the result files",
		RunE:  runBacktest,
	}

	cmd.Flags().String("out", "", "Output directory (overrides output.dir)")
	cmd.Flags().Bool("include-daily", false, "Include daily rows in the artifact")
	cmd.Flags().Int("parallelism", -1, "Max concurrent profiles (overrides config)")
	cmd.Flags().String("metrics-addr", "", "Serve /metrics on this address after the run, until interrupted")
	return cmd
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	cfg := a.cfg
	flags := cmd.Flags()

	if out, _ := flags.GetString("out"); out != "" {
		cfg.Output.Dir = out
	}
	if daily, _ := flags.GetBool("include-daily"); daily {
		cfg.Output.IncludeDaily = true
	}
	if flags.Changed("parallelism") {
		n, _ := flags.GetInt("parallelism")
		if n < 0 {
			return fmt.Errorf("%w: parallelism must be >= 0", config.ErrInvalid)
		}
		cfg.Parallelism = n
	}
	metricsAddr, _ := flags.GetString("metrics-addr")

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	profiles, err := cfg.BuildProfiles()
	if err != nil {
		return err
	}

	s, err := openStores(ctx, cfg, a.logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := loadMarketData(ctx, cfg, s, profiles, a.logger); err != nil {
		return err
	}

	metrics := observability.NewMetrics(observability.DefaultNamespace)
	runner, err := backtest.NewRunner(backtest.Options{
		MarketStore:  s.market,
		QuoteStore:   s.quotes,
		TradeStore:   s.trades,
		SummaryStore: s.summaries,
		Logger:       a.logger,
		Metrics:      metrics,
		Parallelism:  cfg.Parallelism,
	})
	if err != nil {
		return err
	}

	simCfg := cfg.ToSimulationConfig()
	checker := pipeline.NewSufficiencyChecker(s.market, s.quotes).
		RequireQuotes(!simCfg.AllowToyPricing)

	p := pipeline.New(runner, cfg.Output.Dir).
		WithSufficiencyChecker(checker).
		WithArtifactName(cfg.Output.Artifact).
		WithMetricsTextfile(metrics, cfg.Output.MetricsTextfile).
		WithLogger(a.logger)

	start := time.Now()
	out, err := p.Run(ctx, backtest.Request{
		Symbol:       cfg.Symbol,
		From:         cfg.Start,
		To:           cfg.End,
		Simulation:   simCfg,
		Profiles:     profiles,
		IncludeDaily: cfg.Output.IncludeDaily,
	})
	if errors.Is(err, pipeline.ErrInsufficientData) {
		a.logger.Error().Str("dir", cfg.Output.Dir).Msg("data sufficiency failed, see " + pipeline.SufficiencyFile)
		return err
	}
	if err != nil {
		return err
	}

	printSummary(cmd, out, time.Since(start))

	if metricsAddr != "" {
		return serveMetrics(ctx, metricsAddr, metrics, a.logger)
	}
	return nil
}

func printSummary(cmd *cobra.Command, out *pipeline.Outcome, elapsed time.Duration) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Backtest complete: %d rows, %d profiles in %s\n",
		out.Result.Rows, len(out.Result.Runs), elapsed.Round(time.Millisecond))
	for _, run := range out.Result.Runs {
		fmt.Fprintf(w, "  %-24s %-20s trades=%-4d pnl=%10.2f run=%s\n",
			run.Profile, run.Structure, run.Summary.TotalTrades, run.Summary.TotalPnL, run.RunID)
	}
	for _, f := range out.Files {
		fmt.Fprintf(w, "  wrote %s\n", f)
	}
}

// serveMetrics exposes the run's metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, metrics *observability.Metrics, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	logger.Info().Msg("metrics server stopped")
	return nil
}
