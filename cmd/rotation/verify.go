package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rotation-engine/internal/backtest"
	"rotation-engine/internal/config"
	"rotation-engine/internal/verification"
)

var errMismatch = errors.New("replay does not match stored results")

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay the configured backtest and compare it with stored results",
		RunE:  runVerify,
	}
	cmd.Flags().String("artifact", "", "Artifact JSON file to compare against")
	cmd.Flags().Bool("against-store", false, "Compare against trades stored under the artifact's run ids")
	cmd.Flags().Bool("verbose", false, "List every divergent field")
	return cmd
}

func runVerify(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	cfg := a.cfg

	artifactPath, _ := cmd.Flags().GetString("artifact")
	againstStore, _ := cmd.Flags().GetBool("against-store")
	verbose, _ := cmd.Flags().GetBool("verbose")
	if artifactPath == "" {
		return fmt.Errorf("--artifact is required")
	}
	if againstStore && cfg.Storage.Backend != config.BackendSQL {
		return fmt.Errorf("%w: --against-store needs the %s backend", config.ErrInvalid, config.BackendSQL)
	}

	doc, err := readArtifact(artifactPath)
	if err != nil {
		return err
	}
	profiles, err := cfg.BuildProfiles()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	s, err := openStores(ctx, cfg, a.logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := loadMarketData(ctx, cfg, s, profiles, a.logger); err != nil {
		return err
	}

	verifier, err := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		MarketStore: s.market,
		QuoteStore:  s.quotes,
		TradeStore:  s.trades,
		Logger:      a.logger,
	})
	if err != nil {
		return err
	}

	req := backtest.Request{
		Symbol:     cfg.Symbol,
		From:       cfg.Start,
		To:         cfg.End,
		Simulation: cfg.ToSimulationConfig(),
		Profiles:   profiles,
	}

	var report *verification.VerificationReport
	if againstStore {
		runIDs := make(map[string]string, len(doc))
		for name, pr := range doc {
			runIDs[name] = pr.RunID
		}
		report, err = verifier.VerifyRuns(ctx, req, runIDs)
	} else {
		report, err = verifier.VerifyDocument(ctx, req, doc)
	}
	if err != nil {
		return err
	}

	printVerification(cmd.OutOrStdout(), report, verbose)
	if !report.AllMatch() {
		return errMismatch
	}
	return nil
}

func printVerification(w io.Writer, report *verification.VerificationReport, verbose bool) {
	for _, p := range report.Profiles {
		status := "OK"
		if !p.Match() {
			status = "MISMATCH"
		}
		fmt.Fprintf(w, "%-8s %-24s trades=%d matched=%d divergent=%d missing=%d extra=%d\n",
			status, p.Profile, p.TotalTrades, p.MatchedTrades, p.DivergentTrades, len(p.MissingTrades), len(p.ExtraTrades))
		if p.StoredRunID != p.ReplayedRunID {
			fmt.Fprintf(w, "         run id %s != replayed %s\n", p.StoredRunID, p.ReplayedRunID)
		}
		if p.InvariantError != "" {
			fmt.Fprintf(w, "         invariant: %s\n", p.InvariantError)
		}
		if !verbose {
			continue
		}
		for _, id := range p.MissingTrades {
			fmt.Fprintf(w, "         missing %s\n", id)
		}
		for _, id := range p.ExtraTrades {
			fmt.Fprintf(w, "         extra %s\n", id)
		}
		for _, r := range p.Results {
			if r.Match {
				continue
			}
			for _, d := range r.Divergences {
				fmt.Fprintf(w, "         %s %s\n", r.TradeID, d)
			}
		}
	}
}
