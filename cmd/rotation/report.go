package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"rotation-engine/internal/artifact"
	"rotation-engine/internal/config"
	"rotation-engine/internal/reporting"
)

// Report output formats.
const (
	formatMarkdown    = "markdown"
	formatTradesCSV   = "trades-csv"
	formatProfilesCSV = "profiles-csv"
)

var errReportSource = errors.New("exactly one of --run-id or --artifact is required")

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a report from a stored run or an artifact file",
		RunE:  runReport,
	}
	addReportFlags(cmd.Flags())
	return cmd
}

func addReportFlags(fs *pflag.FlagSet) {
	fs.String("run-id", "", "Stored run id (sql backend)")
	fs.String("artifact", "", "Artifact JSON file")
	fs.String("format", formatMarkdown, "Output format (markdown|trades-csv|profiles-csv)")
	fs.String("output", "", "Output file (default stdout)")
}

func runReport(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	runID, _ := flags.GetString("run-id")
	artifactPath, _ := flags.GetString("artifact")
	format, _ := flags.GetString("format")
	output, _ := flags.GetString("output")

	if (runID == "") == (artifactPath == "") {
		return errReportSource
	}

	var (
		report *reporting.Report
		err    error
	)
	if artifactPath != "" {
		report, err = reportFromArtifact(artifactPath)
	} else {
		report, err = reportFromStore(cmd, runID)
	}
	if err != nil {
		return err
	}

	var text string
	switch format {
	case formatMarkdown:
		text = reporting.RenderMarkdown(report)
	case formatTradesCSV:
		text = reporting.RenderTradeSummaryCSV(report.Trades)
	case formatProfilesCSV:
		text = reporting.RenderProfileCSV(report.ProfileMetrics)
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	if output == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	}
	if err := os.WriteFile(output, []byte(text), 0644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	return nil
}

func reportFromArtifact(path string) (*reporting.Report, error) {
	doc, err := readArtifact(path)
	if err != nil {
		return nil, err
	}
	return reporting.FromDocument(doc, time.Now().UTC())
}

func reportFromStore(cmd *cobra.Command, runID string) (*reporting.Report, error) {
	a, err := loadApp(cmd)
	if err != nil {
		return nil, err
	}
	if a.cfg.Storage.Backend != config.BackendSQL {
		return nil, fmt.Errorf("%w: --run-id needs the %s backend", config.ErrInvalid, config.BackendSQL)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	s, err := openStores(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return reporting.NewGenerator(s.trades, s.summaries).Generate(ctx, runID)
}

func readArtifact(path string) (artifact.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	doc, err := artifact.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return doc, nil
}
