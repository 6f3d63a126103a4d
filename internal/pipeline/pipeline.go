// Package pipeline runs a checked backtest end to end and writes its
// output files.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rotation-engine/internal/artifact"
	"rotation-engine/internal/backtest"
	"rotation-engine/internal/observability"
	"rotation-engine/internal/reporting"
)

// ErrInsufficientData is returned when a sufficiency check fails.
var ErrInsufficientData = errors.New("insufficient market data")

// Output file names.
const (
	DefaultArtifactName = "backtest_results.json"
	ReportFile          = "REPORT.md"
	SufficiencyFile     = "DATA_SUFFICIENCY.md"
	TradesFile          = "trades.csv"
	ProfilesFile        = "profiles.csv"
)

// Pipeline orchestrates sufficiency check, backtest and output files.
type Pipeline struct {
	runner          *backtest.Runner
	sufficiency     *SufficiencyChecker
	outputDir       string
	artifactName    string
	metrics         *observability.Metrics
	metricsTextfile string
	logger          zerolog.Logger
	clock           func() time.Time
}

// Outcome is what one pipeline run produced.
type Outcome struct {
	Result      *backtest.Result // nil when sufficiency failed
	Sufficiency *SufficiencyResult
	Report      *reporting.Report
	Files       []string // written paths, in write order
}

// New creates a new pipeline writing into outputDir.
func New(runner *backtest.Runner, outputDir string) *Pipeline {
	return &Pipeline{
		runner:       runner,
		outputDir:    outputDir,
		artifactName: DefaultArtifactName,
		logger:       zerolog.Nop(),
		clock:        func() time.Time { return time.Now().UTC() },
	}
}

// WithSufficiencyChecker gates the backtest on data sufficiency.
func (p *Pipeline) WithSufficiencyChecker(c *SufficiencyChecker) *Pipeline {
	p.sufficiency = c
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// WithLogger sets the logger.
func (p *Pipeline) WithLogger(logger zerolog.Logger) *Pipeline {
	p.logger = logger
	return p
}

// WithArtifactName sets the artifact file name inside the output directory.
func (p *Pipeline) WithArtifactName(name string) *Pipeline {
	if name != "" {
		p.artifactName = name
	}
	return p
}

// WithMetricsTextfile writes m to path after every run.
func (p *Pipeline) WithMetricsTextfile(m *observability.Metrics, path string) *Pipeline {
	p.metrics = m
	p.metricsTextfile = path
	return p
}

// Run executes the pipeline and writes output files:
//   - <artifact>.json
//   - REPORT.md
//   - trades.csv, profiles.csv
//   - daily_<profile>.csv when req.IncludeDaily is set
//
// A failed sufficiency check writes DATA_SUFFICIENCY.md and returns
// ErrInsufficientData without running the backtest.
func (p *Pipeline) Run(ctx context.Context, req backtest.Request) (*Outcome, error) {
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, err
	}
	out := &Outcome{}

	// 1. Sufficiency check
	if p.sufficiency != nil {
		suff, err := p.sufficiency.Check(ctx, req.Symbol, req.From, req.To)
		if err != nil {
			return nil, err
		}
		out.Sufficiency = suff
		for _, c := range suff.Checks {
			p.logger.Debug().Str("check", c.Name).Str("actual", c.Actual).Bool("pass", c.Pass).Msg("sufficiency check")
		}
		if !suff.AllPass {
			if err := p.write(out, SufficiencyFile, []byte(p.renderSufficiency(suff))); err != nil {
				return nil, err
			}
			p.logger.Error().Strs("errors", suff.Errors).Msg("data sufficiency checks failed")
			return out, ErrInsufficientData
		}
	}

	// 2. Backtest
	res, err := p.runner.Run(ctx, req)
	if err != nil {
		_ = p.flushMetrics()
		return nil, err
	}
	out.Result = res

	// 3. Artifact
	var buf bytes.Buffer
	if err := artifact.Encode(&buf, res.Document); err != nil {
		return nil, err
	}
	if err := p.write(out, p.artifactName, buf.Bytes()); err != nil {
		return nil, err
	}

	// 4. Report and CSVs
	report, err := reporting.FromDocument(res.Document, p.clock())
	if err != nil {
		return nil, err
	}
	out.Report = report

	md := reporting.RenderMarkdown(report)
	if out.Sufficiency != nil {
		md += "\n" + sufficiencySection(out.Sufficiency)
	}
	if err := p.write(out, ReportFile, []byte(md)); err != nil {
		return nil, err
	}
	if err := p.write(out, TradesFile, []byte(reporting.RenderTradeSummaryCSV(report.Trades))); err != nil {
		return nil, err
	}
	if err := p.write(out, ProfilesFile, []byte(reporting.RenderProfileCSV(report.ProfileMetrics))); err != nil {
		return nil, err
	}
	if req.IncludeDaily {
		for _, run := range res.Runs {
			name := "daily_" + run.Profile + ".csv"
			if err := p.write(out, name, []byte(reporting.RenderDailyResultsCSV(run.Result.DailyResults))); err != nil {
				return nil, err
			}
		}
	}

	// 5. Metrics
	if err := p.flushMetrics(); err != nil {
		return nil, err
	}

	p.logger.Info().Str("dir", p.outputDir).Int("files", len(out.Files)).Msg("pipeline finished")
	return out, nil
}

func (p *Pipeline) write(out *Outcome, name string, data []byte) error {
	path := filepath.Join(p.outputDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	out.Files = append(out.Files, path)
	return nil
}

func (p *Pipeline) flushMetrics() error {
	if p.metrics == nil || p.metricsTextfile == "" {
		return nil
	}
	return p.metrics.WriteTextfile(p.metricsTextfile)
}

func (p *Pipeline) renderSufficiency(suff *SufficiencyResult) string {
	var sb strings.Builder
	sb.WriteString("# Data Sufficiency Report\n\n")
	sb.WriteString("Generated at: " + p.clock().Format("2006-01-02 15:04:05 UTC") + "\n\n")
	sb.WriteString("Data sufficiency checks failed. The backtest was not run.\n\n")
	sb.WriteString(sufficiencySection(suff))
	sb.WriteString("### Required Actions\n\n")
	sb.WriteString("1. Load a longer or gap-free market range\n")
	sb.WriteString("2. Fix the listed integrity errors\n")
	sb.WriteString("3. Re-run the backtest\n")
	return sb.String()
}

func sufficiencySection(suff *SufficiencyResult) string {
	var sb strings.Builder
	sb.WriteString("## Data Sufficiency\n\n")
	sb.WriteString("| Check | Threshold | Actual | Status |\n")
	sb.WriteString("|-------|-----------|--------|--------|\n")
	for _, check := range suff.Checks {
		status := "PASS"
		if !check.Pass {
			status = "FAIL"
		}
		sb.WriteString("| " + check.Name + " | " + check.Threshold + " | " + check.Actual + " | " + status + " |\n")
	}
	sb.WriteString("\n")

	if len(suff.Errors) > 0 {
		sb.WriteString("### Integrity Errors\n\n")
		for _, e := range suff.Errors {
			sb.WriteString("- " + e + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
