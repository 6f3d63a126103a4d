// Package config loads the YAML run configuration of a backtest.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"rotation-engine/internal/dates"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/strategy"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Data sources
const (
	SourceStore     = "store"     // market rows already in the market store
	SourceCSV       = "csv"       // load a market CSV into the store
	SourceSynthetic = "synthetic" // generate deterministic fixtures
)

// Storage backends
const (
	BackendMemory = "memory"
	BackendSQL    = "sql" // ClickHouse market data, Postgres results
)

// Environment overrides
const (
	EnvPostgresDSN   = "ROTATION_POSTGRES_DSN"
	EnvClickhouseDSN = "ROTATION_CLICKHOUSE_DSN"
	EnvLogLevel      = "ROTATION_LOG_LEVEL"
	EnvParallelism   = "ROTATION_PARALLELISM"
)

// Config is the complete run configuration.
type Config struct {
	Symbol      string           `yaml:"symbol"`
	Start       dates.Date       `yaml:"start"`
	End         dates.Date       `yaml:"end"`
	Parallelism int              `yaml:"parallelism"` // 0 = one goroutine per profile
	Data        DataConfig       `yaml:"data"`
	Simulation  SimulationConfig `yaml:"simulation"`
	Profiles    []ProfileConfig  `yaml:"profiles"`
	Storage     StorageConfig    `yaml:"storage"`
	Output      OutputConfig     `yaml:"output"`
	Log         LogConfig        `yaml:"log"`
}

// DataConfig selects where market rows come from.
type DataConfig struct {
	Source    string          `yaml:"source"`
	MarketCSV string          `yaml:"market_csv"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
}

// SyntheticConfig parameterizes generated fixtures.
type SyntheticConfig struct {
	Days       int     `yaml:"days"` // trading days
	StartPrice float64 `yaml:"start_price"`
	Seed       int64   `yaml:"seed"`
	Quotes     bool    `yaml:"quotes"` // also generate a chain around spot
}

// SimulationConfig mirrors domain.SimulationConfig.
type SimulationConfig struct {
	DeltaHedgeEnabled bool       `yaml:"delta_hedge_enabled"`
	RollDTEThreshold  int        `yaml:"roll_dte_threshold"`
	MaxDaysInTrade    int        `yaml:"max_days_in_trade"`
	AllowToyPricing   bool       `yaml:"allow_toy_pricing"`
	ToyVolatility     float64    `yaml:"toy_volatility"`
	Exit              ExitConfig `yaml:"exit"`
}

// ExitConfig holds optional P&L fraction thresholds.
type ExitConfig struct {
	TP1     *float64 `yaml:"tp1"`
	TP2     *float64 `yaml:"tp2"`
	MaxLoss *float64 `yaml:"max_loss"`
}

// ProfileConfig mirrors domain.ProfileConfig.
type ProfileConfig struct {
	Name          string      `yaml:"name"`
	Structure     string      `yaml:"structure"`
	TargetDTE     int         `yaml:"target_dte"`
	StrikeOffset  float64     `yaml:"strike_offset"`
	StrikeStep    float64     `yaml:"strike_step"`
	Quantity      int         `yaml:"quantity"`
	Entry         *RuleConfig `yaml:"entry"`
	ConditionExit *RuleConfig `yaml:"condition_exit"`
}

// RuleConfig mirrors domain.RuleConfig.
type RuleConfig struct {
	Column    string   `yaml:"column"`
	Op        string   `yaml:"op"`
	Threshold float64  `yaml:"threshold"`
	Regimes   []string `yaml:"regimes"`
}

// StorageConfig selects the store backends.
type StorageConfig struct {
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	Migrate       bool   `yaml:"migrate"` // apply embedded migrations on start
}

// OutputConfig controls written files.
type OutputConfig struct {
	Dir             string `yaml:"dir"`
	Artifact        string `yaml:"artifact"`
	IncludeDaily    bool   `yaml:"include_daily"`
	MetricsTextfile string `yaml:"metrics_textfile"` // empty disables
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads path, applies environment overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(bytes.NewReader(data), os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document. Unknown keys are rejected.
// getenv may be nil to skip environment overrides.
func Parse(r io.Reader, getenv func(string) string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if getenv != nil {
		if err := cfg.applyEnvOverrides(getenv); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides(getenv func(string) string) error {
	if dsn := getenv(EnvPostgresDSN); dsn != "" {
		c.Storage.PostgresDSN = dsn
	}
	if dsn := getenv(EnvClickhouseDSN); dsn != "" {
		c.Storage.ClickhouseDSN = dsn
	}
	if level := getenv(EnvLogLevel); level != "" {
		c.Log.Level = level
	}
	if p := getenv(EnvParallelism); p != "" {
		val, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvParallelism, p, err)
		}
		c.Parallelism = val
	}
	return nil
}

// Defaults
const (
	DefaultArtifact       = "backtest_results.json"
	DefaultOutputDir      = "out"
	DefaultSyntheticDays  = 252
	DefaultSyntheticPrice = 450.0
)

func (c *Config) applyDefaults() {
	if c.Data.Source == "" {
		c.Data.Source = SourceSynthetic
	}
	if c.Data.Synthetic.Days == 0 {
		c.Data.Synthetic.Days = DefaultSyntheticDays
	}
	if c.Data.Synthetic.StartPrice == 0 {
		c.Data.Synthetic.StartPrice = DefaultSyntheticPrice
	}
	if c.Data.Synthetic.Seed == 0 {
		c.Data.Synthetic.Seed = 1
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}
	if c.Output.Dir == "" {
		c.Output.Dir = DefaultOutputDir
	}
	if c.Output.Artifact == "" {
		c.Output.Artifact = DefaultArtifact
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate ensures the configuration is complete and consistent.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalid)
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalid)
	}
	if c.End.Before(c.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalid, c.End, c.Start)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism must be >= 0, got %d", ErrInvalid, c.Parallelism)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQL:
		if c.Storage.PostgresDSN == "" || c.Storage.ClickhouseDSN == "" {
			return fmt.Errorf("%w: sql backend requires postgres_dsn and clickhouse_dsn", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalid, c.Storage.Backend)
	}

	switch c.Data.Source {
	case SourceSynthetic:
		if c.Data.Synthetic.Days < 0 || c.Data.Synthetic.StartPrice < 0 {
			return fmt.Errorf("%w: synthetic days and start_price must be positive", ErrInvalid)
		}
	case SourceCSV:
		if c.Data.MarketCSV == "" {
			return fmt.Errorf("%w: csv source requires market_csv", ErrInvalid)
		}
	case SourceStore:
		if c.Storage.Backend != BackendSQL {
			return fmt.Errorf("%w: store source requires the sql backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown data source %q", ErrInvalid, c.Data.Source)
	}

	if err := c.ToSimulationConfig().Validate(); err != nil {
		return fmt.Errorf("%w: simulation: %w", ErrInvalid, err)
	}

	if len(c.Profiles) == 0 {
		return fmt.Errorf("%w: at least one profile is required", ErrInvalid)
	}
	seen := make(map[string]struct{}, len(c.Profiles))
	for _, p := range c.Profiles {
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: duplicate profile %q", ErrInvalid, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	if _, err := c.BuildProfiles(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ToSimulationConfig converts the simulation block.
func (c *Config) ToSimulationConfig() domain.SimulationConfig {
	s := c.Simulation
	return domain.SimulationConfig{
		DeltaHedgeEnabled: s.DeltaHedgeEnabled,
		RollDTEThreshold:  s.RollDTEThreshold,
		MaxDaysInTrade:    s.MaxDaysInTrade,
		AllowToyPricing:   s.AllowToyPricing,
		ToyVolatility:     s.ToyVolatility,
		Exit: domain.ExitRules{
			ProfitTargetTP1: s.Exit.TP1,
			ProfitTargetTP2: s.Exit.TP2,
			MaxLoss:         s.Exit.MaxLoss,
		},
	}
}

// BuildProfiles compiles every configured profile in file order.
func (c *Config) BuildProfiles() ([]strategy.Profile, error) {
	out := make([]strategy.Profile, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		profile, err := strategy.FromConfig(p.toDomain())
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.Name, err)
		}
		out = append(out, profile)
	}
	return out, nil
}

func (p ProfileConfig) toDomain() domain.ProfileConfig {
	return domain.ProfileConfig{
		Name:          p.Name,
		Structure:     p.Structure,
		TargetDTE:     p.TargetDTE,
		StrikeOffset:  p.StrikeOffset,
		StrikeStep:    p.StrikeStep,
		Quantity:      p.Quantity,
		Entry:         p.Entry.toDomain(),
		ConditionExit: p.ConditionExit.toDomain(),
	}
}

func (r *RuleConfig) toDomain() *domain.RuleConfig {
	if r == nil {
		return nil
	}
	return &domain.RuleConfig{
		Column:    r.Column,
		Op:        r.Op,
		Threshold: r.Threshold,
		Regimes:   append([]string(nil), r.Regimes...),
	}
}
