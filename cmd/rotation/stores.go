package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"rotation-engine/internal/config"
	"rotation-engine/internal/domain"
	"rotation-engine/internal/normalization"
	"rotation-engine/internal/pipeline"
	"rotation-engine/internal/storage"
	chstore "rotation-engine/internal/storage/clickhouse"
	"rotation-engine/internal/storage/memory"
	"rotation-engine/internal/storage/migrations"
	pgstore "rotation-engine/internal/storage/postgres"
	"rotation-engine/internal/strategy"
)

// stores holds the storage implementations of one backend.
type stores struct {
	market    storage.MarketDataStore
	quotes    storage.OptionQuoteStore
	trades    storage.TradeStore
	summaries storage.ProfileSummaryStore
	closers   []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the configured backend, applying migrations first
// when cfg.Storage.Migrate is set.
func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	if cfg.Storage.Backend == config.BackendMemory {
		return &stores{
			market:    memory.NewMarketDataStore(),
			quotes:    memory.NewOptionQuoteStore(),
			trades:    memory.NewTradeStore(),
			summaries: memory.NewProfileSummaryStore(),
		}, nil
	}

	s := &stores{}

	// PostgreSQL for trades and summaries
	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	s.closers = append(s.closers, pool.Close)
	if cfg.Storage.Migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Info().Msg("postgres migrations applied")
	}
	s.trades = pgstore.NewTradeStore(pool)
	s.summaries = pgstore.NewProfileSummaryStore(pool)

	// ClickHouse for market rows and option quotes
	var conn *chstore.Conn
	if cfg.Storage.Migrate {
		conn, err = migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err == nil {
			logger.Info().Msg("clickhouse migrations applied")
		}
	} else {
		conn, err = chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
	}
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	s.closers = append(s.closers, func() { _ = conn.Close() })
	s.market = chstore.NewMarketDataStore(conn)
	s.quotes = chstore.NewOptionQuoteStore(conn)

	return s, nil
}

// loadMarketData fills the market store from the configured data source.
// The store source needs no loading.
func loadMarketData(ctx context.Context, cfg *config.Config, s *stores, profiles []strategy.Profile, logger zerolog.Logger) error {
	switch cfg.Data.Source {
	case config.SourceSynthetic:
		syn := cfg.Data.Synthetic
		rows := pipeline.SyntheticMarketRows(pipeline.SyntheticOptions{
			Symbol:     cfg.Symbol,
			Start:      cfg.Start,
			Days:       syn.Days,
			StartPrice: syn.StartPrice,
			Seed:       syn.Seed,
		})
		var quotes []*domain.OptionQuote
		if syn.Quotes {
			q, err := pipeline.SyntheticQuotes(rows, profiles, cfg.ToSimulationConfig().EffectiveToyVolatility(), syn.Seed)
			if err != nil {
				return err
			}
			quotes = q
		}
		logger.Info().Int("rows", len(rows)).Int("quotes", len(quotes)).Msg("synthetic market data generated")
		return pipeline.LoadFixtures(ctx, s.market, s.quotes, rows, quotes)

	case config.SourceCSV:
		f, err := os.Open(cfg.Data.MarketCSV)
		if err != nil {
			return fmt.Errorf("open market csv: %w", err)
		}
		defer f.Close()

		rows, err := normalization.ReadCSV(f, cfg.Symbol)
		if err != nil {
			return fmt.Errorf("read market csv %s: %w", cfg.Data.MarketCSV, err)
		}
		logger.Info().Str("file", cfg.Data.MarketCSV).Int("rows", len(rows)).Msg("market csv loaded")
		return pipeline.LoadFixtures(ctx, s.market, nil, rows, nil)
	}
	return nil
}
