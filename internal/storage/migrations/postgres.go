package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rotation-engine/internal/storage/postgres"
)

const pgLedger = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    INTEGER     PRIMARY KEY,
    name       TEXT        NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunPostgresMigrations applies pending embedded migrations. Each file runs
// in its own transaction together with its ledger row.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	all, err := Postgres()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, pgLedger); err != nil {
		return fmt.Errorf("create postgres migration ledger: %w", err)
	}

	applied, err := pgApplied(ctx, pool)
	if err != nil {
		return err
	}

	for _, m := range pending(all, applied) {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			for _, stmt := range m.Statements {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply postgres migration %s: %w", m.Name, err)
		}
	}
	return nil
}

func pgApplied(ctx context.Context, pool *postgres.Pool) (map[int]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read postgres migration ledger: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, fmt.Errorf("read postgres migration ledger: %w", err)
	}

	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[int(v)] = true
	}
	return applied, nil
}
