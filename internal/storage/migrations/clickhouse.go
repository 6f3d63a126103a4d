package migrations

import (
	"context"
	"fmt"

	chstore "rotation-engine/internal/storage/clickhouse"
)

const chLedger = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    UInt32,
    name       String,
    applied_at DateTime DEFAULT now()
) ENGINE = MergeTree ORDER BY version`

// RunClickhouseMigrations creates the DSN's database when missing and
// applies pending embedded migrations. ClickHouse has no DDL transactions,
// so a failed file is retried from its first statement on the next run;
// every statement uses IF NOT EXISTS.
// Returns a connection to the migrated database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	all, err := Clickhouse()
	if err != nil {
		return nil, err
	}
	if err := chstore.EnsureDatabase(ctx, dsn); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := chApply(ctx, conn, all); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func chApply(ctx context.Context, conn *chstore.Conn, all []Migration) error {
	if err := conn.Exec(ctx, chLedger); err != nil {
		return fmt.Errorf("create clickhouse migration ledger: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read clickhouse migration ledger: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var v uint32
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("read clickhouse migration ledger: %w", err)
		}
		applied[int(v)] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read clickhouse migration ledger: %w", err)
	}

	for _, m := range pending(all, applied) {
		for _, stmt := range m.Statements {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply clickhouse migration %s: %w", m.Name, err)
			}
		}
		if err := conn.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, uint32(m.Version), m.Name); err != nil {
			return fmt.Errorf("record clickhouse migration %s: %w", m.Name, err)
		}
	}
	return nil
}
