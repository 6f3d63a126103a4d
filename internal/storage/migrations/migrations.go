// Package migrations applies the embedded Postgres and ClickHouse schemas.
// Each backend records applied versions in a schema_migrations table, so a
// rerun only applies files it has not seen.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed clickhouse/*.sql
var clickhouseFS embed.FS

// ErrBadMigration is returned for a migration file that cannot be applied.
var ErrBadMigration = errors.New("bad migration file")

// Migration is one numbered schema file, e.g. 002_option_quotes.sql.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// Load reads every .sql file in dir of fsys, ordered by version.
// File names must start with a unique positive version number.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations %s: %w", dir, err)
	}

	var out []Migration
	seen := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		version, err := parseVersion(e.Name())
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("%w: %s and %s share version %d", ErrBadMigration, prev, e.Name(), version)
		}
		seen[version] = e.Name()

		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		stmts, err := splitStatements(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if len(stmts) == 0 {
			continue
		}
		out = append(out, Migration{Version: version, Name: e.Name(), Statements: stmts})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Postgres returns the embedded Postgres migrations.
func Postgres() ([]Migration, error) {
	return Load(postgresFS, "postgres")
}

// Clickhouse returns the embedded ClickHouse migrations.
func Clickhouse() ([]Migration, error) {
	return Load(clickhouseFS, "clickhouse")
}

// pending drops the migrations whose version is in applied.
func pending(all []Migration, applied map[int]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

func parseVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("%w: %s has no version prefix", ErrBadMigration, name)
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s has no version prefix", ErrBadMigration, name)
	}
	return v, nil
}

// splitStatements cuts a file into statements at semicolons. Full-line --
// comments are dropped. A semicolon inside a quoted literal is rejected
// because the native ClickHouse protocol runs one statement per Exec and
// this splitter does not parse literals.
func splitStatements(sql string) ([]string, error) {
	var b strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if t := strings.TrimSpace(line); t == "" || strings.HasPrefix(t, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	body := b.String()

	quoted := false
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\'':
			if quoted && i+1 < len(body) && body[i+1] == '\'' {
				i++
				continue
			}
			quoted = !quoted
		case ';':
			if quoted {
				return nil, fmt.Errorf("%w: semicolon inside a string literal", ErrBadMigration)
			}
		}
	}

	var stmts []string
	for _, part := range strings.Split(body, ";") {
		if s := strings.TrimSpace(part); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts, nil
}
