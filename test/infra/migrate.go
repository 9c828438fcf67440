package infra

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoMigrations is returned when the migrations folder is missing or holds
// no .sql files.
var ErrNoMigrations = errors.New("infra: no migrations found")

const createLedgerSQL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// Migration is one SQL file from the migrations folder.
type Migration struct {
	Name string
	SQL  string
}

// MigrationsDir resolves the repository's migrations folder from this
// source file, so tests work from any package directory.
func MigrationsDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

// LoadMigrations reads the .sql files in dir ordered by file name.
func LoadMigrations(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoMigrations, dir)
		}
		return nil, fmt.Errorf("infra: read migrations %s: %w", dir, err)
	}

	var migrations []Migration
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("infra: read %s: %w", e.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		migrations = append(migrations, Migration{Name: e.Name(), SQL: string(data)})
	}
	if len(migrations) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMigrations, dir)
	}

	slices.SortFunc(migrations, func(a, b Migration) int { return strings.Compare(a.Name, b.Name) })
	return migrations, nil
}

// ApplyMigrations connects to dsn and brings the schema up to date. Shared
// databases (isolate true) get a throwaway schema that Database.Close drops.
func ApplyMigrations(ctx context.Context, dsn string, isolate bool) (*Database, error) {
	migrations, err := LoadMigrations(MigrationsDir())
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("infra: parse pool config: %w", err)
	}

	teardown := func(context.Context) error { return nil }
	if isolate {
		schema := fmt.Sprintf("propertyhub_run_%d", time.Now().UnixNano())
		if teardown, err = isolateSchema(ctx, dsn, schema, cfg); err != nil {
			return nil, err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		_ = teardown(ctx)
		return nil, fmt.Errorf("infra: connect pool: %w", err)
	}

	applied, err := migrate(ctx, pool, migrations)
	if err != nil {
		pool.Close()
		_ = teardown(ctx)
		return nil, err
	}

	return &Database{Pool: pool, DSN: dsn, Applied: applied, teardown: teardown}, nil
}

// isolateSchema creates schema and points every pooled connection at it.
func isolateSchema(ctx context.Context, dsn, schema string, cfg *pgxpool.Config) (func(context.Context) error, error) {
	ident := pgx.Identifier{schema}.Sanitize()

	if err := execOnce(ctx, dsn, "CREATE SCHEMA "+ident); err != nil {
		return nil, fmt.Errorf("infra: create schema %s: %w", schema, err)
	}

	setPath := "SET search_path TO " + ident
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, setPath)
		return err
	}

	return func(ctx context.Context) error {
		return execOnce(ctx, dsn, "DROP SCHEMA IF EXISTS "+ident+" CASCADE")
	}, nil
}

func execOnce(ctx context.Context, dsn, sql string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, sql)
	return err
}

// migrate applies the migrations not yet in schema_migrations, each in its
// own transaction together with its ledger row, and returns their names.
func migrate(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) ([]string, error) {
	if _, err := pool.Exec(ctx, createLedgerSQL); err != nil {
		return nil, fmt.Errorf("infra: create migration ledger: %w", err)
	}

	done, err := appliedMigrations(ctx, pool)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range pending(migrations, done) {
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (name) VALUES ($1)", m.Name)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("infra: apply %s: %w", m.Name, err)
		}
		applied = append(applied, m.Name)
	}
	return applied, nil
}

func appliedMigrations(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT name FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("infra: read migration ledger: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("infra: read migration ledger: %w", err)
	}

	done := make(map[string]bool, len(names))
	for _, n := range names {
		done[n] = true
	}
	return done, nil
}

func pending(migrations []Migration, done map[string]bool) []Migration {
	var out []Migration
	for _, m := range migrations {
		if !done[m.Name] {
			out = append(out, m)
		}
	}
	return out
}
