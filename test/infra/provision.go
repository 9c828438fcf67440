package infra

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Database is a migrated Postgres instance for one test run.
type Database struct {
	Pool *pgxpool.Pool
	DSN  string
	// Applied lists the migrations this run executed, in order.
	Applied []string

	container *PGContainer
	teardown  func(context.Context) error
}

// Provision returns a migrated database. It prefers overrideDSN, then
// PROPERTYHUB_TEST_PG_DSN, then a docker container, then a local server.
// Shared databases get an isolated schema that is dropped on Close.
func Provision(ctx context.Context, overrideDSN string) (*Database, error) {
	var (
		pgC    = &PGContainer{}
		dsn    = overrideDSN
		shared = true
		err    error
	)

	if dsn == "" {
		dsn = os.Getenv(DSNEnv)
	}
	if dsn == "" {
		shared = false
		if DockerAvailable(ctx) {
			pgC, dsn, err = StartPostgres16(ctx, "")
			if err != nil {
				return nil, fmt.Errorf("start postgres: %w", err)
			}
		} else {
			dsn, err = InitLocalDatabase(ctx)
			if err != nil {
				return nil, fmt.Errorf("init local database: %w", err)
			}
		}
	}

	database, err := ApplyMigrations(ctx, dsn, shared)
	if err != nil {
		_ = pgC.Terminate(context.Background())
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	database.container = pgC

	return database, nil
}

// Close releases the pool, drops the isolated schema and stops the container.
func (d *Database) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.Pool.Close()
	if err := d.teardown(ctx); err != nil {
		_ = d.container.Terminate(ctx)
		return err
	}
	return d.container.Terminate(ctx)
}
