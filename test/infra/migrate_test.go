package infra

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func migrationNames(ms []Migration) []string {
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Name
	}
	return names
}

func TestLoadMigrations_OrderAndFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "0002_listings.sql", "CREATE TABLE b (id INT);")
	writeFile(t, dir, "0001_accounts.sql", "CREATE TABLE a (id INT);")
	writeFile(t, dir, "0010_indexes.sql", "CREATE INDEX c ON b (id);")
	writeFile(t, dir, "README.md", "not sql")
	writeFile(t, dir, "0003_blank.sql", "  \n\t")
	if err := os.Mkdir(filepath.Join(dir, "0004_nested.sql"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := LoadMigrations(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := []string{"0001_accounts.sql", "0002_listings.sql", "0010_indexes.sql"}
	if names := migrationNames(got); !slices.Equal(names, want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	if got[0].SQL != "CREATE TABLE a (id INT);" {
		t.Fatalf("unexpected sql for %s: %q", got[0].Name, got[0].SQL)
	}
}

func TestLoadMigrations_MissingOrEmpty(t *testing.T) {
	if _, err := LoadMigrations(filepath.Join(t.TempDir(), "absent")); !errors.Is(err, ErrNoMigrations) {
		t.Fatalf("missing dir: expected ErrNoMigrations, got %v", err)
	}

	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "nothing here")
	if _, err := LoadMigrations(dir); !errors.Is(err, ErrNoMigrations) {
		t.Fatalf("no sql files: expected ErrNoMigrations, got %v", err)
	}
}

func TestLoadMigrations_RepositoryFolder(t *testing.T) {
	got, err := LoadMigrations(MigrationsDir())
	if err != nil {
		t.Fatalf("load repository migrations: %v", err)
	}
	if got[0].Name != "0001_accounts.sql" {
		t.Fatalf("expected 0001_accounts.sql first, got %v", migrationNames(got))
	}
}

func TestPending(t *testing.T) {
	ms := []Migration{{Name: "0001_a.sql"}, {Name: "0002_b.sql"}, {Name: "0003_c.sql"}}

	got := pending(ms, map[string]bool{"0001_a.sql": true, "0003_c.sql": true})
	if names := migrationNames(got); !slices.Equal(names, []string{"0002_b.sql"}) {
		t.Fatalf("expected only 0002_b.sql pending, got %v", names)
	}
	if got := pending(ms, nil); len(got) != len(ms) {
		t.Fatalf("expected all pending on empty ledger, got %d", len(got))
	}
}

func TestApplyMigrations_RecordsLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	database, err := Provision(ctx, "")
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	defer func() {
		if err := database.Close(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	migrations, err := LoadMigrations(MigrationsDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !slices.Equal(database.Applied, migrationNames(migrations)) {
		t.Fatalf("expected applied %v, got %v", migrationNames(migrations), database.Applied)
	}

	var recorded int
	if err := database.Pool.QueryRow(ctx, "SELECT count(*) FROM schema_migrations").Scan(&recorded); err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if recorded != len(migrations) {
		t.Fatalf("expected %d ledger rows, got %d", len(migrations), recorded)
	}

	again, err := migrate(ctx, database.Pool, migrations)
	if err != nil {
		t.Fatalf("re-run: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected nothing to apply on re-run, got %v", again)
	}
}
