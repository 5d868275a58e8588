package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	integrations "github.com/goliatone/go-integrations"
	_ "github.com/mattn/go-sqlite3"
)

func TestSources_ReturnsPostgresAndSQLite(t *testing.T) {
	sources, err := Sources()
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range sources {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}

	if !postgresFound {
		t.Fatalf("expected postgres filesystem")
	}
	if !sqliteFound {
		t.Fatalf("expected sqlite filesystem")
	}
}

func TestSources_RejectsTreeWithoutSQLiteVariants(t *testing.T) {
	root := fstest.MapFS{
		"data/sql/migrations/00001_x.up.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00001_x.down.sql":      {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_x.md":     {Data: []byte("notes")},
		"data/sql/migrations/sqlite/README.unknown": {Data: []byte("")},
	}
	if _, err := Sources(root); err == nil {
		t.Fatalf("expected error when sqlite tree has no up migrations")
	}
}

func TestSources_RejectsUpWithoutDown(t *testing.T) {
	root := fstest.MapFS{
		"data/sql/migrations/00001_x.up.sql":          {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_x.up.sql":   {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_x.down.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := Sources(root)
	if err == nil || !strings.Contains(err.Error(), "00001_x.down.sql") {
		t.Fatalf("expected missing down migration error, got %v", err)
	}
}

func TestRegister_WithSourcesRequiresMatchingDialect(t *testing.T) {
	custom := fstest.MapFS{"00001_x.up.sql": {Data: []byte("SELECT 1;")}}
	_, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error {
		return nil
	}, WithSources(Source{Dialect: "mysql", FS: custom}))
	if err == nil {
		t.Fatalf("expected error when no source matches the selected dialects")
	}

	var got []string
	if _, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		got = append(got, dialect)
		return nil
	}, WithSources(Source{Dialect: " SQLite ", FS: custom}), WithDialects("sqlite")); err != nil {
		t.Fatalf("register custom source: %v", err)
	}
	if len(got) != 1 || got[0] != DialectSQLite {
		t.Fatalf("expected custom sqlite source registered, got %v", got)
	}
}

func TestRegister_SelectsDialects(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithDialects(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestRegister_PassesSourceLabel(t *testing.T) {
	labels := map[string]string{}
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, label string, _ fs.FS) error {
		labels[dialect] = label
		return nil
	}, WithSourceLabel("host-app"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.SourceLabel != "host-app" {
		t.Fatalf("expected source label override, got %q", reg.SourceLabel)
	}
	if labels[DialectPostgres] != "host-app" || labels[DialectSQLite] != "host-app" {
		t.Fatalf("expected label on both dialects, got %#v", labels)
	}
}

func TestRegister_RequiresRegisterFunc(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected missing register function error")
	}
}

func TestDialectForDriver(t *testing.T) {
	cases := map[string]string{
		"sqlite3":    DialectSQLite,
		"SQLite":     DialectSQLite,
		"postgres":   DialectPostgres,
		"postgresql": DialectPostgres,
		"mysql":      "",
	}
	for driver, want := range cases {
		if got := DialectForDriver(driver); got != want {
			t.Fatalf("driver %q: expected %q, got %q", driver, want, got)
		}
	}
}

func TestClientRegistrar_RequiresClient(t *testing.T) {
	if err := ClientRegistrar(DialectSQLite)(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestCoreSchemaMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := integrations.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_integrations_core_schema.up.sql",
		"data/sql/migrations/00001_integrations_core_schema.down.sql",
		"data/sql/migrations/sqlite/00001_integrations_core_schema.up.sql",
		"data/sql/migrations/sqlite/00001_integrations_core_schema.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteCoreSchemaMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-core-schema?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	sqliteMigrations, err := fs.Sub(integrations.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	ctx := context.Background()
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_integrations_core_schema.up.sql"); err != nil {
		t.Fatalf("apply up migration: %v", err)
	}

	for _, table := range []string{"integration_sync_operations", "integration_webhook_deliveries"} {
		if !tableExists(t, db, table) {
			t.Fatalf("expected table %s after up migration", table)
		}
	}

	insertAttempt := `
		INSERT INTO integration_webhook_deliveries (
			id, delivery_id, webhook, direction, attempt, status, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := db.ExecContext(ctx, insertAttempt, "a1", "dlv_1", "slack", "inbound", 1, "failed", "2026-03-01T12:00:00Z"); err != nil {
		t.Fatalf("insert first attempt: %v", err)
	}
	if _, err := db.ExecContext(ctx, insertAttempt, "a2", "dlv_1", "slack", "inbound", 1, "failed", "2026-03-01T12:00:01Z"); err == nil {
		t.Fatalf("expected unique violation for duplicate delivery attempt")
	}
	if _, err := db.ExecContext(ctx, insertAttempt, "a3", "dlv_1", "slack", "sideways", 2, "failed", "2026-03-01T12:00:02Z"); err == nil {
		t.Fatalf("expected check violation for unknown direction")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_integrations_core_schema.down.sql"); err != nil {
		t.Fatalf("apply down migration: %v", err)
	}
	for _, table := range []string{"integration_sync_operations", "integration_webhook_deliveries"} {
		if tableExists(t, db, table) {
			t.Fatalf("expected table %s to be dropped", table)
		}
	}
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var count int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		table,
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	return count == 1
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
