package schema

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "schema.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_SQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	if err := Migrate(ctx, db, "sqlite"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// idempotent
	if err := Migrate(ctx, db, "sqlite"); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	v, err := Version(ctx, db, "sqlite")
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != 2 {
		t.Fatalf("version = %d, want 2", v)
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO article (id, slug, status, applied_upgrades) VALUES ('a', 'a-slug', 'live', '["x"]')`); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}
	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM article WHERE EXISTS (SELECT 1 FROM json_each(article.applied_upgrades) WHERE value = 'x')`).Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestMigrate_UnsupportedDriver(t *testing.T) {
	db := openSQLite(t)
	if err := Migrate(context.Background(), db, "mysql"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
