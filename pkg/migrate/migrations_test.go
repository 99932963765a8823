package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/gostly/gostly-backend/pkg/migrate"
)

func TestMigrationsAreValid(t *testing.T) {
	if err := migrate.Validate(os.DirFS("migrations")); err != nil {
		t.Fatalf("validate migrations on disk: %v", err)
	}
	if err := migrate.Validate(migrate.Migrations()); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	embedded, err := fs.Glob(migrate.Migrations(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(onDisk) == 0 || len(onDisk) != len(embedded) {
		t.Fatalf("expected embedded set to mirror disk, got %d vs %d", len(embedded), len(onDisk))
	}
}

func TestUsageMigrationKeysOnOwnerAndMonth(t *testing.T) {
	content := readMigration(t, "*_create_usage_monthly.sql")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS usage_monthly",
		"PRIMARY KEY (user_id, month)",
		"CHECK (used >= 0)",
		"DROP TABLE IF EXISTS usage_monthly",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPropertiesMigrationEnforcesUpperCaseCode(t *testing.T) {
	content := readMigration(t, "*_create_properties.sql")
	for _, sub := range []string{
		"CONSTRAINT ux_properties_code UNIQUE (code)",
		"CHECK (code = upper(code))",
		"languages text NOT NULL DEFAULT 'auto'",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.Validate(os.DirFS(dir)); err == nil {
		t.Fatal("expected invalid filename to fail validation")
	}
}

func TestValidateRejectsUnbalancedStatements(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	if err := os.WriteFile(filepath.Join(dir, "20250101000000_init.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.Validate(os.DirFS(dir)); err == nil {
		t.Fatal("expected unbalanced statement markers to fail validation")
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
	path, err := migrate.CreateSQLMigration(dir, "Add Handoff Index!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20260402103000_add_handoff_index.sql" {
		t.Fatalf("unexpected path %s", path)
	}
	if _, err := migrate.CreateSQLMigration(dir, "add handoff index", now); err == nil {
		t.Fatal("expected existing migration file to be refused")
	}
	if err := migrate.Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestDialectFor(t *testing.T) {
	if got := migrate.DialectFor("sqlite"); got != goose.DialectSQLite3 {
		t.Fatalf("expected sqlite3, got %s", got)
	}
	if got := migrate.DialectFor(""); got != goose.DialectPostgres {
		t.Fatalf("expected postgres, got %s", got)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
