package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestShippedMigrationsArePaired(t *testing.T) {
	migrations, err := LoadMigrations(filepath.Join("..", "..", "db", "migrations"))
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("no migrations discovered")
	}
	if migrations[0].Version != "0001_init.up.sql" {
		t.Fatalf("first migration = %q", migrations[0].Version)
	}
	for _, m := range migrations {
		if !strings.HasSuffix(m.Down, ".down.sql") {
			t.Fatalf("migration %s has down file %q", m.Number, m.Down)
		}
	}
}

func writeMigrations(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadMigrationsOrdersByNumber(t *testing.T) {
	dir := writeMigrations(t,
		"0002_notes.up.sql", "0002_notes.down.sql",
		"0001_init.up.sql", "0001_init.down.sql",
		"README.md",
	)
	migrations, err := LoadMigrations(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(migrations) != 2 || migrations[0].Number != "0001" || migrations[1].Number != "0002" {
		t.Fatalf("unexpected order: %+v", migrations)
	}
}

func TestLoadMigrationsRejectsUnpairedOrDuplicate(t *testing.T) {
	cases := map[string][]string{
		"missing down": {"0001_init.up.sql"},
		"duplicate up": {"0001_init.up.sql", "0001_other.up.sql", "0001_init.down.sql"},
	}
	for name, files := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadMigrations(writeMigrations(t, files...)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
