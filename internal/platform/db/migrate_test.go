package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"003_reports.sql": {Data: []byte("CREATE TABLE reports (id INTEGER PRIMARY KEY);")},
		"001_core.sql":    {Data: []byte("CREATE TABLE clinics (id INTEGER PRIMARY KEY);")},
		"002_forms.sql":   {Data: []byte("CREATE TABLE forms (id INTEGER PRIMARY KEY);")},
		"README.md":       {Data: []byte("not a migration")},
		"notes.sql":       {Data: []byte("-- no numeric prefix")},
		"abc_bad.sql":     {Data: []byte("-- non-numeric prefix")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, want := range []string{"001_core.sql", "002_forms.sql", "003_reports.sql"} {
		if migrations[i].Name != want || migrations[i].Version != i+1 {
			t.Errorf("migration %d = %d %s, want %d %s", i, migrations[i].Version, migrations[i].Name, i+1, want)
		}
	}
	if !strings.Contains(migrations[0].SQL, "clinics") {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"1_b.sql":   {Data: []byte("SELECT 1;")},
	}
	if _, err := NewMigrator(nil, fsys).LoadMigrations(); err == nil {
		t.Fatal("expected an error for duplicate versions")
	}
}

func TestLoadMigrations_EmptyDir(t *testing.T) {
	migrations, err := NewMigrator(nil, fstest.MapFS{}).LoadMigrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations, got %d", len(migrations))
	}
}

func TestStatusOf(t *testing.T) {
	migrations := []Migration{{Version: 1, Name: "001_core.sql"}, {Version: 2, Name: "002_forms.sql"}}
	st := statusOf(migrations, nil)
	if len(st) != 2 || st[0].Applied || st[1].Applied {
		t.Fatalf("expected two pending migrations, got %+v", st)
	}
}

func TestSQLiteMigrator_UpAndStatus(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sqlDB.Close()

	fsys := fstest.MapFS{
		"001_core.sql":  {Data: []byte("CREATE TABLE clinics (id TEXT PRIMARY KEY, name TEXT NOT NULL);")},
		"002_forms.sql": {Data: []byte("CREATE TABLE forms (id TEXT PRIMARY KEY); CREATE INDEX idx_forms_id ON forms (id);")},
	}
	m := NewSQLiteMigrator(sqlDB, fsys)

	n, err := m.UpTo(ctx, 1)
	if err != nil || n != 1 {
		t.Fatalf("UpTo(1) = %d, %v", n, err)
	}
	st, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st[0].Applied || st[1].Applied || st[0].AppliedAt == nil {
		t.Errorf("unexpected status after UpTo(1): %+v", st)
	}

	n, err = m.Up(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Up() = %d, %v", n, err)
	}
	n, err = m.Up(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second Up() = %d, %v; expected nothing pending", n, err)
	}
	if _, err := sqlDB.ExecContext(ctx, "INSERT INTO forms (id) VALUES ('f1')"); err != nil {
		t.Errorf("forms table missing: %v", err)
	}
}

func TestSQLiteMigrator_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sqlDB.Close()

	fsys := fstest.MapFS{
		"001_bad.sql": {Data: []byte("CREATE TABLE ok_table (id TEXT); CREATE TABLE broken (")},
	}
	m := NewSQLiteMigrator(sqlDB, fsys)
	if _, err := m.Up(ctx); err == nil {
		t.Fatal("expected an error")
	}
	st, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st[0].Applied {
		t.Error("failed migration recorded as applied")
	}
}
