// Package dbtest opens migrated SQLite databases for repository tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/intake/intake/internal/platform/db"
	"github.com/intake/intake/migrations"
)

// OpenSQLite returns a fresh database in a temp dir with every migration
// applied. It is closed when the test ends.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()
	ctx := context.Background()
	sqlDB, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "intake.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	if _, err := db.NewSQLiteMigrator(sqlDB, migrations.SQLite()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlDB
}

// SeedClinic inserts a bare clinic row and returns its id.
func SeedClinic(t testing.TB, sqlDB *sql.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := db.FormatTime(time.Now())
	_, err := sqlDB.Exec(`INSERT INTO clinics (id, name, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, "Clinic "+id.String()[:8], id.String()[:8]+"@clinic.test", now, now)
	if err != nil {
		t.Fatalf("seed clinic: %v", err)
	}
	return id
}

// SeedUser inserts an admin user in clinicID and returns its id.
func SeedUser(t testing.TB, sqlDB *sql.DB, clinicID uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := db.FormatTime(time.Now())
	_, err := sqlDB.Exec(`INSERT INTO users (id, clinic_id, email, password_hash, first_name, last_name, role, created_at, updated_at)
		VALUES (?, ?, ?, 'x', 'Test', 'User', 'admin', ?, ?)`,
		id, clinicID, id.String()+"@user.test", now, now)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}
