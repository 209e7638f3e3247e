package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intake/intake/internal/config"
	"github.com/intake/intake/internal/domain/clinic"
	"github.com/intake/intake/internal/domain/form"
	"github.com/intake/intake/internal/domain/patient"
	"github.com/intake/intake/internal/domain/submission"
	"github.com/intake/intake/internal/platform/db"
	"github.com/intake/intake/migrations"
)

// store holds the repositories for the configured database driver.
type store struct {
	clinics     clinic.ClinicRepository
	users       clinic.UserRepository
	patients    patient.Repository
	forms       form.Repository
	submissions submission.Repository
	tx          db.TxRunner
	health      db.HealthChecker
	migrator    *db.Migrator
	close       func()
}

func (s *store) Close() { s.close() }

func migrationFS(cfg *config.Config, embedded fs.FS) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return embedded
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	if cfg.UseSQLite() {
		sqlDB, err := db.OpenSQLite(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return sqliteStore(sqlDB, migrationFS(cfg, migrations.SQLite())), nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pgStore(pool, migrationFS(cfg, migrations.Postgres())), nil
}

func pgStore(pool *pgxpool.Pool, migrationFiles fs.FS) *store {
	return &store{
		clinics:     clinic.NewClinicRepoPG(pool),
		users:       clinic.NewUserRepoPG(pool),
		patients:    patient.NewRepoPG(pool),
		forms:       form.NewRepoPG(pool),
		submissions: submission.NewRepoPG(pool),
		tx:          db.NewPgTxRunner(pool),
		health:      db.PgHealth(pool),
		migrator:    db.NewMigrator(pool, migrationFiles),
		close:       pool.Close,
	}
}

func sqliteStore(sqlDB *sql.DB, migrationFiles fs.FS) *store {
	return &store{
		clinics:     clinic.NewClinicRepoSQLite(sqlDB),
		users:       clinic.NewUserRepoSQLite(sqlDB),
		patients:    patient.NewRepoSQLite(sqlDB),
		forms:       form.NewRepoSQLite(sqlDB),
		submissions: submission.NewRepoSQLite(sqlDB),
		tx:          db.NewSQLTxRunner(sqlDB),
		health:      db.SQLHealth(sqlDB),
		migrator:    db.NewSQLiteMigrator(sqlDB, migrationFiles),
		close:       func() { sqlDB.Close() },
	}
}
