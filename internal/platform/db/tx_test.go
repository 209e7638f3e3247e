package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
	if tx := SQLTxFromContext(context.Background()); tx != nil {
		t.Error("expected nil sql tx from empty context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil for wrong type")
	}
}

func TestIsNoRows(t *testing.T) {
	for _, err := range []error{pgx.ErrNoRows, sql.ErrNoRows, ErrNoRows, fmt.Errorf("get form: %w", sql.ErrNoRows)} {
		if !IsNoRows(err) {
			t.Errorf("IsNoRows(%v) = false", err)
		}
	}
	if IsNoRows(errors.New("boom")) || IsNoRows(nil) {
		t.Error("unexpected match")
	}
}

func TestSQLTxRunner(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "tx.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sqlDB.Close()
	if _, err := sqlDB.ExecContext(ctx, "CREATE TABLE items (id TEXT PRIMARY KEY)"); err != nil {
		t.Fatal(err)
	}

	runner := NewSQLTxRunner(sqlDB)
	boom := errors.New("boom")
	err = runner.InTx(ctx, func(ctx context.Context) error {
		if SQLTxFromContext(ctx) == nil {
			t.Error("expected a transaction on the context")
		}
		if _, err := SQLConn(ctx, sqlDB).ExecContext(ctx, "INSERT INTO items (id) VALUES ('a')"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var n int
	sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n)
	if n != 0 {
		t.Errorf("expected rollback, found %d rows", n)
	}

	err = runner.InTx(ctx, func(ctx context.Context) error {
		_, err := SQLConn(ctx, sqlDB).ExecContext(ctx, "INSERT INTO items (id) VALUES ('a')")
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n)
	if n != 1 {
		t.Errorf("expected commit, found %d rows", n)
	}

	_, err = sqlDB.ExecContext(ctx, "INSERT INTO items (id) VALUES ('a')")
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
}

func TestFormatParseTime(t *testing.T) {
	in := time.Date(2024, 3, 5, 14, 30, 0, 123, time.FixedZone("EST", -5*3600))
	s := FormatTime(in)
	if s != "2024-03-05T19:30:00.000000123Z" {
		t.Errorf("unexpected layout %s", s)
	}
	out, err := ParseTime(s)
	if err != nil || !out.Equal(in) {
		t.Errorf("round trip: %v, %v", out, err)
	}

	earlier := FormatTime(in.Add(-time.Millisecond))
	if !(earlier < s) {
		t.Error("formatted timestamps must sort chronologically")
	}

	nt, err := NullTime(sql.NullString{})
	if nt != nil || err != nil {
		t.Errorf("expected nil for NULL, got %v %v", nt, err)
	}
}
