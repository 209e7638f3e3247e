package form

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/intake/intake/internal/platform/db"
)

type repoSQLite struct{ db *sql.DB }

func NewRepoSQLite(sqlDB *sql.DB) Repository {
	return &repoSQLite{db: sqlDB}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *repoSQLite) scanForm(row rowScanner) (*Form, error) {
	var (
		f                        Form
		schema, created, updated string
		createdBy                uuid.NullUUID
	)
	err := row.Scan(&f.ID, &f.ClinicID, &f.Name, &f.Description, &f.FormType, &schema,
		&f.IsActive, &f.Version, &createdBy, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(schema), &f.Schema); err != nil {
		return nil, fmt.Errorf("decode form %s schema: %w", f.ID, err)
	}
	if createdBy.Valid {
		f.CreatedBy = &createdBy.UUID
	}
	if f.CreatedAt, err = db.ParseTime(created); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = db.ParseTime(updated); err != nil {
		return nil, err
	}
	return &f, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (r *repoSQLite) Create(ctx context.Context, f *Form) error {
	f.ID = uuid.New()
	schema, err := json.Marshal(f.Schema)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.SQLConn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO forms (id, clinic_id, name, description, form_type, schema, is_active, version, created_by, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		f.ID, f.ClinicID, f.Name, f.Description, f.FormType, string(schema), f.IsActive, f.Version,
		nullUUID(f.CreatedBy), db.FormatTime(now), db.FormatTime(now))
	if err != nil {
		return err
	}
	f.CreatedAt, f.UpdatedAt = now, now
	return nil
}

func (r *repoSQLite) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Form, error) {
	return r.scanForm(db.SQLConn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+formCols+` FROM forms WHERE id = ? AND clinic_id = ?`, id, clinicID))
}

// GetForUpdate needs no row lock: SQLite holds a database-wide write lock
// for the duration of a write transaction.
func (r *repoSQLite) GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*Form, error) {
	return r.GetByID(ctx, clinicID, id)
}

func (r *repoSQLite) Update(ctx context.Context, f *Form) error {
	schema, err := json.Marshal(f.Schema)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := db.SQLConn(ctx, r.db).ExecContext(ctx, `
		UPDATE forms SET name=?, description=?, form_type=?, schema=?, is_active=?, version=?, updated_at=?
		WHERE id = ? AND clinic_id = ?`,
		f.Name, f.Description, f.FormType, string(schema), f.IsActive, f.Version, db.FormatTime(now),
		f.ID, f.ClinicID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	f.UpdatedAt = now
	return nil
}

func (r *repoSQLite) List(ctx context.Context, clinicID uuid.UUID, f Filter, limit, offset int) ([]*Form, int, error) {
	conn := db.SQLConn(ctx, r.db)
	where := ` WHERE clinic_id = ?`
	args := []any{clinicID}
	if f.Active != nil {
		where += ` AND is_active = ?`
		args = append(args, *f.Active)
	}
	if f.Type != "" {
		where += ` AND form_type = ?`
		args = append(args, f.Type)
	}
	if f.Search != "" {
		pattern := db.LikePattern(f.Search)
		where += ` AND (name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM forms`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := conn.QueryContext(ctx, `SELECT `+formCols+` FROM forms`+where+
		` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Form
	for rows.Next() {
		item, err := r.scanForm(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *repoSQLite) CountActive(ctx context.Context, clinicID uuid.UUID) (int, error) {
	var n int
	err := db.SQLConn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM forms WHERE clinic_id = ? AND is_active = 1`, clinicID).Scan(&n)
	return n, err
}
