package patient

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/intake/intake/internal/platform/db"
)

type repoSQLite struct{ db *sql.DB }

func NewRepoSQLite(sqlDB *sql.DB) Repository {
	return &repoSQLite{db: sqlDB}
}

const patientCols = `id, clinic_id, email, phone, first_name, last_name, date_of_birth, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *repoSQLite) scanPatient(row rowScanner) (*Patient, error) {
	var (
		p                Patient
		created, updated string
	)
	err := row.Scan(&p.ID, &p.ClinicID, &p.Email, &p.Phone, &p.FirstName, &p.LastName,
		&p.DateOfBirth, &created, &updated)
	if err != nil {
		return nil, err
	}
	if p.CreatedAt, err = db.ParseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = db.ParseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoSQLite) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	_, err := db.SQLConn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO patients (id, clinic_id, email, phone, first_name, last_name, date_of_birth, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID, p.ClinicID, p.Email, p.Phone, p.FirstName, p.LastName, p.DateOfBirth,
		db.FormatTime(now), db.FormatTime(now))
	if err != nil {
		return err
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (r *repoSQLite) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(db.SQLConn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = ? AND clinic_id = ?`, id, clinicID))
}

func (r *repoSQLite) Update(ctx context.Context, p *Patient) error {
	now := time.Now().UTC()
	res, err := db.SQLConn(ctx, r.db).ExecContext(ctx, `
		UPDATE patients SET email=?, phone=?, first_name=?, last_name=?, date_of_birth=?, updated_at=?
		WHERE id = ? AND clinic_id = ?`,
		p.Email, p.Phone, p.FirstName, p.LastName, p.DateOfBirth, db.FormatTime(now), p.ID, p.ClinicID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	p.UpdatedAt = now
	return nil
}

func (r *repoSQLite) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	res, err := db.SQLConn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM patients WHERE id = ? AND clinic_id = ?`, id, clinicID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repoSQLite) List(ctx context.Context, clinicID uuid.UUID, f Filter, limit, offset int) ([]*Patient, int, error) {
	conn := db.SQLConn(ctx, r.db)
	where := `WHERE clinic_id = ?`
	args := []any{clinicID}
	if f.Search != "" {
		pattern := db.LikePattern(f.Search)
		where += ` AND (first_name || ' ' || last_name LIKE ? ESCAPE '\' OR COALESCE(email, '') LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM patients `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := conn.QueryContext(ctx, `SELECT `+patientCols+` FROM patients `+where+
		` ORDER BY last_name, first_name, id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoSQLite) Count(ctx context.Context, clinicID uuid.UUID) (int, error) {
	var n int
	err := db.SQLConn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM patients WHERE clinic_id = ?`, clinicID).Scan(&n)
	return n, err
}
