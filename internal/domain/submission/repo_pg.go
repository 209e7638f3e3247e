package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intake/intake/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const submissionCols = `id, form_id, patient_id, clinic_id, form_version, submission_data, status,
	submitted_by, completed_at, created_at, updated_at`

const listCols = `s.id, s.form_id, f.name, s.form_version, s.patient_id,
	p.first_name || ' ' || p.last_name, s.status, s.completed_at, s.created_at`

const listFrom = ` FROM form_submissions s
	JOIN forms f ON f.id = s.form_id
	JOIN patients p ON p.id = s.patient_id`

func (r *repoPG) Create(ctx context.Context, s *Submission) error {
	s.ID = uuid.New()
	data, err := json.Marshal(s.Data)
	if err != nil {
		return err
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO form_submissions (id, form_id, patient_id, clinic_id, form_version, submission_data, status, submitted_by, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		s.ID, s.FormID, s.PatientID, s.ClinicID, s.FormVersion, data, s.Status, s.SubmittedBy, s.CompletedAt,
	).Scan(&s.SubmittedAt, &s.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Submission, error) {
	var s Submission
	var data []byte
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+submissionCols+` FROM form_submissions WHERE id = $1 AND clinic_id = $2`, id, clinicID,
	).Scan(&s.ID, &s.FormID, &s.PatientID, &s.ClinicID, &s.FormVersion, &data, &s.Status,
		&s.SubmittedBy, &s.CompletedAt, &s.SubmittedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &s.Data); err != nil {
		return nil, fmt.Errorf("decode submission %s: %w", s.ID, err)
	}
	return &s, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, from, to string, at time.Time) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE form_submissions
		SET status = $4,
			completed_at = CASE WHEN $4 = 'completed' THEN $5::timestamptz ELSE completed_at END,
			updated_at = NOW()
		WHERE id = $1 AND clinic_id = $2 AND status = $3`,
		id, clinicID, from, to, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, clinicID uuid.UUID, f Filter, limit, offset int) ([]*ListItem, int, error) {
	conn := db.Conn(ctx, r.pool)
	where := ` WHERE s.clinic_id = $1`
	args := []any{clinicID}
	idx := 2
	if f.FormID != nil {
		where += fmt.Sprintf(` AND s.form_id = $%d`, idx)
		args = append(args, *f.FormID)
		idx++
	}
	if f.PatientID != nil {
		where += fmt.Sprintf(` AND s.patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND s.status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM form_submissions s`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + listCols + listFrom + where +
		fmt.Sprintf(` ORDER BY s.created_at DESC, s.id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ListItem
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(&it.ID, &it.FormID, &it.FormName, &it.FormVersion, &it.PatientID,
			&it.PatientName, &it.Status, &it.CompletedAt, &it.SubmittedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &it)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CountByStatus(ctx context.Context, clinicID uuid.UUID) (map[string]int, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT status, COUNT(*) FROM form_submissions WHERE clinic_id = $1 GROUP BY status`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *repoPG) ActivitySince(ctx context.Context, clinicID uuid.UUID, since time.Time) ([]Activity, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT status, created_at, completed_at FROM form_submissions
		WHERE clinic_id = $1 AND (created_at >= $2 OR completed_at >= $2)`, clinicID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.Status, &a.SubmittedAt, &a.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
