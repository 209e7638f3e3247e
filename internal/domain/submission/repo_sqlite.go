package submission

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

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (r *repoSQLite) Create(ctx context.Context, s *Submission) error {
	s.ID = uuid.New()
	data, err := json.Marshal(s.Data)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.SQLConn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO form_submissions (id, form_id, patient_id, clinic_id, form_version, submission_data, status,
			submitted_by, completed_at, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.FormID, s.PatientID, s.ClinicID, s.FormVersion, string(data), s.Status,
		nullUUID(s.SubmittedBy), db.NullTimeString(s.CompletedAt), db.FormatTime(now), db.FormatTime(now))
	if err != nil {
		return err
	}
	s.SubmittedAt, s.UpdatedAt = now, now
	return nil
}

func (r *repoSQLite) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Submission, error) {
	var (
		s                      Submission
		data, created, updated string
		submittedBy            uuid.NullUUID
		completed              sql.NullString
	)
	err := db.SQLConn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+submissionCols+` FROM form_submissions WHERE id = ? AND clinic_id = ?`, id, clinicID,
	).Scan(&s.ID, &s.FormID, &s.PatientID, &s.ClinicID, &s.FormVersion, &data, &s.Status,
		&submittedBy, &completed, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &s.Data); err != nil {
		return nil, fmt.Errorf("decode submission %s: %w", s.ID, err)
	}
	if submittedBy.Valid {
		s.SubmittedBy = &submittedBy.UUID
	}
	if s.CompletedAt, err = db.NullTime(completed); err != nil {
		return nil, err
	}
	if s.SubmittedAt, err = db.ParseTime(created); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = db.ParseTime(updated); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoSQLite) UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, from, to string, at time.Time) error {
	var completed sql.NullString
	if to == StatusCompleted {
		completed = db.NullTimeString(&at)
	}
	res, err := db.SQLConn(ctx, r.db).ExecContext(ctx, `
		UPDATE form_submissions
		SET status = ?, completed_at = COALESCE(?, completed_at), updated_at = ?
		WHERE id = ? AND clinic_id = ? AND status = ?`,
		to, completed, db.FormatTime(time.Now()), id, clinicID, from)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repoSQLite) List(ctx context.Context, clinicID uuid.UUID, f Filter, limit, offset int) ([]*ListItem, int, error) {
	conn := db.SQLConn(ctx, r.db)
	where := ` WHERE s.clinic_id = ?`
	args := []any{clinicID}
	if f.FormID != nil {
		where += ` AND s.form_id = ?`
		args = append(args, *f.FormID)
	}
	if f.PatientID != nil {
		where += ` AND s.patient_id = ?`
		args = append(args, *f.PatientID)
	}
	if f.Status != "" {
		where += ` AND s.status = ?`
		args = append(args, f.Status)
	}

	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM form_submissions s`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := conn.QueryContext(ctx, `SELECT `+listCols+listFrom+where+
		` ORDER BY s.created_at DESC, s.id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ListItem
	for rows.Next() {
		var (
			it        ListItem
			completed sql.NullString
			submitted string
		)
		if err := rows.Scan(&it.ID, &it.FormID, &it.FormName, &it.FormVersion, &it.PatientID,
			&it.PatientName, &it.Status, &completed, &submitted); err != nil {
			return nil, 0, err
		}
		if it.CompletedAt, err = db.NullTime(completed); err != nil {
			return nil, 0, err
		}
		if it.SubmittedAt, err = db.ParseTime(submitted); err != nil {
			return nil, 0, err
		}
		items = append(items, &it)
	}
	return items, total, rows.Err()
}

func (r *repoSQLite) CountByStatus(ctx context.Context, clinicID uuid.UUID) (map[string]int, error) {
	rows, err := db.SQLConn(ctx, r.db).QueryContext(ctx,
		`SELECT status, COUNT(*) FROM form_submissions WHERE clinic_id = ? GROUP BY status`, clinicID)
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

func (r *repoSQLite) ActivitySince(ctx context.Context, clinicID uuid.UUID, since time.Time) ([]Activity, error) {
	ts := db.FormatTime(since)
	rows, err := db.SQLConn(ctx, r.db).QueryContext(ctx, `
		SELECT status, created_at, completed_at FROM form_submissions
		WHERE clinic_id = ? AND (created_at >= ? OR completed_at >= ?)`, clinicID, ts, ts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Activity
	for rows.Next() {
		var (
			a         Activity
			submitted string
			completed sql.NullString
		)
		if err := rows.Scan(&a.Status, &submitted, &completed); err != nil {
			return nil, err
		}
		if a.SubmittedAt, err = db.ParseTime(submitted); err != nil {
			return nil, err
		}
		if a.CompletedAt, err = db.NullTime(completed); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
