package clinic

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/intake/intake/internal/platform/db"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// =========== Clinic Repository ===========

type clinicRepoSQLite struct{ db *sql.DB }

func NewClinicRepoSQLite(sqlDB *sql.DB) ClinicRepository {
	return &clinicRepoSQLite{db: sqlDB}
}

func (r *clinicRepoSQLite) scanClinic(row rowScanner) (*Clinic, error) {
	var (
		c                Clinic
		settings         string
		created, updated string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.SubscriptionStatus,
		&settings, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(settings), &c.Settings); err != nil {
		return nil, fmt.Errorf("decode clinic settings: %w", err)
	}
	if c.CreatedAt, err = db.ParseTime(created); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = db.ParseTime(updated); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clinicRepoSQLite) Create(ctx context.Context, c *Clinic) error {
	c.ID = uuid.New()
	settings, err := json.Marshal(c.Settings)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = db.SQLConn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO clinics (id, name, email, phone, address, subscription_status, settings, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Name, c.Email, c.Phone, c.Address, c.SubscriptionStatus, string(settings),
		db.FormatTime(now), db.FormatTime(now))
	if err != nil {
		return err
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

func (r *clinicRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return r.scanClinic(db.SQLConn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+clinicCols+` FROM clinics WHERE id = ?`, id))
}

func (r *clinicRepoSQLite) Update(ctx context.Context, c *Clinic) error {
	settings, err := json.Marshal(c.Settings)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := db.SQLConn(ctx, r.db).ExecContext(ctx, `
		UPDATE clinics SET name=?, phone=?, address=?, subscription_status=?, settings=?, updated_at=?
		WHERE id = ?`,
		c.Name, c.Phone, c.Address, c.SubscriptionStatus, string(settings), db.FormatTime(now), c.ID)
	if err := affectedOne(res, err); err != nil {
		return err
	}
	c.UpdatedAt = now
	return nil
}

// =========== User Repository ===========

type userRepoSQLite struct{ db *sql.DB }

func NewUserRepoSQLite(sqlDB *sql.DB) UserRepository {
	return &userRepoSQLite{db: sqlDB}
}

func (r *userRepoSQLite) scanUser(row rowScanner) (*User, error) {
	var (
		u                       User
		lastLogin, resetExpires sql.NullString
		created, updated        string
	)
	err := row.Scan(&u.ID, &u.ClinicID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.IsActive, &lastLogin, &u.ResetTokenHash, &resetExpires, &created, &updated)
	if err != nil {
		return nil, err
	}
	if u.LastLogin, err = db.NullTime(lastLogin); err != nil {
		return nil, err
	}
	if u.ResetTokenExpires, err = db.NullTime(resetExpires); err != nil {
		return nil, err
	}
	if u.CreatedAt, err = db.ParseTime(created); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = db.ParseTime(updated); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepoSQLite) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	now := time.Now().UTC()
	_, err := db.SQLConn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO users (id, clinic_id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.ClinicID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.IsActive,
		db.FormatTime(now), db.FormatTime(now))
	if err != nil {
		return err
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

func (r *userRepoSQLite) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*User, error) {
	return r.scanUser(db.SQLConn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ? AND clinic_id = ?`, id, clinicID))
}

func (r *userRepoSQLite) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(db.SQLConn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE email = ?`, email))
}

func (r *userRepoSQLite) GetByResetToken(ctx context.Context, tokenHash string) (*User, error) {
	return r.scanUser(db.SQLConn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE reset_token_hash = ?`, tokenHash))
}

func (r *userRepoSQLite) Update(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	res, err := db.SQLConn(ctx, r.db).ExecContext(ctx, `
		UPDATE users SET first_name=?, last_name=?, role=?, is_active=?, updated_at=?
		WHERE id = ? AND clinic_id = ?`,
		u.FirstName, u.LastName, u.Role, u.IsActive, db.FormatTime(now), u.ID, u.ClinicID)
	if err := affectedOne(res, err); err != nil {
		return err
	}
	u.UpdatedAt = now
	return nil
}

func (r *userRepoSQLite) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := db.SQLConn(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE id = ?`, db.FormatTime(at), id)
	return err
}

func (r *userRepoSQLite) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := db.SQLConn(ctx, r.db).ExecContext(ctx, `
		UPDATE users SET password_hash=?, reset_token_hash=NULL, reset_token_expires=NULL, updated_at=?
		WHERE id = ?`, passwordHash, db.FormatTime(time.Now()), id)
	return err
}

func (r *userRepoSQLite) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expires time.Time) error {
	_, err := db.SQLConn(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET reset_token_hash=?, reset_token_expires=? WHERE id = ?`,
		tokenHash, db.FormatTime(expires), id)
	return err
}

func (r *userRepoSQLite) ListByClinic(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*User, int, error) {
	conn := db.SQLConn(ctx, r.db)
	var total int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE clinic_id = ?`, clinicID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.QueryContext(ctx, `SELECT `+userCols+` FROM users WHERE clinic_id = ?
		ORDER BY created_at, email LIMIT ? OFFSET ?`, clinicID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

// affectedOne turns a zero-row UPDATE into sql.ErrNoRows.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
