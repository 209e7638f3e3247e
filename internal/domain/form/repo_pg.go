package form

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intake/intake/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const formCols = `id, clinic_id, name, description, form_type, schema, is_active, version,
	created_by, created_at, updated_at`

func (r *repoPG) scanForm(row pgx.Row) (*Form, error) {
	var f Form
	var schema []byte
	err := row.Scan(&f.ID, &f.ClinicID, &f.Name, &f.Description, &f.FormType, &schema,
		&f.IsActive, &f.Version, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(schema, &f.Schema); err != nil {
		return nil, fmt.Errorf("decode form %s schema: %w", f.ID, err)
	}
	return &f, nil
}

func (r *repoPG) Create(ctx context.Context, f *Form) error {
	f.ID = uuid.New()
	schema, err := json.Marshal(f.Schema)
	if err != nil {
		return err
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO forms (id, clinic_id, name, description, form_type, schema, is_active, version, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		f.ID, f.ClinicID, f.Name, f.Description, f.FormType, schema, f.IsActive, f.Version, f.CreatedBy,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Form, error) {
	return r.scanForm(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+formCols+` FROM forms WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (r *repoPG) GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*Form, error) {
	return r.scanForm(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+formCols+` FROM forms WHERE id = $1 AND clinic_id = $2 FOR UPDATE`, id, clinicID))
}

func (r *repoPG) Update(ctx context.Context, f *Form) error {
	schema, err := json.Marshal(f.Schema)
	if err != nil {
		return err
	}
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE forms SET name=$3, description=$4, form_type=$5, schema=$6, is_active=$7, version=$8, updated_at=NOW()
		WHERE id = $1 AND clinic_id = $2
		RETURNING updated_at`,
		f.ID, f.ClinicID, f.Name, f.Description, f.FormType, schema, f.IsActive, f.Version,
	).Scan(&f.UpdatedAt)
}

func (r *repoPG) List(ctx context.Context, clinicID uuid.UUID, f Filter, limit, offset int) ([]*Form, int, error) {
	conn := db.Conn(ctx, r.pool)
	where := ` WHERE clinic_id = $1`
	args := []any{clinicID}
	idx := 2
	if f.Active != nil {
		where += fmt.Sprintf(` AND is_active = $%d`, idx)
		args = append(args, *f.Active)
		idx++
	}
	if f.Type != "" {
		where += fmt.Sprintf(` AND form_type = $%d`, idx)
		args = append(args, f.Type)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(` AND (name ILIKE $%d ESCAPE '\' OR description ILIKE $%d ESCAPE '\')`, idx, idx)
		args = append(args, db.LikePattern(f.Search))
		idx++
	}

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM forms`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + formCols + ` FROM forms` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)
	rows, err := conn.Query(ctx, query, args...)
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

func (r *repoPG) CountActive(ctx context.Context, clinicID uuid.UUID) (int, error) {
	var n int
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM forms WHERE clinic_id = $1 AND is_active`, clinicID).Scan(&n)
	return n, err
}
