package form

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, f *Form) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Form, error)
	// GetForUpdate is GetByID that locks the row for the surrounding
	// transaction where the driver supports it.
	GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*Form, error)
	Update(ctx context.Context, f *Form) error
	List(ctx context.Context, clinicID uuid.UUID, f Filter, limit, offset int) ([]*Form, int, error)
	CountActive(ctx context.Context, clinicID uuid.UUID) (int, error)
}
