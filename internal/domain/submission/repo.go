package submission

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Submission) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Submission, error)
	// UpdateStatus moves a submission from one status to another. It returns
	// no rows when the submission is not in status from.
	UpdateStatus(ctx context.Context, clinicID, id uuid.UUID, from, to string, at time.Time) error
	List(ctx context.Context, clinicID uuid.UUID, f Filter, limit, offset int) ([]*ListItem, int, error)
	// CountByStatus returns the number of submissions per status.
	CountByStatus(ctx context.Context, clinicID uuid.UUID) (map[string]int, error)
	// ActivitySince returns submissions submitted or completed at or after since.
	ActivitySince(ctx context.Context, clinicID uuid.UUID, since time.Time) ([]Activity, error)
}
