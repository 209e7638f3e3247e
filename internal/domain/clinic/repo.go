package clinic

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ClinicRepository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	Update(ctx context.Context, c *Clinic) error
}

// UserRepository stores clinic staff accounts. Lookups that are not
// scoped to a clinic (email, reset token) serve the unauthenticated flows.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByResetToken(ctx context.Context, tokenHash string) (*User, error)
	Update(ctx context.Context, u *User) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expires time.Time) error
	ListByClinic(ctx context.Context, clinicID uuid.UUID, limit, offset int) ([]*User, int, error)
}
