package patient

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/intake/intake/internal/platform/db"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("patient not found")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) validate(p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = trimOptional(p.Email)
	p.Phone = trimOptional(p.Phone)
	p.DateOfBirth = trimOptional(p.DateOfBirth)

	if p.FirstName == "" {
		return invalid("firstName is required")
	}
	if p.LastName == "" {
		return invalid("lastName is required")
	}
	if p.Email != nil {
		lower := strings.ToLower(*p.Email)
		if addr, err := mail.ParseAddress(lower); err != nil || addr.Address != lower {
			return invalid("invalid email: %s", *p.Email)
		}
		p.Email = &lower
	}
	if p.DateOfBirth != nil {
		dob, err := time.Parse(DateLayout, *p.DateOfBirth)
		if err != nil {
			return invalid("dateOfBirth must be YYYY-MM-DD")
		}
		if dob.After(s.now()) {
			return invalid("dateOfBirth is in the future")
		}
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, clinicID uuid.UUID, p *Patient) error {
	p.ClinicID = clinicID
	if err := s.validate(p); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, clinicID, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// UpdatePatient replaces the editable attributes of an existing patient.
func (s *Service) UpdatePatient(ctx context.Context, clinicID uuid.UUID, p *Patient) error {
	existing, err := s.GetPatient(ctx, clinicID, p.ID)
	if err != nil {
		return err
	}
	p.ClinicID = clinicID
	p.CreatedAt = existing.CreatedAt
	if err := s.validate(p); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Service) DeletePatient(ctx context.Context, clinicID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, clinicID, id); err != nil {
		if db.IsNoRows(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Service) ListPatients(ctx context.Context, clinicID uuid.UUID, f Filter, limit, offset int) ([]*Patient, int, error) {
	f.Search = strings.TrimSpace(f.Search)
	return s.repo.List(ctx, clinicID, f, limit, offset)
}

func (s *Service) CountPatients(ctx context.Context, clinicID uuid.UUID) (int, error) {
	return s.repo.Count(ctx, clinicID)
}
