package form

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/intake/intake/internal/domain/formschema"
	"github.com/intake/intake/internal/platform/db"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("form not found")
)

type Service struct {
	repo   Repository
	tx     db.TxRunner
	logger zerolog.Logger
}

func NewService(repo Repository, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tx:     tx,
		logger: logger.With().Str("component", "form").Logger(),
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// invalidSchema marks a schema taken from the request body as bad input.
func invalidSchema(err error) error {
	return fmt.Errorf("%w: form schema: %w", ErrInvalidInput, err)
}

func notFound(err error) error {
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

// CreateInput describes a new form. TemplateID, when set, seeds the schema
// from the built-in catalog; otherwise Schema is used, or the default blank
// schema when both are absent.
type CreateInput struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	FormType    string             `json:"formType"`
	TemplateID  string             `json:"templateId"`
	Schema      *formschema.Schema `json:"formData"`
}

func (s *Service) CreateForm(ctx context.Context, clinicID, userID uuid.UUID, in CreateInput) (*Form, error) {
	f := &Form{
		ClinicID:    clinicID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		FormType:    in.FormType,
		IsActive:    true,
		Version:     1,
	}
	if userID != uuid.Nil {
		f.CreatedBy = &userID
	}

	switch {
	case in.TemplateID != "":
		tpl, err := formschema.GetTemplate(in.TemplateID)
		if err != nil {
			return nil, err
		}
		f.Schema = tpl.Schema()
		if f.FormType == "" {
			f.FormType = tpl.Type
		}
		if f.Name == "" {
			f.Name = tpl.Name
		}
		if f.Description == "" {
			f.Description = tpl.Description
		}
	case in.Schema != nil:
		if err := in.Schema.Validate(); err != nil {
			return nil, invalidSchema(err)
		}
		f.Schema = in.Schema.Clone()
	default:
		f.Schema = formschema.DefaultSchema()
	}

	if f.FormType == "" {
		f.FormType = TypeCustom
	}
	if f.Name == "" {
		return nil, invalid("name is required")
	}
	if !ValidType(f.FormType) {
		return nil, invalid("unknown form type %q", f.FormType)
	}

	if err := s.repo.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	s.logger.Info().Str("form_id", f.ID.String()).Str("clinic_id", clinicID.String()).
		Str("template", in.TemplateID).Msg("form created")
	return f, nil
}

func (s *Service) GetForm(ctx context.Context, clinicID, id uuid.UUID) (*Form, error) {
	f, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return f, nil
}

func (s *Service) ListForms(ctx context.Context, clinicID uuid.UUID, filter Filter, limit, offset int) ([]*Form, int, error) {
	if filter.Type != "" && !ValidType(filter.Type) {
		return nil, 0, invalid("unknown form type %q", filter.Type)
	}
	return s.repo.List(ctx, clinicID, filter, limit, offset)
}

func (s *Service) CountActiveForms(ctx context.Context, clinicID uuid.UUID) (int, error) {
	return s.repo.CountActive(ctx, clinicID)
}

// SaveResult reports the outcome of a save. FieldID is set by AddField.
type SaveResult struct {
	Form           *Form  `json:"form"`
	VersionChanged bool   `json:"versionChanged"`
	FieldID        string `json:"fieldId,omitempty"`
}

// edit loads the form under lock, lets fn produce the edit and saves it in
// one transaction. fn errors abort without writing.
func (s *Service) edit(ctx context.Context, clinicID, id uuid.UUID, fn func(f *Form) (Edit, error)) (*SaveResult, error) {
	var res SaveResult
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		f, err := s.repo.GetForUpdate(ctx, clinicID, id)
		if err != nil {
			return notFound(err)
		}
		e, err := fn(f)
		if err != nil {
			return err
		}
		if e.Schema != nil {
			if err := e.Schema.Validate(); err != nil {
				return invalidSchema(err)
			}
		}
		if e.Name != nil {
			name := strings.TrimSpace(*e.Name)
			if name == "" {
				return invalid("name is required")
			}
			e.Name = &name
		}
		res.VersionChanged = f.Save(e)
		if err := s.repo.Update(ctx, f); err != nil {
			return notFound(err)
		}
		res.Form = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.VersionChanged {
		s.logger.Info().Str("form_id", id.String()).Int("version", res.Form.Version).Msg("form schema changed")
	}
	return &res, nil
}

// SaveForm applies e. The version moves by exactly one when the schema
// content changes and stays put otherwise.
func (s *Service) SaveForm(ctx context.Context, clinicID, id uuid.UUID, e Edit) (*SaveResult, error) {
	return s.edit(ctx, clinicID, id, func(*Form) (Edit, error) { return e, nil })
}

// DeleteForm deactivates the form; submissions keep pointing at it.
func (s *Service) DeleteForm(ctx context.Context, clinicID, id uuid.UUID) error {
	inactive := false
	_, err := s.SaveForm(ctx, clinicID, id, Edit{IsActive: &inactive})
	return err
}

func (s *Service) DuplicateForm(ctx context.Context, clinicID, userID, id uuid.UUID) (*Form, error) {
	src, err := s.GetForm(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	dup := src.Duplicate()
	if userID != uuid.Nil {
		dup.CreatedBy = &userID
	}
	if err := s.repo.Create(ctx, dup); err != nil {
		return nil, fmt.Errorf("duplicate form: %w", err)
	}
	s.logger.Info().Str("form_id", dup.ID.String()).Str("source_id", id.String()).Msg("form duplicated")
	return dup, nil
}

func (s *Service) AddField(ctx context.Context, clinicID, id uuid.UUID, t formschema.FieldType, sectionID string) (*SaveResult, error) {
	var fieldID string
	res, err := s.edit(ctx, clinicID, id, func(f *Form) (Edit, error) {
		if sectionID == "" && len(f.Schema.Sections) > 0 {
			sectionID = f.Schema.Sections[len(f.Schema.Sections)-1].ID
		}
		next, fid, err := f.Schema.AddField(t, sectionID)
		if err != nil {
			return Edit{}, err
		}
		fieldID = fid
		return Edit{Schema: &next}, nil
	})
	if err != nil {
		return nil, err
	}
	res.FieldID = fieldID
	return res, nil
}

func (s *Service) UpdateField(ctx context.Context, clinicID, id uuid.UUID, fieldID string, patch formschema.FieldPatch) (*SaveResult, error) {
	return s.edit(ctx, clinicID, id, func(f *Form) (Edit, error) {
		next, err := f.Schema.UpdateField(fieldID, patch)
		return Edit{Schema: &next}, err
	})
}

func (s *Service) RemoveField(ctx context.Context, clinicID, id uuid.UUID, fieldID string) (*SaveResult, error) {
	return s.edit(ctx, clinicID, id, func(f *Form) (Edit, error) {
		next, err := f.Schema.RemoveField(fieldID)
		return Edit{Schema: &next}, err
	})
}

// MoveInput locates a field by section and index on both ends of a move.
type MoveInput struct {
	FromSection string `json:"fromSection"`
	FromIndex   int    `json:"fromIndex"`
	ToSection   string `json:"toSection"`
	ToIndex     int    `json:"toIndex"`
}

func (s *Service) MoveField(ctx context.Context, clinicID, id uuid.UUID, fieldID string, mv MoveInput) (*SaveResult, error) {
	return s.edit(ctx, clinicID, id, func(f *Form) (Edit, error) {
		next, err := f.Schema.ReorderField(fieldID, mv.FromSection, mv.FromIndex, mv.ToSection, mv.ToIndex)
		return Edit{Schema: &next}, err
	})
}

func (s *Service) AddSection(ctx context.Context, clinicID, id uuid.UUID, sectionID, title string) (*SaveResult, error) {
	return s.edit(ctx, clinicID, id, func(f *Form) (Edit, error) {
		if sectionID == "" {
			sectionID = "section-" + uuid.NewString()
		}
		next, err := f.Schema.AddSection(sectionID, title)
		return Edit{Schema: &next}, err
	})
}

// Preview validates answers against the form's current schema without
// storing anything.
func (s *Service) Preview(ctx context.Context, clinicID, id uuid.UUID, answers formschema.Answers) (formschema.Result, error) {
	f, err := s.GetForm(ctx, clinicID, id)
	if err != nil {
		return formschema.Result{}, err
	}
	return formschema.Validate(f.Schema, answers), nil
}
