package submission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/intake/intake/internal/domain/form"
	"github.com/intake/intake/internal/domain/formschema"
	"github.com/intake/intake/internal/domain/patient"
	"github.com/intake/intake/internal/platform/db"
	"github.com/intake/intake/internal/platform/hipaa"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrFormInactive      = errors.New("form is not accepting submissions")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSignatureRequired = errors.New("form requires a signature")
	// ErrSealedAnswers is returned when stored answers are encrypted and no
	// PHI key is configured to open them.
	ErrSealedAnswers = errors.New("submission has encrypted answers and no PHI key is configured")
)

// ValidationError carries every field failure of a rejected submission.
type ValidationError struct {
	Errors []formschema.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.String()
	}
	return "submission is invalid: " + strings.Join(parts, ", ")
}

// FormSource is the part of the form service submissions depend on.
type FormSource interface {
	GetForm(ctx context.Context, clinicID, id uuid.UUID) (*form.Form, error)
	CountActiveForms(ctx context.Context, clinicID uuid.UUID) (int, error)
}

// PatientSource is the part of the patient service submissions depend on.
type PatientSource interface {
	GetPatient(ctx context.Context, clinicID, id uuid.UUID) (*patient.Patient, error)
	CountPatients(ctx context.Context, clinicID uuid.UUID) (int, error)
}

type Service struct {
	repo     Repository
	forms    FormSource
	patients PatientSource
	// phi is nil when no encryption key is configured; answers to
	// encrypted fields are then stored as submitted.
	phi    *hipaa.PHIEncryptor
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, forms FormSource, patients PatientSource, phi *hipaa.PHIEncryptor, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		forms:    forms,
		patients: patients,
		phi:      phi,
		logger:   logger.With().Str("component", "submission").Logger(),
		now:      time.Now,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

type SubmitInput struct {
	FormID    uuid.UUID          `json:"formId"`
	PatientID uuid.UUID          `json:"patientId"`
	Answers   formschema.Answers `json:"submissionData"`
}

func (s *Service) loadForm(ctx context.Context, clinicID, id uuid.UUID) (*form.Form, error) {
	f, err := s.forms.GetForm(ctx, clinicID, id)
	if errors.Is(err, form.ErrNotFound) {
		return nil, fmt.Errorf("%w: form %s", ErrNotFound, id)
	}
	return f, err
}

// Submit validates answers against the form's current schema and stores
// them. Nothing is stored when validation fails; the returned
// *ValidationError lists every failure. A stored submission is completed
// right away when the form's signature policy is met and pending otherwise.
func (s *Service) Submit(ctx context.Context, clinicID, userID uuid.UUID, in SubmitInput) (*Submission, error) {
	if in.FormID == uuid.Nil || in.PatientID == uuid.Nil {
		return nil, invalid("formId and patientId are required")
	}
	if in.Answers == nil {
		in.Answers = formschema.Answers{}
	}
	if id, ok := sealedLooking(in.Answers); ok {
		return nil, invalid("answer %q must not start with the reserved prefix of encrypted values", id)
	}

	f, err := s.loadForm(ctx, clinicID, in.FormID)
	if err != nil {
		return nil, err
	}
	if !f.IsActive {
		return nil, ErrFormInactive
	}
	if _, err := s.patients.GetPatient(ctx, clinicID, in.PatientID); err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			return nil, fmt.Errorf("%w: patient %s", ErrNotFound, in.PatientID)
		}
		return nil, err
	}

	if res := formschema.Validate(f.Schema, in.Answers); !res.Valid {
		return nil, &ValidationError{Errors: res.Errors}
	}

	sub := &Submission{
		FormID:      f.ID,
		PatientID:   in.PatientID,
		ClinicID:    clinicID,
		FormVersion: f.Version,
		Data:        in.Answers,
		Status:      StatusPending,
	}
	if userID != uuid.Nil {
		sub.SubmittedBy = &userID
	}
	if SignatureSatisfied(f.Schema, in.Answers) {
		now := s.now().UTC()
		sub.Status = StatusCompleted
		sub.CompletedAt = &now
	}

	if s.phi != nil {
		if ids := encryptedFields(f.Schema); len(ids) > 0 {
			sealed, err := s.phi.SealFields(in.Answers, ids)
			if err != nil {
				return nil, fmt.Errorf("seal answers: %w", err)
			}
			sub.Data = sealed
		}
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	s.logger.Info().Str("submission_id", sub.ID.String()).Str("form_id", f.ID.String()).
		Int("form_version", f.Version).Str("status", sub.Status).Msg("submission stored")
	return sub, nil
}

// SignatureSatisfied reports whether answers meet the form's signature
// policy. When a signature is required, some visible signature field must
// hold a captured value; forms without a signature field fall back to a
// top-level "signature" answer.
func SignatureSatisfied(schema formschema.Schema, answers formschema.Answers) bool {
	if !schema.Settings.RequireSignature {
		return true
	}
	visible := formschema.Visibility(schema, answers)
	hasField := false
	for id, f := range schema.Fields {
		if f.Type != formschema.TypeSignature {
			continue
		}
		hasField = true
		if visible[id] && captured(answers[id]) {
			return true
		}
	}
	return !hasField && captured(answers["signature"])
}

func captured(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case bool:
		return v
	case map[string]any:
		return len(v) > 0
	case []any:
		return len(v) > 0
	}
	return true
}

// sealedLooking returns the first answer, in id order, whose value could be
// mistaken for a stored encrypted value.
func sealedLooking(answers formschema.Answers) (string, bool) {
	ids := make([]string, 0, len(answers))
	for id, v := range answers {
		if hipaa.IsSealed(v) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", false
	}
	sort.Strings(ids)
	return ids[0], true
}

func encryptedFields(schema formschema.Schema) []string {
	var ids []string
	for id, f := range schema.Fields {
		if f.Encrypted {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// open returns the submission's answers with the values of fields the
// schema marks encrypted decrypted. Other answers are never treated as
// ciphertext.
func (s *Service) open(sub *Submission, schema formschema.Schema) (formschema.Answers, error) {
	var sealed []string
	for _, id := range encryptedFields(schema) {
		if hipaa.IsSealed(sub.Data[id]) {
			sealed = append(sealed, id)
		}
	}
	if len(sealed) == 0 {
		return sub.Data, nil
	}
	if s.phi == nil {
		return nil, ErrSealedAnswers
	}
	opened, err := s.phi.OpenFields(sub.Data, sealed)
	if err != nil {
		return nil, fmt.Errorf("open answers: %w", err)
	}
	return opened, nil
}

func (s *Service) get(ctx context.Context, clinicID, id uuid.UUID) (*Submission, error) {
	sub, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, fmt.Errorf("%w: submission %s", ErrNotFound, id)
		}
		return nil, err
	}
	return sub, nil
}

// GetSubmission returns the submission with encrypted answers opened when a
// key is configured. Without a key they are returned sealed.
func (s *Service) GetSubmission(ctx context.Context, clinicID, id uuid.UUID) (*Submission, error) {
	sub, err := s.get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	f, err := s.loadForm(ctx, clinicID, sub.FormID)
	if err != nil {
		return nil, err
	}
	data, err := s.open(sub, f.Schema)
	switch {
	case errors.Is(err, ErrSealedAnswers):
	case err != nil:
		return nil, err
	default:
		sub.Data = data
	}
	return sub, nil
}

func (s *Service) ListSubmissions(ctx context.Context, clinicID uuid.UUID, f Filter, limit, offset int) ([]*ListItem, int, error) {
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, 0, invalid("unknown status %q", f.Status)
	}
	return s.repo.List(ctx, clinicID, f, limit, offset)
}

// RevalidateResult compares a stored submission with the form as it is now.
type RevalidateResult struct {
	formschema.Result
	SubmittedVersion int `json:"submittedVersion"`
	CurrentVersion   int `json:"currentVersion"`
}

// current loads the form a submission belongs to and the submission's
// opened answers.
func (s *Service) current(ctx context.Context, sub *Submission) (*form.Form, formschema.Answers, error) {
	f, err := s.loadForm(ctx, sub.ClinicID, sub.FormID)
	if err != nil {
		return nil, nil, err
	}
	answers, err := s.open(sub, f.Schema)
	if err != nil {
		return nil, nil, err
	}
	return f, answers, nil
}

// Revalidate checks stored answers against the form's current schema. The
// outcome can differ from submission time when the form changed since.
func (s *Service) Revalidate(ctx context.Context, clinicID, id uuid.UUID) (*RevalidateResult, error) {
	sub, err := s.get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	f, answers, err := s.current(ctx, sub)
	if err != nil {
		return nil, err
	}
	return &RevalidateResult{
		Result:           formschema.Validate(f.Schema, answers),
		SubmittedVersion: sub.FormVersion,
		CurrentVersion:   f.Version,
	}, nil
}

// Complete moves a pending submission to completed. Its answers must pass
// validation against the current schema and meet its signature policy.
func (s *Service) Complete(ctx context.Context, clinicID, id uuid.UUID) (*Submission, error) {
	sub, err := s.get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(sub.Status, StatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sub.Status, StatusCompleted)
	}
	f, answers, err := s.current(ctx, sub)
	if err != nil {
		return nil, err
	}
	if res := formschema.Validate(f.Schema, answers); !res.Valid {
		return nil, &ValidationError{Errors: res.Errors}
	}
	if !SignatureSatisfied(f.Schema, answers) {
		return nil, fmt.Errorf("%w: submission %s", ErrSignatureRequired, sub.ID)
	}
	return s.transition(ctx, sub, StatusCompleted)
}

// Archive moves a completed submission to archived.
func (s *Service) Archive(ctx context.Context, clinicID, id uuid.UUID) (*Submission, error) {
	sub, err := s.get(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(sub.Status, StatusArchived) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sub.Status, StatusArchived)
	}
	return s.transition(ctx, sub, StatusArchived)
}

func (s *Service) transition(ctx context.Context, sub *Submission, to string) (*Submission, error) {
	now := s.now().UTC()
	err := s.repo.UpdateStatus(ctx, sub.ClinicID, sub.ID, sub.Status, to, now)
	if db.IsNoRows(err) {
		// Someone else moved it first.
		return nil, fmt.Errorf("%w: submission %s changed concurrently", ErrInvalidTransition, sub.ID)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("submission_id", sub.ID.String()).Str("from", sub.Status).Str("to", to).Msg("submission status changed")
	sub.Status = to
	sub.UpdatedAt = now
	if to == StatusCompleted {
		sub.CompletedAt = &now
	}
	return sub, nil
}
