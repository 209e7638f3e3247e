package form

import (
	"time"

	"github.com/google/uuid"

	"github.com/intake/intake/internal/domain/formschema"
)

// Form types.
const (
	TypeIntake         = "intake"
	TypeConsent        = "consent"
	TypeMedicalHistory = "medical_history"
	TypeInsurance      = "insurance"
	TypeCustom         = "custom"
)

var validFormTypes = map[string]bool{
	TypeIntake: true, TypeConsent: true, TypeMedicalHistory: true,
	TypeInsurance: true, TypeCustom: true,
}

// ValidType reports whether t is a known form type.
func ValidType(t string) bool { return validFormTypes[t] }

// Form is a clinic's persisted form: metadata around a formschema.Schema.
// Version starts at 1 and grows by one whenever the schema content changes.
type Form struct {
	ID          uuid.UUID         `json:"id"`
	ClinicID    uuid.UUID         `json:"clinicId"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	FormType    string            `json:"formType"`
	Schema      formschema.Schema `json:"formData"`
	IsActive    bool              `json:"isActive"`
	Version     int               `json:"version"`
	CreatedBy   *uuid.UUID        `json:"createdBy,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// Edit is a save request. Nil members are left unchanged.
type Edit struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	IsActive    *bool              `json:"isActive"`
	Schema      *formschema.Schema `json:"formData"`
}

// Save applies e to the form. The schema is replaced and the version bumped
// by exactly one only when the new schema differs structurally from the
// current one; metadata edits never touch the version. It reports whether
// the version changed.
func (f *Form) Save(e Edit) bool {
	if e.Name != nil {
		f.Name = *e.Name
	}
	if e.Description != nil {
		f.Description = *e.Description
	}
	if e.IsActive != nil {
		f.IsActive = *e.IsActive
	}
	if e.Schema == nil || formschema.Equal(f.Schema, *e.Schema) {
		return false
	}
	f.Schema = e.Schema.Clone()
	f.Version++
	return true
}

// Duplicate returns an unsaved active copy with the same schema content,
// the name suffixed " (Copy)" and the version reset to 1.
func (f *Form) Duplicate() *Form {
	return &Form{
		ClinicID:    f.ClinicID,
		Name:        f.Name + " (Copy)",
		Description: f.Description,
		FormType:    f.FormType,
		Schema:      f.Schema.Clone(),
		IsActive:    true,
		Version:     1,
	}
}

// Filter narrows List results.
type Filter struct {
	// Active is nil for all forms.
	Active *bool
	Type   string
	// Search matches name or description.
	Search string
}
