package submission

import (
	"time"

	"github.com/google/uuid"

	"github.com/intake/intake/internal/domain/formschema"
)

// Submission statuses. Records move pending -> completed -> archived and
// never back.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

var transitions = map[string]string{
	StatusPending:   StatusCompleted,
	StatusCompleted: StatusArchived,
}

// CanTransition reports whether a submission in status from may move to to.
func CanTransition(from, to string) bool {
	return transitions[from] == to
}

// ValidStatus reports whether s is a known status.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusCompleted || s == StatusArchived
}

// Submission is a patient's stored answers to a form. FormVersion records
// the form version the answers were validated against; it is informational
// and revalidation always runs against the current schema.
type Submission struct {
	ID          uuid.UUID          `json:"id"`
	FormID      uuid.UUID          `json:"formId"`
	PatientID   uuid.UUID          `json:"patientId"`
	ClinicID    uuid.UUID          `json:"clinicId"`
	FormVersion int                `json:"formVersion"`
	Data        formschema.Answers `json:"submissionData"`
	Status      string             `json:"status"`
	SubmittedBy *uuid.UUID         `json:"submittedBy,omitempty"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
	SubmittedAt time.Time          `json:"submittedAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// ListItem is the listing projection of a submission, joined with the
// names a dashboard shows. Answers are not included.
type ListItem struct {
	ID          uuid.UUID  `json:"id"`
	FormID      uuid.UUID  `json:"formId"`
	FormName    string     `json:"formName"`
	FormVersion int        `json:"formVersion"`
	PatientID   uuid.UUID  `json:"patientId"`
	PatientName string     `json:"patientName"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
}

type Filter struct {
	FormID    *uuid.UUID
	PatientID *uuid.UUID
	Status    string
}

// Activity is the slice of a submission the dashboard aggregates.
type Activity struct {
	Status      string
	SubmittedAt time.Time
	CompletedAt *time.Time
}
