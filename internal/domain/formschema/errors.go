package formschema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrInvalidField = errors.New("invalid field")
	ErrNotFound     = errors.New("not found")
	ErrIndex        = errors.New("index out of range")
	ErrCycle        = errors.New("showIf dependency cycle")
)

// InvalidFieldError reports a field definition that violates the schema rules.
type InvalidFieldError struct {
	FieldID string
	Reason  string
}

func (e *InvalidFieldError) Error() string {
	if e.FieldID == "" {
		return fmt.Sprintf("invalid field: %s", e.Reason)
	}
	return fmt.Sprintf("invalid field %q: %s", e.FieldID, e.Reason)
}

func (e *InvalidFieldError) Is(target error) bool { return target == ErrInvalidField }

// NotFoundError reports an unknown field, section or template id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IndexError reports a reorder position outside a section's bounds.
type IndexError struct {
	SectionID string
	Index     int
	Len       int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range for section %q (len %d)", e.Index, e.SectionID, e.Len)
}

func (e *IndexError) Is(target error) bool { return target == ErrIndex }

// CycleError reports a showIf dependency cycle. Path starts and ends with the
// same field id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("showIf dependency cycle: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Is(target error) bool { return target == ErrCycle }
