package formschema

import (
	"encoding/json"
	"fmt"
	"slices"
)

// FieldType identifies the input control a field renders as.
type FieldType string

const (
	TypeText          FieldType = "text"
	TypeEmail         FieldType = "email"
	TypePhone         FieldType = "phone"
	TypeDate          FieldType = "date"
	TypeSelect        FieldType = "select"
	TypeRadio         FieldType = "radio"
	TypeCheckbox      FieldType = "checkbox"
	TypeCheckboxGroup FieldType = "checkbox-group"
	TypeTextarea      FieldType = "textarea"
	TypeFile          FieldType = "file"
	TypeSignature     FieldType = "signature"
	TypeAddress       FieldType = "address"
	TypeRepeater      FieldType = "repeater"
	TypeStaticText    FieldType = "static-text"
)

var validFieldTypes = map[FieldType]bool{
	TypeText: true, TypeEmail: true, TypePhone: true, TypeDate: true,
	TypeSelect: true, TypeRadio: true, TypeCheckbox: true, TypeCheckboxGroup: true,
	TypeTextarea: true, TypeFile: true, TypeSignature: true, TypeAddress: true,
	TypeRepeater: true, TypeStaticText: true,
}

// FieldTypes lists every supported field type in palette order.
func FieldTypes() []FieldType {
	return []FieldType{
		TypeText, TypeEmail, TypePhone, TypeDate, TypeSelect, TypeRadio,
		TypeCheckbox, TypeCheckboxGroup, TypeTextarea, TypeFile, TypeSignature,
		TypeAddress, TypeRepeater, TypeStaticText,
	}
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool { return validFieldTypes[t] }

// IsChoice reports whether the type requires a list of options.
func (t FieldType) IsChoice() bool {
	return t == TypeSelect || t == TypeRadio || t == TypeCheckboxGroup
}

// IsInteractive reports whether the type collects an answer.
func (t FieldType) IsInteractive() bool { return t != TypeStaticText }

// Option is one selectable value of a choice field.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldDefinition describes a single form field.
type FieldDefinition struct {
	ID           string            `json:"id"`
	Type         FieldType         `json:"type"`
	Label        string            `json:"label,omitempty"`
	Placeholder  string            `json:"placeholder,omitempty"`
	Required     bool              `json:"required"`
	Options      []Option          `json:"options,omitempty"`
	Mask         string            `json:"mask,omitempty"`
	Pattern      string            `json:"pattern,omitempty"`
	ShowIf       *Condition        `json:"showIf,omitempty"`
	Subfields    []string          `json:"subfields,omitempty"`
	Content      string            `json:"content,omitempty"`
	DefaultValue string            `json:"defaultValue,omitempty"`
	Accept       string            `json:"accept,omitempty"`
	Encrypted    bool              `json:"encrypted,omitempty"`
	RowFields    []FieldDefinition `json:"fields,omitempty"`
}

// Validate checks the field in isolation. References to other fields are
// checked by Schema.Validate.
func (f FieldDefinition) Validate() error {
	if f.ID == "" {
		return &InvalidFieldError{Reason: "id is required"}
	}
	if !f.Type.Valid() {
		return &InvalidFieldError{FieldID: f.ID, Reason: fmt.Sprintf("unknown type %q", f.Type)}
	}
	if f.Type.IsChoice() && len(f.Options) == 0 {
		return &InvalidFieldError{FieldID: f.ID, Reason: fmt.Sprintf("%s field requires at least one option", f.Type)}
	}
	if f.Type.IsInteractive() && f.Label == "" {
		return &InvalidFieldError{FieldID: f.ID, Reason: "label is required"}
	}
	if f.ShowIf != nil {
		if err := f.ShowIf.validate(); err != nil {
			return &InvalidFieldError{FieldID: f.ID, Reason: err.Error()}
		}
	}
	seen := make(map[string]bool, len(f.RowFields))
	for _, row := range f.RowFields {
		if err := row.Validate(); err != nil {
			return &InvalidFieldError{FieldID: f.ID, Reason: fmt.Sprintf("row field: %v", err)}
		}
		if seen[row.ID] {
			return &InvalidFieldError{FieldID: f.ID, Reason: fmt.Sprintf("duplicate row field %q", row.ID)}
		}
		seen[row.ID] = true
	}
	return nil
}

// Clone returns a deep copy of the field.
func (f FieldDefinition) Clone() FieldDefinition {
	out := f
	out.Options = slices.Clone(f.Options)
	out.Subfields = slices.Clone(f.Subfields)
	if f.ShowIf != nil {
		c := *f.ShowIf
		out.ShowIf = &c
	}
	if f.RowFields != nil {
		out.RowFields = make([]FieldDefinition, len(f.RowFields))
		for i, row := range f.RowFields {
			out.RowFields[i] = row.Clone()
		}
	}
	return out
}

// HasOption reports whether value is one of the field's option values.
func (f FieldDefinition) HasOption(value string) bool {
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// FieldPatch is a partial update applied by Schema.UpdateField. Nil members
// are left unchanged. ClearShowIf removes the condition; it wins over ShowIf.
type FieldPatch struct {
	Type         *FieldType         `json:"type,omitempty"`
	Label        *string            `json:"label,omitempty"`
	Placeholder  *string            `json:"placeholder,omitempty"`
	Required     *bool              `json:"required,omitempty"`
	Options      *[]Option          `json:"options,omitempty"`
	Mask         *string            `json:"mask,omitempty"`
	Pattern      *string            `json:"pattern,omitempty"`
	ShowIf       *Condition         `json:"showIf,omitempty"`
	ClearShowIf  bool               `json:"clearShowIf,omitempty"`
	Subfields    *[]string          `json:"subfields,omitempty"`
	Content      *string            `json:"content,omitempty"`
	DefaultValue *string            `json:"defaultValue,omitempty"`
	Accept       *string            `json:"accept,omitempty"`
	Encrypted    *bool              `json:"encrypted,omitempty"`
	RowFields    *[]FieldDefinition `json:"fields,omitempty"`
}

func (p FieldPatch) apply(f FieldDefinition) FieldDefinition {
	if p.Type != nil {
		f.Type = *p.Type
	}
	if p.Label != nil {
		f.Label = *p.Label
	}
	if p.Placeholder != nil {
		f.Placeholder = *p.Placeholder
	}
	if p.Required != nil {
		f.Required = *p.Required
	}
	if p.Options != nil {
		f.Options = slices.Clone(*p.Options)
	}
	if p.Mask != nil {
		f.Mask = *p.Mask
	}
	if p.Pattern != nil {
		f.Pattern = *p.Pattern
	}
	if p.ShowIf != nil {
		c := *p.ShowIf
		f.ShowIf = &c
	}
	if p.ClearShowIf {
		f.ShowIf = nil
	}
	if p.Subfields != nil {
		f.Subfields = slices.Clone(*p.Subfields)
	}
	if p.Content != nil {
		f.Content = *p.Content
	}
	if p.DefaultValue != nil {
		f.DefaultValue = *p.DefaultValue
	}
	if p.Accept != nil {
		f.Accept = *p.Accept
	}
	if p.Encrypted != nil {
		f.Encrypted = *p.Encrypted
	}
	if p.RowFields != nil {
		rows := make([]FieldDefinition, len(*p.RowFields))
		for i, row := range *p.RowFields {
			rows[i] = row.Clone()
		}
		f.RowFields = rows
	}
	return f
}

func decodeField(data []byte) (FieldDefinition, error) {
	var f FieldDefinition
	if err := json.Unmarshal(data, &f); err != nil {
		return FieldDefinition{}, fmt.Errorf("decode field: %w", err)
	}
	return f, nil
}
