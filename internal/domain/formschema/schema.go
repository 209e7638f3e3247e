package formschema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// Section groups fields under a title. Fields holds field ids in display order.
type Section struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Fields []string `json:"fields"`
}

// Settings are form-wide rendering and completion options.
type Settings struct {
	RequireSignature    bool   `json:"requireSignature"`
	AllowSave           bool   `json:"allowSave"`
	ShowProgress        bool   `json:"showProgress"`
	ConfirmationMessage string `json:"confirmationMessage,omitempty"`
}

// Schema is the editable content of a form: its fields, their grouping into
// sections and the form settings. The zero value is an empty schema.
type Schema struct {
	Fields   map[string]FieldDefinition
	Sections []Section
	Settings Settings
}

// DefaultSchema is the content of a newly created blank form.
func DefaultSchema() Schema {
	return Schema{
		Fields: map[string]FieldDefinition{},
		Sections: []Section{
			{ID: "section-1", Title: "General Information", Fields: []string{}},
		},
		Settings: Settings{RequireSignature: true, AllowSave: true, ShowProgress: true},
	}
}

// Field returns the definition for id.
func (s Schema) Field(id string) (FieldDefinition, bool) {
	f, ok := s.Fields[id]
	return f, ok
}

// Section returns the section with id and its position.
func (s Schema) Section(id string) (Section, int, bool) {
	for i, sec := range s.Sections {
		if sec.ID == id {
			return sec, i, true
		}
	}
	return Section{}, -1, false
}

// SectionOf returns the id of the section containing fieldID.
func (s Schema) SectionOf(fieldID string) (string, bool) {
	for _, sec := range s.Sections {
		if slices.Contains(sec.Fields, fieldID) {
			return sec.ID, true
		}
	}
	return "", false
}

// DisplayOrder returns every field id: section fields in section order first,
// then fields not placed in any section sorted by id.
func (s Schema) DisplayOrder() []string {
	out := make([]string, 0, len(s.Fields))
	placed := make(map[string]bool, len(s.Fields))
	for _, sec := range s.Sections {
		for _, id := range sec.Fields {
			if _, ok := s.Fields[id]; ok && !placed[id] {
				placed[id] = true
				out = append(out, id)
			}
		}
	}
	var rest []string
	for id := range s.Fields {
		if !placed[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Clone returns a deep copy of the schema.
func (s Schema) Clone() Schema {
	out := Schema{
		Fields:   make(map[string]FieldDefinition, len(s.Fields)),
		Sections: make([]Section, len(s.Sections)),
		Settings: s.Settings,
	}
	for id, f := range s.Fields {
		out.Fields[id] = f.Clone()
	}
	for i, sec := range s.Sections {
		out.Sections[i] = Section{ID: sec.ID, Title: sec.Title, Fields: slices.Clone(sec.Fields)}
		if out.Sections[i].Fields == nil {
			out.Sections[i].Fields = []string{}
		}
	}
	return out
}

// Validate checks every field, every showIf reference, the absence of showIf
// cycles and the section layout.
func (s Schema) Validate() error {
	for _, id := range sortedIDs(s.Fields) {
		f := s.Fields[id]
		if f.ID != id {
			return &InvalidFieldError{FieldID: id, Reason: fmt.Sprintf("keyed under %q but declares id %q", id, f.ID)}
		}
		if err := f.Validate(); err != nil {
			return err
		}
		if f.ShowIf != nil {
			if _, ok := s.Fields[f.ShowIf.Field]; !ok {
				return &InvalidFieldError{FieldID: id, Reason: fmt.Sprintf("showIf references unknown field %q", f.ShowIf.Field)}
			}
		}
	}
	if err := checkCycles(s.Fields); err != nil {
		return err
	}

	sectionIDs := make(map[string]bool, len(s.Sections))
	owner := make(map[string]string, len(s.Fields))
	for _, sec := range s.Sections {
		if sec.ID == "" {
			return &InvalidFieldError{Reason: "section id is required"}
		}
		if sectionIDs[sec.ID] {
			return &InvalidFieldError{Reason: fmt.Sprintf("duplicate section id %q", sec.ID)}
		}
		sectionIDs[sec.ID] = true
		for _, fid := range sec.Fields {
			if _, ok := s.Fields[fid]; !ok {
				return &NotFoundError{Kind: "field", ID: fid}
			}
			if prev, ok := owner[fid]; ok {
				return &InvalidFieldError{FieldID: fid, Reason: fmt.Sprintf("placed in sections %q and %q", prev, sec.ID)}
			}
			owner[fid] = sec.ID
		}
	}
	return nil
}

func sortedIDs(fields map[string]FieldDefinition) []string {
	ids := make([]string, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type schemaWire struct {
	Fields   []FieldDefinition `json:"fields"`
	Sections []Section         `json:"sections"`
	Settings Settings          `json:"settings"`
}

// MarshalJSON emits fields as an array in display order.
func (s Schema) MarshalJSON() ([]byte, error) {
	w := schemaWire{
		Fields:   make([]FieldDefinition, 0, len(s.Fields)),
		Sections: s.Sections,
		Settings: s.Settings,
	}
	for _, id := range s.DisplayOrder() {
		w.Fields = append(w.Fields, s.Fields[id])
	}
	if w.Sections == nil {
		w.Sections = []Section{}
	}
	return json.Marshal(w)
}

type sectionIn struct {
	ID     string            `json:"id"`
	Title  string            `json:"title"`
	Fields []json.RawMessage `json:"fields"`
}

type schemaIn struct {
	Fields   json.RawMessage `json:"fields"`
	Sections []sectionIn     `json:"sections"`
	Settings Settings        `json:"settings"`
}

// UnmarshalJSON accepts fields either as an array or as an object keyed by
// id. Section entries may be field ids or inline field definitions; inline
// definitions are lifted into Fields. The result is not validated.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var in schemaIn
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode schema: %w", err)
	}
	out := Schema{Fields: map[string]FieldDefinition{}, Sections: []Section{}, Settings: in.Settings}

	add := func(f FieldDefinition) error {
		if f.ID == "" {
			return &InvalidFieldError{Reason: "id is required"}
		}
		if prev, ok := out.Fields[f.ID]; ok && !FieldsEqual(prev, f) {
			return &InvalidFieldError{FieldID: f.ID, Reason: "defined more than once"}
		}
		out.Fields[f.ID] = f
		return nil
	}

	raw := bytes.TrimSpace(in.Fields)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '[':
		var list []FieldDefinition
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("decode schema fields: %w", err)
		}
		for _, f := range list {
			if err := add(f); err != nil {
				return err
			}
		}
	case raw[0] == '{':
		var byID map[string]FieldDefinition
		if err := json.Unmarshal(raw, &byID); err != nil {
			return fmt.Errorf("decode schema fields: %w", err)
		}
		for _, id := range sortedIDs(byID) {
			f := byID[id]
			if f.ID == "" {
				f.ID = id
			}
			if err := add(f); err != nil {
				return err
			}
		}
	default:
		return &InvalidFieldError{Reason: "fields must be an array or an object"}
	}

	for _, sec := range in.Sections {
		ids := make([]string, 0, len(sec.Fields))
		for _, entry := range sec.Fields {
			entry = bytes.TrimSpace(entry)
			if len(entry) > 0 && entry[0] == '"' {
				var id string
				if err := json.Unmarshal(entry, &id); err != nil {
					return fmt.Errorf("decode section %q: %w", sec.ID, err)
				}
				ids = append(ids, id)
				continue
			}
			f, err := decodeField(entry)
			if err != nil {
				return fmt.Errorf("decode section %q: %w", sec.ID, err)
			}
			if err := add(f); err != nil {
				return err
			}
			ids = append(ids, f.ID)
		}
		out.Sections = append(out.Sections, Section{ID: sec.ID, Title: sec.Title, Fields: ids})
	}
	*s = out
	return nil
}

// Parse decodes and validates a schema document.
func Parse(data []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return Schema{}, err
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}
