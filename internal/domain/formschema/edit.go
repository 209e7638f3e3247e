package formschema

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// newFieldID generates ids for fields added through AddField.
var newFieldID = func() string { return "field-" + uuid.NewString() }

// NewField returns the default definition used when a field of type t is
// added from the palette.
func NewField(id string, t FieldType) FieldDefinition {
	f := FieldDefinition{
		ID:       id,
		Type:     t,
		Label:    fmt.Sprintf("New %s field", t),
		Required: false,
	}
	if t.IsChoice() {
		f.Options = []Option{
			{Value: "option1", Label: "Option 1"},
			{Value: "option2", Label: "Option 2"},
		}
	}
	if t == TypeAddress {
		f.Subfields = []string{"street", "city", "state", "zip"}
	}
	return f
}

// AddField appends a new field of type t to the end of section sectionID and
// returns the updated schema together with the generated field id. The
// receiver is not modified.
func (s Schema) AddField(t FieldType, sectionID string) (Schema, string, error) {
	if !t.Valid() {
		return Schema{}, "", &InvalidFieldError{Reason: fmt.Sprintf("unknown type %q", t)}
	}
	_, idx, ok := s.Section(sectionID)
	if !ok {
		return Schema{}, "", &NotFoundError{Kind: "section", ID: sectionID}
	}
	out := s.Clone()
	id := newFieldID()
	for {
		if _, taken := out.Fields[id]; !taken {
			break
		}
		id = newFieldID()
	}
	out.Fields[id] = NewField(id, t)
	out.Sections[idx].Fields = append(out.Sections[idx].Fields, id)
	return out, id, nil
}

// UpdateField merges patch into the field and re-validates the resulting
// schema. A patch that would introduce a showIf cycle fails with a
// CycleError and the receiver is left as it was.
func (s Schema) UpdateField(fieldID string, patch FieldPatch) (Schema, error) {
	f, ok := s.Fields[fieldID]
	if !ok {
		return Schema{}, &NotFoundError{Kind: "field", ID: fieldID}
	}
	out := s.Clone()
	out.Fields[fieldID] = patch.apply(f.Clone())
	if err := out.Validate(); err != nil {
		return Schema{}, err
	}
	return out, nil
}

// RemoveField deletes the field, drops it from every section and clears the
// showIf of every field that depended on it. Those fields become
// unconditionally visible.
func (s Schema) RemoveField(fieldID string) (Schema, error) {
	if _, ok := s.Fields[fieldID]; !ok {
		return Schema{}, &NotFoundError{Kind: "field", ID: fieldID}
	}
	out := s.Clone()
	delete(out.Fields, fieldID)
	for i := range out.Sections {
		out.Sections[i].Fields = slices.DeleteFunc(out.Sections[i].Fields, func(id string) bool {
			return id == fieldID
		})
	}
	for id, f := range out.Fields {
		if f.ShowIf != nil && f.ShowIf.Field == fieldID {
			f.ShowIf = nil
			out.Fields[id] = f
		}
	}
	return out, nil
}

// Dependents returns the ids of fields whose showIf refers to fieldID.
func (s Schema) Dependents(fieldID string) []string {
	var out []string
	for _, id := range sortedIDs(s.Fields) {
		if f := s.Fields[id]; f.ShowIf != nil && f.ShowIf.Field == fieldID {
			out = append(out, id)
		}
	}
	return out
}

// ReorderField moves fieldID from position fromIndex of section from to
// position toIndex of section to. toIndex is interpreted after the field has
// been removed from its source position. Nothing changes on error.
func (s Schema) ReorderField(fieldID, from string, fromIndex int, to string, toIndex int) (Schema, error) {
	src, fromIdx, ok := s.Section(from)
	if !ok {
		return Schema{}, &NotFoundError{Kind: "section", ID: from}
	}
	dst, toIdx, ok := s.Section(to)
	if !ok {
		return Schema{}, &NotFoundError{Kind: "section", ID: to}
	}
	if fromIndex < 0 || fromIndex >= len(src.Fields) {
		return Schema{}, &IndexError{SectionID: from, Index: fromIndex, Len: len(src.Fields)}
	}
	if src.Fields[fromIndex] != fieldID {
		return Schema{}, &NotFoundError{Kind: "field", ID: fmt.Sprintf("%s at %s[%d]", fieldID, from, fromIndex)}
	}
	dstLen := len(dst.Fields)
	if from == to {
		dstLen--
	}
	if toIndex < 0 || toIndex > dstLen {
		return Schema{}, &IndexError{SectionID: to, Index: toIndex, Len: dstLen}
	}

	out := s.Clone()
	out.Sections[fromIdx].Fields = slices.Delete(out.Sections[fromIdx].Fields, fromIndex, fromIndex+1)
	out.Sections[toIdx].Fields = slices.Insert(out.Sections[toIdx].Fields, toIndex, fieldID)
	return out, nil
}

// AddSection appends an empty section.
func (s Schema) AddSection(id, title string) (Schema, error) {
	if id == "" {
		return Schema{}, &InvalidFieldError{Reason: "section id is required"}
	}
	if _, _, exists := s.Section(id); exists {
		return Schema{}, &InvalidFieldError{Reason: fmt.Sprintf("duplicate section id %q", id)}
	}
	out := s.Clone()
	out.Sections = append(out.Sections, Section{ID: id, Title: title, Fields: []string{}})
	return out, nil
}
