package formschema

import "slices"

// Equal reports whether two schemas have the same content: the same field
// definitions by id, the same sections in the same order with the same field
// order, and the same settings. Nil and empty collections compare equal.
func Equal(a, b Schema) bool {
	if a.Settings != b.Settings {
		return false
	}
	if len(a.Fields) != len(b.Fields) {
		return false
	}
	for id, fa := range a.Fields {
		fb, ok := b.Fields[id]
		if !ok || !FieldsEqual(fa, fb) {
			return false
		}
	}
	return slices.EqualFunc(a.Sections, b.Sections, func(x, y Section) bool {
		return x.ID == y.ID && x.Title == y.Title && slices.Equal(x.Fields, y.Fields)
	})
}

// FieldsEqual compares two field definitions member by member.
func FieldsEqual(a, b FieldDefinition) bool {
	if a.ID != b.ID || a.Type != b.Type || a.Label != b.Label ||
		a.Placeholder != b.Placeholder || a.Required != b.Required ||
		a.Mask != b.Mask || a.Pattern != b.Pattern || a.Content != b.Content ||
		a.DefaultValue != b.DefaultValue || a.Accept != b.Accept ||
		a.Encrypted != b.Encrypted {
		return false
	}
	if (a.ShowIf == nil) != (b.ShowIf == nil) {
		return false
	}
	if a.ShowIf != nil && *a.ShowIf != *b.ShowIf {
		return false
	}
	return slices.Equal(a.Options, b.Options) &&
		slices.Equal(a.Subfields, b.Subfields) &&
		slices.EqualFunc(a.RowFields, b.RowFields, FieldsEqual)
}
