package formschema

import (
	"fmt"
	"strings"
)

// ReasonRequired is reported for a visible required field without an answer.
const ReasonRequired = "required"

// FormatReason builds the reason reported for a format mismatch.
func FormatReason(rule string) string { return "format:" + rule }

// FieldError is one validation failure.
type FieldError struct {
	FieldID string `json:"field"`
	Reason  string `json:"reason"`
}

func (e FieldError) String() string { return fmt.Sprintf("%s: %s", e.FieldID, e.Reason) }

// Result is the outcome of validating a submission. Errors lists every
// failure in display order; Valid is true iff it is empty.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

// Answers maps field ids to submitted values as decoded from JSON: strings,
// numbers, booleans, []any for multi-value fields and map[string]any for
// composite fields.
type Answers map[string]any

// Visibility resolves which fields are shown for the given answers. Fields
// are resolved in dependency order: a field is visible when it has no
// condition, or when the field it depends on is visible and that field's
// answer (or default value) satisfies the condition. Fields on a dependency
// cycle or depending on a missing field are never visible.
func Visibility(s Schema, answers Answers) map[string]bool {
	order, _ := dependencyOrder(s.Fields)
	visible := make(map[string]bool, len(s.Fields))
	for _, id := range order {
		f := s.Fields[id]
		if f.ShowIf == nil {
			visible[id] = true
			continue
		}
		dep, ok := s.Fields[f.ShowIf.Field]
		if !ok || !visible[dep.ID] {
			visible[id] = false
			continue
		}
		visible[id] = f.ShowIf.Holds(answerOrDefault(dep, answers))
	}
	return visible
}

func answerOrDefault(f FieldDefinition, answers Answers) any {
	if v, ok := answers[f.ID]; ok && v != nil {
		return v
	}
	if f.DefaultValue != "" {
		return f.DefaultValue
	}
	return nil
}

// Validate checks answers against the schema and returns every failure.
// Neither argument is modified. Answers for invisible or unknown fields are
// ignored.
func Validate(s Schema, answers Answers) Result {
	visible := Visibility(s, answers)
	res := Result{Errors: []FieldError{}}

	for _, id := range s.DisplayOrder() {
		if !visible[id] {
			continue
		}
		f := s.Fields[id]
		if !f.Type.IsInteractive() {
			continue
		}
		v := answers[id]
		rule := FormatRule(f)

		if f.Type == TypeAddress {
			if e, failed := checkAddress(f, v); failed {
				res.Errors = append(res.Errors, e)
			}
			continue
		}
		if isEmpty(f, v) {
			if f.Required && rule != FormatSSN {
				res.Errors = append(res.Errors, FieldError{FieldID: id, Reason: ReasonRequired})
			}
			continue
		}

		if rule == "" {
			continue
		}
		str, ok := v.(string)
		if !ok || !CheckFormat(rule, str) {
			res.Errors = append(res.Errors, FieldError{FieldID: id, Reason: FormatReason(rule)})
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// isEmpty reports whether v does not count as an answer for a field of f's type.
func isEmpty(f FieldDefinition, v any) bool {
	if v == nil {
		return true
	}
	switch f.Type {
	case TypeCheckbox:
		switch b := v.(type) {
		case bool:
			return !b
		case string:
			switch strings.ToLower(b) {
			case "true", "on", "yes":
				return false
			}
			return true
		}
		return true
	case TypeCheckboxGroup, TypeRepeater:
		switch list := v.(type) {
		case []any:
			return len(list) == 0
		case []string:
			return len(list) == 0
		case []map[string]any:
			return len(list) == 0
		}
		return true
	case TypeAddress:
		return addressEmpty(f, v)
	case TypeSignature, TypeFile:
		switch x := v.(type) {
		case string:
			return strings.TrimSpace(x) == ""
		case map[string]any:
			return len(x) == 0
		}
		return true
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

// addressEmpty treats an address as answered only when every declared
// subfield carries a non-blank value. Without declared subfields any
// non-blank part is enough.
func addressEmpty(f FieldDefinition, v any) bool {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) == ""
	case map[string]any:
		if len(f.Subfields) == 0 {
			for _, part := range x {
				if s, ok := part.(string); ok && strings.TrimSpace(s) != "" {
					return false
				}
			}
			return true
		}
		for _, name := range f.Subfields {
			s, _ := x[name].(string)
			if strings.TrimSpace(s) == "" {
				return true
			}
		}
		return false
	}
	return true
}

// checkAddress reports a required failure for an incomplete required
// address, otherwise a zip format failure when a zip part is present.
func checkAddress(f FieldDefinition, v any) (FieldError, bool) {
	if f.Required && addressEmpty(f, v) {
		return FieldError{FieldID: f.ID, Reason: ReasonRequired}, true
	}
	if zip, ok := addressZip(v); ok && !CheckFormat(FormatZip, zip) {
		return FieldError{FieldID: f.ID, Reason: FormatReason(FormatZip)}, true
	}
	return FieldError{}, false
}

func addressZip(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	zip, ok := m["zip"].(string)
	return zip, ok && strings.TrimSpace(zip) != ""
}
