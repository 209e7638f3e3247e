package formschema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ConditionOp selects how a Condition compares the controlling answer.
type ConditionOp string

const (
	OpEquals   ConditionOp = "equals"
	OpContains ConditionOp = "contains"
)

// Condition makes a field visible only when another field's answer matches.
// A nil *Condition on a field means the field is always shown.
//
// On the wire a condition is {"field": F, "equals": V} or
// {"field": F, "contains": V}.
type Condition struct {
	Op    ConditionOp
	Field string
	Value string
}

// Equals builds a condition satisfied when field's answer equals value.
func Equals(field, value string) *Condition {
	return &Condition{Op: OpEquals, Field: field, Value: value}
}

// Contains builds a condition satisfied when field's multi-valued answer
// includes value.
func Contains(field, value string) *Condition {
	return &Condition{Op: OpContains, Field: field, Value: value}
}

func (c Condition) validate() error {
	if c.Field == "" {
		return errors.New("showIf field is required")
	}
	if c.Op != OpEquals && c.Op != OpContains {
		return fmt.Errorf("unknown showIf operator %q", c.Op)
	}
	return nil
}

type conditionJSON struct {
	Field    string          `json:"field"`
	Equals   json.RawMessage `json:"equals,omitempty"`
	Contains json.RawMessage `json:"contains,omitempty"`
}

func (c Condition) MarshalJSON() ([]byte, error) {
	v, err := json.Marshal(c.Value)
	if err != nil {
		return nil, err
	}
	out := conditionJSON{Field: c.Field}
	switch c.Op {
	case OpEquals:
		out.Equals = v
	case OpContains:
		out.Contains = v
	default:
		return nil, fmt.Errorf("unknown showIf operator %q", c.Op)
	}
	return json.Marshal(out)
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var in conditionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode showIf: %w", err)
	}
	switch {
	case in.Equals != nil && in.Contains != nil:
		return errors.New("showIf must set exactly one of equals or contains")
	case in.Equals != nil:
		c.Op = OpEquals
		c.Value = scalarString(in.Equals)
	case in.Contains != nil:
		c.Op = OpContains
		c.Value = scalarString(in.Contains)
	default:
		return errors.New("showIf must set equals or contains")
	}
	c.Field = in.Field
	return nil
}

// scalarString accepts JSON strings, numbers and booleans as condition values.
func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// Holds reports whether the condition is satisfied by answer.
func (c Condition) Holds(answer any) bool {
	if answer == nil {
		return false
	}
	switch c.Op {
	case OpEquals:
		if _, multi := answer.([]any); multi {
			return false
		}
		if _, multi := answer.([]string); multi {
			return false
		}
		return fmt.Sprintf("%v", answer) == c.Value
	case OpContains:
		switch v := answer.(type) {
		case []any:
			for _, item := range v {
				if item != nil && fmt.Sprintf("%v", item) == c.Value {
					return true
				}
			}
			return false
		case []string:
			for _, item := range v {
				if item == c.Value {
					return true
				}
			}
			return false
		case string:
			return v == c.Value
		}
	}
	return false
}
