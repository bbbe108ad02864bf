package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedConditions is returned for conditions that are not a JSON object
// of strings or lists of strings.
var ErrMalformedConditions = errors.New("malformed conditions")

// ConditionValue is either a single expected value or a set of accepted ones.
type ConditionValue struct {
	values []string
	set    bool
}

// Scalar returns a condition that requires equality with v.
func Scalar(v string) ConditionValue {
	return ConditionValue{values: []string{v}}
}

// OneOf returns a condition that requires membership in vs.
func OneOf(vs ...string) ConditionValue {
	return ConditionValue{values: append([]string(nil), vs...), set: true}
}

// IsSet reports whether the value is a membership list.
func (v ConditionValue) IsSet() bool {
	return v.set
}

// Matches reports whether actual satisfies the condition.
func (v ConditionValue) Matches(actual string) bool {
	if !v.set {
		return len(v.values) == 1 && v.values[0] == actual
	}
	for _, candidate := range v.values {
		if candidate == actual {
			return true
		}
	}
	return false
}

// MarshalJSON implements json.Marshaler.
func (v ConditionValue) MarshalJSON() ([]byte, error) {
	if v.set {
		if v.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.values)
	}
	if len(v.values) != 1 {
		return nil, ErrMalformedConditions
	}
	return json.Marshal(v.values[0])
}

// UnmarshalJSON accepts a string, a number, a boolean, or an array of those.
// Numbers and booleans keep their JSON text so they compare against the
// string attributes of a request.
func (v *ConditionValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrMalformedConditions
	}
	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedConditions, err)
		}
		values := make([]string, 0, len(items))
		for _, item := range items {
			s, err := scalarText(item)
			if err != nil {
				return err
			}
			values = append(values, s)
		}
		*v = ConditionValue{values: values, set: true}
		return nil
	}
	s, err := scalarText(data)
	if err != nil {
		return err
	}
	*v = ConditionValue{values: []string{s}}
	return nil
}

func scalarText(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", ErrMalformedConditions
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedConditions, err)
		}
		return s, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedConditions, err)
		}
		if b {
			return "true", nil
		}
		return "false", nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedConditions, err)
		}
		return n.String(), nil
	}
	return "", fmt.Errorf("%w: unsupported value %s", ErrMalformedConditions, string(data))
}

// Conditions maps attribute names to expected values. Every entry must hold.
type Conditions map[string]ConditionValue

// ParseConditions decodes stored conditions. Empty input and JSON null yield
// no conditions.
func ParseConditions(raw json.RawMessage) (Conditions, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedConditions)
	}
	var conds Conditions
	if err := json.Unmarshal(raw, &conds); err != nil {
		if errors.Is(err, ErrMalformedConditions) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedConditions, err)
	}
	return conds, nil
}

// Match reports whether attrs satisfies every condition. A missing attribute
// fails its condition.
func (c Conditions) Match(attrs Attributes) bool {
	for key, expected := range c {
		actual, ok := attrs[key]
		if !ok || !expected.Matches(actual) {
			return false
		}
	}
	return true
}
