package opticks

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the payload carried by a Value.
type Kind uint8

const (
	// KindNone marks the zero Value. As a forced override it means "remove".
	KindNone Kind = iota
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "none"
	}
}

// Value is a tagged toggle value: either a boolean decision or a variation key.
type Value struct {
	kind Kind
	b    bool
	s    string
}

// Unset is the removal sentinel accepted by ApplyForcedOverrides.
var Unset = Value{}

// BoolValue wraps a boolean decision.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// StringValue wraps a variation key.
func StringValue(s string) Value {
	return Value{kind: KindString, s: s}
}

// ValueOf converts untyped input into a Value. nil maps to Unset.
func ValueOf(v any) (Value, error) {
	switch typed := v.(type) {
	case nil:
		return Unset, nil
	case Value:
		return typed, nil
	case bool:
		return BoolValue(typed), nil
	case string:
		return StringValue(typed), nil
	default:
		return Unset, fmt.Errorf("%w: %T", ErrInvalidValue, v)
	}
}

func (v Value) Kind() Kind {
	return v.kind
}

// IsUnset reports whether v is the removal sentinel.
func (v Value) IsUnset() bool {
	return v.kind == KindNone
}

// Bool returns the boolean payload and whether v holds one.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Variation returns the string payload and whether v holds one.
func (v Value) Variation() (string, bool) {
	return v.s, v.kind == KindString
}

// Interface returns the payload as bool, string or nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindString:
		return v.s
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return strconv.Quote(v.s)
	default:
		return "<unset>"
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts true/false, a string or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
