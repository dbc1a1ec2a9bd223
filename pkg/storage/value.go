package storage

import (
	"strconv"
	"strings"

	"github.com/cfgd/cfgd-go/pkg/cfgerr"
)

// ValueType identifies the kind of a Value.
type ValueType uint8

const (
	TypeInvalid ValueType = 0
	TypeString  ValueType = 1
	TypeInt     ValueType = 2
	TypeFloat   ValueType = 3
	TypeBool    ValueType = 4
	TypeList    ValueType = 5
)

// String returns the type name.
func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeList:
		return "list"
	default:
		return "invalid"
	}
}

// ParseValueType parses a type name as printed by ValueType.String.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(s) {
	case "string", "str":
		return TypeString, nil
	case "int", "integer":
		return TypeInt, nil
	case "float", "double":
		return TypeFloat, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "list":
		return TypeList, nil
	default:
		return TypeInvalid, cfgerr.Newf(cfgerr.TypeMismatch, "unknown value type %q", s)
	}
}

// Value is a typed configuration value.
//
// CBOR encoding:
//
//	{
//	  1: type,   // uint8
//	  2: string,
//	  3: int,
//	  4: float,
//	  5: bool,
//	  6: list    // array of values, all of the same type
//	}
type Value struct {
	Type  ValueType `cbor:"1,keyasint"`
	Str   string    `cbor:"2,keyasint,omitempty"`
	Int   int64     `cbor:"3,keyasint,omitempty"`
	Float float64   `cbor:"4,keyasint,omitempty"`
	Bool  bool      `cbor:"5,keyasint,omitempty"`
	List  []Value   `cbor:"6,keyasint,omitempty"`
}

// StringValue returns a string value.
func StringValue(s string) Value { return Value{Type: TypeString, Str: s} }

// IntValue returns an integer value.
func IntValue(i int64) Value { return Value{Type: TypeInt, Int: i} }

// FloatValue returns a float value.
func FloatValue(f float64) Value { return Value{Type: TypeFloat, Float: f} }

// BoolValue returns a boolean value.
func BoolValue(b bool) Value { return Value{Type: TypeBool, Bool: b} }

// ListValue returns a list value.
func ListValue(items ...Value) Value { return Value{Type: TypeList, List: items} }

// Validate checks that the value is well formed. Lists must be
// homogeneous and may not nest.
func (v Value) Validate() error {
	switch v.Type {
	case TypeString, TypeInt, TypeFloat, TypeBool:
		return nil
	case TypeList:
		for i, item := range v.List {
			if item.Type == TypeList || item.Type == TypeInvalid {
				return cfgerr.Newf(cfgerr.TypeMismatch, "list item %d has type %s", i, item.Type)
			}
			if item.Type != v.List[0].Type {
				return cfgerr.Newf(cfgerr.TypeMismatch, "list mixes %s and %s", v.List[0].Type, item.Type)
			}
		}
		return nil
	default:
		return cfgerr.Newf(cfgerr.TypeMismatch, "invalid value type %d", v.Type)
	}
}

// Equal reports whether two values have the same type and content.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeString:
		return v.Str == o.Str
	case TypeInt:
		return v.Int == o.Int
	case TypeFloat:
		return v.Float == o.Float
	case TypeBool:
		return v.Bool == o.Bool
	case TypeList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	}
	return true
}

// String formats the value for display.
func (v Value) String() string {
	switch v.Type {
	case TypeString:
		return v.Str
	case TypeInt:
		return strconv.FormatInt(v.Int, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case TypeBool:
		return strconv.FormatBool(v.Bool)
	case TypeList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return "<invalid>"
	}
}

// ParseValue parses text as a value of the given type. Lists are written
// as "[a,b,c]" and hold strings.
func ParseValue(t ValueType, text string) (Value, error) {
	switch t {
	case TypeString:
		return StringValue(text), nil
	case TypeInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, cfgerr.Newf(cfgerr.ParseError, "%q is not an integer", text)
		}
		return IntValue(i), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, cfgerr.Newf(cfgerr.ParseError, "%q is not a float", text)
		}
		return FloatValue(f), nil
	case TypeBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, cfgerr.Newf(cfgerr.ParseError, "%q is not a boolean", text)
		}
		return BoolValue(b), nil
	case TypeList:
		if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
			return Value{}, cfgerr.Newf(cfgerr.ParseError, "list %q must be enclosed in brackets", text)
		}
		inner := text[1 : len(text)-1]
		if inner == "" {
			return ListValue(), nil
		}
		var items []Value
		for _, part := range strings.Split(inner, ",") {
			items = append(items, StringValue(part))
		}
		return ListValue(items...), nil
	default:
		return Value{}, cfgerr.Newf(cfgerr.TypeMismatch, "cannot parse type %s", t)
	}
}

// Entry is a key together with its current value.
//
// A nil Value means the key is unset.
type Entry struct {
	Key        string `cbor:"1,keyasint"`
	Value      *Value `cbor:"2,keyasint,omitempty"`
	IsDefault  bool   `cbor:"3,keyasint,omitempty"`
	IsWritable bool   `cbor:"4,keyasint,omitempty"`
}
