// Package jsonvalue is a small tagged-union model for arbitrary JSON
// documents. Unlike map[string]any it keeps object field order and the
// literal text of numbers, so schema discovery and projection are
// deterministic and lossless.
package jsonvalue

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Field is one member of a JSON object.
type Field struct {
	Key   string
	Value Value
}

// Value is a decoded JSON value. The zero Value is JSON null.
type Value struct {
	kind   Kind
	b      bool
	s      string // number literal or string payload
	elems  []Value
	fields []Field
}

func NullValue() Value             { return Value{} }
func BoolValue(b bool) Value       { return Value{kind: Bool, b: b} }
func StringValue(s string) Value   { return Value{kind: String, s: s} }
func ArrayValue(vs ...Value) Value { return Value{kind: Array, elems: vs} }
func ObjectValue(fs ...Field) Value {
	return Value{kind: Object, fields: fs}
}

// NumberValue wraps a JSON number literal. The literal is not validated; use
// Parse for untrusted input.
func NumberValue(lit string) Value { return Value{kind: Number, s: lit} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == Null }

// AsBool returns the payload of a Bool value.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == Bool }

// AsString returns the payload of a String value.
func (v Value) AsString() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.s, true
}

// AsNumber returns the literal text of a Number value.
func (v Value) AsNumber() (json.Number, bool) {
	if v.kind != Number {
		return "", false
	}
	return json.Number(v.s), true
}

// IsIntegral reports whether v is a Number written without a fraction or
// exponent.
func (v Value) IsIntegral() bool {
	return v.kind == Number && !strings.ContainsAny(v.s, ".eE")
}

// Elements returns the items of an Array value and nil for other kinds.
func (v Value) Elements() []Value {
	if v.kind != Array {
		return nil
	}
	return v.elems
}

// Fields returns the members of an Object value in document order.
func (v Value) Fields() []Field {
	if v.kind != Object {
		return nil
	}
	return v.fields
}

// Len is the element count of an array or the member count of an object.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.elems)
	case Object:
		return len(v.fields)
	}
	return 0
}

// Get looks up key in an Object value. Duplicate keys resolve to the last
// occurrence, matching encoding/json.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	for i := len(v.fields) - 1; i >= 0; i-- {
		if v.fields[i].Key == key {
			return v.fields[i].Value, true
		}
	}
	return Value{}, false
}

// MarshalJSON renders v as compact JSON, preserving field order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes b with Parse.
func (v *Value) UnmarshalJSON(b []byte) error {
	parsed, err := Parse(b)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Raw is MarshalJSON without the error for values built by this package.
func (v Value) Raw() json.RawMessage {
	b, err := v.MarshalJSON()
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		buf.WriteString(v.s)
	case String:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case Array:
		buf.WriteByte('[')
		for i, e := range v.elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := f.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}
