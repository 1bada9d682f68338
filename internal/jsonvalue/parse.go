package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

// ErrInvalid is returned by Parse for input that is not a single JSON value.
var ErrInvalid = errors.New("jsonvalue: invalid JSON")

// Parse decodes one JSON document. Object member order and number literals
// are preserved. Blank input is rejected.
func Parse(data []byte) (Value, error) {
	// jsonparser is permissive about trailing garbage; validate first.
	if !json.Valid(data) {
		return Value{}, ErrInvalid
	}
	raw, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return Value{}, fmt.Errorf("jsonvalue: %w", err)
	}
	v, err := fromParsed(raw, typ)
	if err != nil {
		// jsonparser rejects escapes encoding/json accepts, e.g. a lone
		// surrogate "\ud800", which decodes to U+FFFD there.
		return decodeTokens(data)
	}
	return v, nil
}

// decodeTokens builds the value from the encoding/json token stream, which
// also keeps object member order.
func decodeTokens(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := nextValue(dec)
	if err != nil {
		return Value{}, fmt.Errorf("jsonvalue: %w", err)
	}
	return v, nil
}

func nextValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		return NumberValue(t.String()), nil
	case string:
		return StringValue(t), nil
	case json.Delim:
		switch t {
		case '[':
			elems := []Value{}
			for dec.More() {
				v, err := nextValue(dec)
				if err != nil {
					return Value{}, err
				}
				elems = append(elems, v)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return ArrayValue(elems...), nil
		case '{':
			fields := []Field{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, ErrInvalid
				}
				v, err := nextValue(dec)
				if err != nil {
					return Value{}, err
				}
				fields = append(fields, Field{Key: key, Value: v})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return ObjectValue(fields...), nil
		}
	}
	return Value{}, ErrInvalid
}

func fromParsed(raw []byte, typ jsonparser.ValueType) (Value, error) {
	switch typ {
	case jsonparser.Null:
		return NullValue(), nil

	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return Value{}, fmt.Errorf("jsonvalue: boolean: %w", err)
		}
		return BoolValue(b), nil

	case jsonparser.Number:
		return NumberValue(string(raw)), nil

	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return Value{}, fmt.Errorf("jsonvalue: string: %w", err)
		}
		return StringValue(s), nil

	case jsonparser.Array:
		elems := []Value{}
		var inner error
		_, err := jsonparser.ArrayEach(raw, func(val []byte, t jsonparser.ValueType, _ int, cbErr error) {
			if inner != nil {
				return
			}
			if cbErr != nil {
				inner = cbErr
				return
			}
			v, err := fromParsed(val, t)
			if err != nil {
				inner = err
				return
			}
			elems = append(elems, v)
		})
		if err != nil {
			return Value{}, fmt.Errorf("jsonvalue: array: %w", err)
		}
		if inner != nil {
			return Value{}, inner
		}
		return ArrayValue(elems...), nil

	case jsonparser.Object:
		fields := []Field{}
		err := jsonparser.ObjectEach(raw, func(key, val []byte, t jsonparser.ValueType, _ int) error {
			v, err := fromParsed(val, t)
			if err != nil {
				return err
			}
			fields = append(fields, Field{Key: string(key), Value: v})
			return nil
		})
		if err != nil {
			return Value{}, fmt.Errorf("jsonvalue: object: %w", err)
		}
		return ObjectValue(fields...), nil

	default:
		return Value{}, ErrInvalid
	}
}
