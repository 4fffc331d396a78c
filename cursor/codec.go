package cursor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

var (
	// ErrUnsupportedValue is returned when encoding a value that is not a JSON scalar.
	ErrUnsupportedValue = errors.New("cursor: unsupported value")
	// ErrFieldMismatch is returned when a cursor was issued for another sort field.
	ErrFieldMismatch = errors.New("cursor: field mismatch")
)

var encoding = base64.StdEncoding

// Cursor is the decoded form of a pagination token: the sort field and the
// value of that field at a record boundary.
type Cursor struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// DecodeError reports a token that is not valid at one of its two layers.
type DecodeError struct {
	// Layer is "base64" or "json".
	Layer string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cursor: invalid %s layer: %v", e.Layer, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode returns the opaque token for field and value: the base64 form of
// the JSON object {"field": field, "value": value}. value must be nil, a
// boolean, a string or a number.
//
// Floats are always written with a fraction or an exponent, so 42.0 stays a
// float after Decode. A json.Number is written as its literal.
func Encode(field string, value any) (string, error) {
	if !isScalar(value) {
		return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}

	data, err := json.Marshal(Cursor{Field: field, Value: floatLiteral(value)})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}

	return encoding.EncodeToString(data), nil
}

// Decode parses a token produced by Encode. Integer literals decode as
// int64, or uint64 above math.MaxInt64. Literals with a fraction or an
// exponent, and integers beyond uint64, decode as float64.
func Decode(token string) (Cursor, error) {
	data, err := encoding.DecodeString(token)
	if err != nil {
		return Cursor{}, &DecodeError{Layer: "base64", Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return Cursor{}, &DecodeError{Layer: "json", Err: err}
	}
	if dec.More() {
		return Cursor{}, &DecodeError{Layer: "json", Err: errors.New("trailing data after cursor object")}
	}

	field, ok := raw["field"].(string)
	if !ok {
		return Cursor{}, &DecodeError{Layer: "json", Err: errors.New("missing field name")}
	}

	value := normalize(raw["value"])
	if !isScalar(value) {
		return Cursor{}, &DecodeError{Layer: "json", Err: fmt.Errorf("value of type %T is not a scalar", value)}
	}

	return Cursor{Field: field, Value: value}, nil
}

func normalize(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u
		}
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return s
}

func floatLiteral(v any) any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Float32 && rv.Kind() != reflect.Float64) {
		return v
	}
	f := rv.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		// left to json.Marshal, which rejects them
		return v
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s)
}

func isScalar(v any) bool {
	if v == nil {
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
