package cursor

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-graph-datasource/pkg/testsupport"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  any
	}{
		{name: "integer", value: 42, want: int64(42)},
		{name: "negative integer", value: int32(-7), want: int64(-7)},
		{name: "string", value: "2024-05-01T10:00:00Z", want: "2024-05-01T10:00:00Z"},
		{name: "float", value: 1.25, want: 1.25},
		{name: "integral float", value: 42.0, want: float64(42)},
		{name: "large float", value: 1e21, want: 1e21},
		{name: "max uint64", value: uint64(math.MaxUint64), want: uint64(math.MaxUint64)},
		{name: "uint64 above max int64", value: uint64(9223372036854775809), want: uint64(9223372036854775809)},
		{name: "max int64", value: int64(math.MaxInt64), want: int64(math.MaxInt64)},
		{name: "min int64", value: int64(math.MinInt64), want: int64(math.MinInt64)},
		{name: "bool", value: true, want: true},
		{name: "nil", value: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := Encode("createdAt", tt.value)
			require.NoError(t, err)

			got, err := Decode(token)
			require.NoError(t, err)
			assert.Equal(t, Cursor{Field: "createdAt", Value: tt.want}, got)
		})
	}
}

func TestEncode_WireFormat(t *testing.T) {
	token, err := Encode("createdAt", 42)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.JSONEq(t, `{"field":"createdAt","value":42}`, string(raw))

	testsupport.CompareWithGolden(t, testsupport.GoldenPath("created_at_42.golden"), []byte(token))
}

func TestEncode_FloatKeepsFraction(t *testing.T) {
	token, err := Encode("score", 42.0)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.Equal(t, `{"field":"score","value":42.0}`, string(raw))
}

func TestEncode_JSONNumberKeepsLiteral(t *testing.T) {
	fromNumber, err := Encode("createdAt", json.Number("42"))
	require.NoError(t, err)
	fromInt, err := Encode("createdAt", 42)
	require.NoError(t, err)
	assert.Equal(t, fromInt, fromNumber)

	_, err = Encode("createdAt", json.Number("forty-two"))
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestEncode_UnsupportedValues(t *testing.T) {
	for name, value := range map[string]any{
		"map":    map[string]any{"a": 1},
		"slice":  []int{1},
		"struct": struct{ A int }{1},
		"nan":    math.NaN(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Encode("f", value)
			assert.ErrorIs(t, err, ErrUnsupportedValue)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	b64 := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name  string
		token string
		layer string
	}{
		{name: "not base64", token: "%%%not-base64", layer: "base64"},
		{name: "not json", token: b64("not json"), layer: "json"},
		{name: "not an object", token: b64(`[1,2]`), layer: "json"},
		{name: "missing field", token: b64(`{"value":1}`), layer: "json"},
		{name: "field not a string", token: b64(`{"field":3,"value":1}`), layer: "json"},
		{name: "value not a scalar", token: b64(`{"field":"f","value":{"x":1}}`), layer: "json"},
		{name: "trailing data", token: b64(`{"field":"f","value":1}{}`), layer: "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.token)

			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, tt.layer, decodeErr.Layer)
			assert.NotNil(t, decodeErr.Unwrap())
		})
	}
}

func TestDecode_NumberLiterals(t *testing.T) {
	tests := []struct {
		literal string
		want    any
	}{
		{literal: "1e300", want: 1e300},
		{literal: "7", want: int64(7)},
		{literal: "-7", want: int64(-7)},
		{literal: "7.0", want: float64(7)},
		{literal: "7E2", want: float64(700)},
		{literal: "18446744073709551615", want: uint64(math.MaxUint64)},
		{literal: "18446744073709551616", want: float64(18446744073709551616)},
	}

	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			token := base64.StdEncoding.EncodeToString([]byte(`{"field":"score","value":` + tt.literal + `}`))

			got, err := Decode(token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Value)
		})
	}
}
