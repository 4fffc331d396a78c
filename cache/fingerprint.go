package cache

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter between a namespace and a fingerprint.
const KeySeparator = "::"

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Fingerprinter computes a deterministic digest for a structured value.
// Two values with the same structure produce the same fingerprint regardless
// of map iteration order. Slice and array order is significant.
type Fingerprinter interface {
	Fingerprint(v any) string
}

// FingerprintOption configures the default fingerprinter.
type FingerprintOption func(*defaultFingerprinter)

// WithNamespace prefixes every fingerprint with the snake_case form of ns.
func WithNamespace(ns string) FingerprintOption {
	return func(f *defaultFingerprinter) {
		f.namespace = toSnake(ns)
	}
}

type defaultFingerprinter struct {
	namespace string
}

// NewFingerprinter creates the default fingerprinter: the canonical form of
// the value hashed with xxhash64 and rendered as 16 hex digits.
func NewFingerprinter(opts ...FingerprintOption) Fingerprinter {
	f := &defaultFingerprinter{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fingerprint implements Fingerprinter.
func (f *defaultFingerprinter) Fingerprint(v any) string {
	digest := fmt.Sprintf("%016x", xxhash.Sum64String(Canonicalize(v)))
	if f.namespace == "" {
		return digest
	}
	return f.namespace + KeySeparator + digest
}

// Canonicalize renders v in the canonical form used for fingerprinting.
// Map entries are sorted by their canonical key, strings are quoted so that
// 1 and "1" stay distinct, and pointers are followed.
func Canonicalize(v any) string {
	return canonicalValue(v)
}

func canonicalValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	switch rt.Kind() {
	case reflect.Func:
		// only stable within one process
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return canonicalValue(rv.Elem().Interface())
	case reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return canonicalValue(rv.Elem().Interface())
	case reflect.String:
		return strconv.Quote(rv.String())
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return fmt.Sprintf("%v", v)
	}

	// time.Time and friends carry their state in unexported fields
	if rt.Implements(jsonMarshalerType) || rt.Implements(textMarshalerType) {
		return jsonFallback(v)
	}

	switch rt.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return canonicalSequence("slice", rv)
	case reflect.Array:
		return canonicalSequence("array", rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return canonicalMap(rv)
	case reflect.Struct:
		return canonicalStruct(rv, rt)
	}

	return jsonFallback(v)
}

func canonicalSequence(kind string, rv reflect.Value) string {
	length := rv.Len()
	parts := make([]string, length)
	for i := 0; i < length; i++ {
		parts[i] = canonicalValue(rv.Index(i).Interface())
	}
	return fmt.Sprintf("%s[%d]:{%s}", kind, length, strings.Join(parts, ","))
}

func canonicalMap(rv reflect.Value) string {
	type pair struct {
		key   string
		value string
	}

	pairs := make([]pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, pair{
			key:   canonicalValue(iter.Key().Interface()),
			value: canonicalValue(iter.Value().Interface()),
		})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key == pairs[j].key {
			return pairs[i].value < pairs[j].value
		}
		return pairs[i].key < pairs[j].key
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + "=" + p.value
	}
	return fmt.Sprintf("map[%d]:{%s}", len(parts), strings.Join(parts, ","))
}

func canonicalStruct(rv reflect.Value, rt reflect.Type) string {
	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		fieldValue := rv.Field(i)
		if !fieldValue.CanInterface() {
			continue
		}
		parts = append(parts, field.Name+":"+canonicalValue(fieldValue.Interface()))
	}
	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

// jsonFallback never fails: values JSON cannot encode collapse to their type name.
func jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%T", v)
	}
	return "json:" + string(data)
}
