// Package canon implements the canonical byte serialization: the single
// form that is ever hashed or signed.
//
// A Value is restricted to null, bool, finite float64/int64 number, UTF-8
// string, ordered slice, or a map with unique string keys. Bytes produced by
// Marshal are deterministic: UTF-8, no insignificant whitespace, mapping
// keys sorted lexicographically by code point, arrays in input order, and
// numbers emitted as their shortest exact decimal.
package canon

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lexintellectus/knowledgepack/internal/errs"
)

// Value is a dynamic JSON-like value restricted to the canonical subset.
// Supported Go types: nil, bool, float64, int64, string, []Value (or
// []any whose elements are themselves canonical), map[string]Value (or
// map[string]any with string keys).
type Value = any

// Marshal serializes v to canonical bytes. It fails with an EncodingError if
// v contains a non-finite number, a non-string map key, or a cycle.
func Marshal(v Value) ([]byte, error) {
	var buf strings.Builder
	seen := make(map[any]bool)
	if err := encode(&buf, v, seen, 0); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// MarshalMust panics on encoding error; used only where the caller has
// already validated the value (e.g. values freshly decoded from our own
// canonical bytes).
func MarshalMust(v Value) []byte {
	b, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

const maxDepth = 10000

func encode(buf *strings.Builder, v Value, seen map[any]bool, depth int) error {
	if depth > maxDepth {
		return errs.New(errs.KindEncoding, "structure too deep (possible cycle)")
	}
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case string:
		encodeString(buf, t)
		return nil
	case float64:
		return encodeFloat(buf, t)
	case float32:
		return encodeFloat(buf, float64(t))
	case int:
		buf.WriteString(strconv.FormatInt(int64(t), 10))
		return nil
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
		return nil
	case int32:
		buf.WriteString(strconv.FormatInt(int64(t), 10))
		return nil
	case uint64:
		buf.WriteString(strconv.FormatUint(t, 10))
		return nil
	case []Value:
		return encodeArray(buf, t, seen, depth)
	case []string:
		arr := make([]Value, len(t))
		for i, s := range t {
			arr[i] = s
		}
		return encodeArray(buf, arr, seen, depth)
	case map[string]Value:
		return encodeObject(buf, t, seen, depth)
	default:
		return errs.Newf(errs.KindEncoding, "unsupported canonical value type %T", v)
	}
}

func encodeArray(buf *strings.Builder, arr []Value, seen map[any]bool, depth int) error {
	key := fmt.Sprintf("%p", arr)
	if len(arr) > 0 {
		if seen[key] {
			return errs.New(errs.KindEncoding, "cyclic structure detected")
		}
		seen[key] = true
		defer delete(seen, key)
	}
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(buf, elem, seen, depth+1); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeObject(buf *strings.Builder, obj map[string]Value, seen map[any]bool, depth int) error {
	key := fmt.Sprintf("%p", obj)
	if len(obj) > 0 {
		if seen[key] {
			return errs.New(errs.KindEncoding, "cyclic structure detected")
		}
		seen[key] = true
		defer delete(seen, key)
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodeString(buf, k)
		buf.WriteByte(':')
		if err := encode(buf, obj[k], seen, depth+1); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeFloat(buf *strings.Builder, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errs.New(errs.KindEncoding, "non-finite number (NaN/Inf) cannot be canonicalized")
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		buf.WriteString(strconv.FormatInt(int64(f), 10))
		return nil
	}
	// Shortest exact decimal representation round-tripping to the same float64.
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

// encodeString writes s as a minimal JSON string literal, escaping only
// what JSON requires (", \, and control characters).
func encodeString(buf *strings.Builder, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}
