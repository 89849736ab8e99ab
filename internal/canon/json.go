package canon

import (
	"bytes"
	"encoding/json"

	"github.com/lexintellectus/knowledgepack/internal/errs"
)

// DecodeJSON parses arbitrary (non-canonical) JSON bytes into a Value tree
// suitable for Marshal. Input channel manifests are explicitly allowed
// to be non-canonical; this is the boundary that accepts them.
func DecodeJSON(data []byte) (Value, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "cannot decode JSON", err)
	}
	return normalizeNumbers(v), nil
}

// normalizeNumbers converts json.Number leaves (produced by UseNumber) into
// int64 or float64 so Marshal's canonical float formatting applies
// uniformly regardless of decode path.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, vv := range t {
			out[k] = normalizeNumbers(vv)
		}
		return out
	case []any:
		out := make([]Value, len(t))
		for i, vv := range t {
			out[i] = normalizeNumbers(vv)
		}
		return out
	default:
		return v
	}
}
