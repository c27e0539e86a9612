package dispatch

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cast"

	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
)

// Args is the option bundle of one operation.
type Args map[string]any

func (a Args) requiredString(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", core.NewDecodeError(key, "string", nil)
	}
	return decodeString(key, v)
}

// optionalString reads key if present. A present value of the wrong type is still an error.
func (a Args) optionalString(key string) (string, bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, err := decodeString(key, v)
	return s, err == nil, err
}

func decodeString(key string, v any) (string, error) {
	switch v.(type) {
	case string, []byte:
	default:
		return "", core.NewDecodeError(key, "string", errors.Newf("got %T", v))
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", core.NewDecodeError(key, "string", err)
	}
	return s, nil
}

// requiredMap reads key as a string-keyed mapping. A JSON object string is accepted.
func (a Args) requiredMap(key string) (map[string]any, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, core.NewDecodeError(key, "mapping", nil)
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, core.NewDecodeError(key, "mapping", err)
	}
	return normalize(m).(map[string]any), nil
}

// normalize converts nested map[any]any and []map[string]any values so the
// translator sees plain map[string]any and []any.
func normalize(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		return normalize(cast.ToStringMap(v))
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
