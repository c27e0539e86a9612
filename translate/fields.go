// Package translate converts native management records to and from generic
// structured values (string-keyed maps, lists, sets and strings).
//
// Encoders are driven by declarative per-record field tables. Decoders are
// lenient: a malformed optional field is treated as absent, never as an
// error. Encoding fails only when a value cannot be represented in the
// generic form, which for strings means invalid UTF-8.
package translate

import (
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// ErrUnrepresentable is returned when a value cannot be represented in the generic form.
var ErrUnrepresentable = errors.New("value cannot be represented")

// fieldMapping describes one output key of an encoded record.
//
// encode reports present=false when the source value is unset; that is only
// legal for optional fields.
type fieldMapping[T any] struct {
	key      string
	optional bool
	encode   func(T) (value any, present bool, err error)
}

func encodeWith[T any](v T, table []fieldMapping[T]) (map[string]any, error) {
	out := make(map[string]any, len(table))
	for _, f := range table {
		val, present, err := f.encode(v)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %q", f.key)
		}
		if !present {
			if !f.optional {
				return nil, errors.Newf("required field %q is unset", f.key)
			}
			continue
		}
		out[f.key] = val
	}
	return out, nil
}

func str(s string) (any, error) {
	if !utf8.ValidString(s) {
		return nil, errors.Wrapf(ErrUnrepresentable, "invalid utf-8 %q", s)
	}
	return s, nil
}

// requiredString wraps a string getter as an always-present field.
func requiredString[T any](get func(T) string) func(T) (any, bool, error) {
	return func(v T) (any, bool, error) {
		s, err := str(get(v))
		return s, err == nil, err
	}
}

// optionalString wraps a string pointer getter as a field present only when set.
func optionalString[T any](get func(T) *string) func(T) (any, bool, error) {
	return func(v T) (any, bool, error) {
		p := get(v)
		if p == nil {
			return nil, false, nil
		}
		s, err := str(*p)
		return s, err == nil, err
	}
}

func stringSet(items []string) (Set, error) {
	for _, item := range items {
		if !utf8.ValidString(item) {
			return nil, errors.Wrapf(ErrUnrepresentable, "invalid utf-8 %q", item)
		}
	}
	return NewSet(items...), nil
}

func encodeList[T any](items []T, encode func(T) (map[string]any, error)) ([]any, error) {
	out := make([]any, 0, len(items))
	for i, item := range items {
		m, err := encode(item)
		if err != nil {
			return nil, errors.Wrapf(err, "index %d", i)
		}
		out = append(out, m)
	}
	return out, nil
}

// getString reads key as a string; absent, nil or non-string values report false.
func getString(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

func getOptString(m map[string]any, key string) *string {
	if s, ok := getString(m, key); ok {
		return &s
	}
	return nil
}

// getList reads key as a list; non-list values yield nil.
func getList(m map[string]any, key string) []any {
	switch v := m[key].(type) {
	case []any:
		return v
	case []map[string]any:
		return lo.Map(v, func(item map[string]any, _ int) any { return item })
	case []string:
		return lo.Map(v, func(item string, _ int) any { return item })
	case Set:
		return lo.Map(v.Sorted(), func(item string, _ int) any { return item })
	default:
		return nil
	}
}

func getMap(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

// getMaps reads key as a list of mappings, skipping non-mapping elements.
func getMaps(m map[string]any, key string) []map[string]any {
	return lo.FilterMap(getList(m, key), func(item any, _ int) (map[string]any, bool) {
		v, ok := item.(map[string]any)
		return v, ok
	})
}

// getStrings reads key as a list of strings, skipping non-string elements.
func getStrings(m map[string]any, key string) []string {
	return lo.FilterMap(getList(m, key), func(item any, _ int) (string, bool) {
		s, ok := item.(string)
		return s, ok
	})
}
