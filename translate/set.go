package translate

import (
	"sort"

	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

// Set is an unordered collection of unique strings.
type Set map[string]struct{}

// NewSet builds a set from items; duplicates collapse.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

func (s Set) Add(item string) {
	s[item] = struct{}{}
}

func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

func (s Set) Len() int {
	return len(s)
}

// Sorted returns the members in ascending order.
func (s Set) Sorted() []string {
	out := lo.Keys(s)
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted JSON array.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// MarshalYAML encodes the set as a sorted sequence.
func (s Set) MarshalYAML() (any, error) {
	return s.Sorted(), nil
}

// uniqueSorted collapses duplicates and orders the result.
func uniqueSorted(items []string) []string {
	out := lo.Uniq(items)
	sort.Strings(out)
	return out
}
