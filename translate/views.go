package translate

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/DrewBradfordXYZ/cbmgmt-go/operations"
)

var viewFields = []fieldMapping[operations.View]{
	{key: "map", optional: true, encode: optionalString(func(v operations.View) *string { return v.Map })},
	{key: "reduce", optional: true, encode: optionalString(func(v operations.View) *string { return v.Reduce })},
}

var designDocumentFields = []fieldMapping[operations.DesignDocument]{
	{key: "rev", encode: requiredString(func(d operations.DesignDocument) string { return d.Rev })},
	{key: "name", encode: requiredString(func(d operations.DesignDocument) string { return d.Name })},
	{key: "name_space", encode: requiredString(func(d operations.DesignDocument) string { return d.Namespace.String() })},
	{key: "views", encode: encodeViews},
}

func encodeViews(d operations.DesignDocument) (any, bool, error) {
	names := make([]string, 0, len(d.Views))
	for name := range d.Views {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(names))
	for _, name := range names {
		if _, err := str(name); err != nil {
			return nil, false, errors.Wrap(err, "view name")
		}
		m, err := encodeWith(d.Views[name], viewFields)
		if err != nil {
			return nil, false, errors.Wrapf(err, "view %q", name)
		}
		out[name] = m
	}
	return out, true, nil
}

// ParseNamespace maps exactly "production" to production; anything else is development.
func ParseNamespace(s string) operations.DesignDocumentNamespace {
	if s == "production" {
		return operations.NamespaceProduction
	}
	return operations.NamespaceDevelopment
}

// EncodeDesignDocument encodes a design document as {rev, name, name_space, views}.
func EncodeDesignDocument(d operations.DesignDocument) (map[string]any, error) {
	return encodeWith(d, designDocumentFields)
}

// DecodeDesignDocument reads a design document.
//
// View entries whose key is not a non-empty string or whose value is not a
// mapping are skipped.
func DecodeDesignDocument(m map[string]any) operations.DesignDocument {
	name, _ := getString(m, "name")
	ns, _ := getString(m, "name_space")
	rev, _ := getString(m, "rev")

	doc := operations.DesignDocument{
		Name:      name,
		Rev:       rev,
		Namespace: ParseNamespace(ns),
		Views:     map[string]operations.View{},
	}

	views, ok := getMap(m, "views")
	if !ok {
		return doc
	}
	for viewName, raw := range views {
		if viewName == "" {
			continue
		}
		body, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		doc.Views[viewName] = operations.View{
			Name:   viewName,
			Map:    getOptString(body, "map"),
			Reduce: getOptString(body, "reduce"),
		}
	}
	return doc
}
