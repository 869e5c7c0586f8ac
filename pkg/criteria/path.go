// Package criteria defines the intermediate representation accumulated by a
// query builder: attribute and resource references, constraints, sorting,
// relations, paging and actions, plus the in-memory record filter used to
// evaluate constraints against already-fetched records.
package criteria

import "strings"

// DefaultAdapter is the adapter assumed for unqualified paths.
const DefaultAdapter = "memory"

// AttributeReference identifies one field of one resource on one adapter.
//
// Path is always Namespace + "." + Attr and uniquely identifies a field
// across adapters.
type AttributeReference struct {
	Adapter   string `json:"adapter"`
	Resource  string `json:"resource"`
	Attr      string `json:"attr"`
	Namespace string `json:"namespace"`
	Path      string `json:"path"`
}

// String returns the full path.
func (a AttributeReference) String() string {
	return a.Path
}

// ResourceReference identifies a resource on an adapter.
type ResourceReference struct {
	Adapter   string `json:"adapter"`
	Resource  string `json:"resource"`
	Namespace string `json:"namespace"`
}

// String returns the namespace.
func (r ResourceReference) String() string {
	return r.Namespace
}

// ResolveAttr parses a dotted attribute path.
//
//	3 segments: adapter.resource.attr
//	2 segments: resource.attr on the default adapter
//	1 segment:  attr on contextResource and the default adapter
//
// contextResource may itself be a namespace ("twitter.user"); it is used
// as-is for single-segment paths.
func ResolveAttr(path, contextResource, defaultAdapter string) (AttributeReference, error) {
	if defaultAdapter == "" {
		defaultAdapter = DefaultAdapter
	}
	parts, err := splitPath(path, 3)
	if err != nil {
		return AttributeReference{}, err
	}

	var ref AttributeReference
	switch len(parts) {
	case 3:
		ref.Adapter, ref.Resource, ref.Attr = parts[0], parts[1], parts[2]
	case 2:
		ref.Adapter, ref.Resource, ref.Attr = defaultAdapter, parts[0], parts[1]
	case 1:
		if contextResource == "" {
			return AttributeReference{}, &MissingSelectionError{Op: "resolve " + path}
		}
		res, err := ResolveResource(contextResource, defaultAdapter)
		if err != nil {
			return AttributeReference{}, err
		}
		ref.Adapter, ref.Resource, ref.Attr = res.Adapter, res.Resource, parts[0]
	}

	ref.Namespace = namespace(ref.Adapter, ref.Resource, defaultAdapter)
	ref.Path = ref.Namespace + "." + ref.Attr
	return ref, nil
}

// ResolveResource parses a resource key used by start/select:
// "users" (default adapter) or "facebook.user".
func ResolveResource(key, defaultAdapter string) (ResourceReference, error) {
	if defaultAdapter == "" {
		defaultAdapter = DefaultAdapter
	}
	parts, err := splitPath(key, 2)
	if err != nil {
		return ResourceReference{}, err
	}

	var ref ResourceReference
	if len(parts) == 2 {
		ref.Adapter, ref.Resource = parts[0], parts[1]
	} else {
		ref.Adapter, ref.Resource = defaultAdapter, parts[0]
	}
	ref.Namespace = namespace(ref.Adapter, ref.Resource, defaultAdapter)
	return ref, nil
}

// SplitPath splits a full attribute path back into namespace and attr.
// The attr is everything after the last dot.
func SplitPath(path string) (ns, attr string) {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

func namespace(adapter, resource, defaultAdapter string) string {
	if adapter == defaultAdapter {
		return resource
	}
	return adapter + "." + resource
}

func splitPath(path string, max int) ([]string, error) {
	if path == "" {
		return nil, &MalformedPathError{Path: path, Reason: "empty path"}
	}
	parts := strings.Split(path, ".")
	if len(parts) > max {
		return nil, &MalformedPathError{Path: path, Reason: "too many segments"}
	}
	for _, p := range parts {
		if p == "" {
			return nil, &MalformedPathError{Path: path, Reason: "empty segment"}
		}
	}
	return parts, nil
}
