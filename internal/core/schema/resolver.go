package schema

import (
	"fmt"
	"sort"
	"strings"
)

// FieldInfo is the structural descriptor of a resolved field path.
type FieldInfo struct {
	Path       string    `json:"path"`
	Type       FieldType `json:"type"`
	Array      bool      `json:"array"`
	Enum       bool      `json:"enum"`
	EnumValues []any     `json:"enumValues,omitempty"`
	Model      string    `json:"model,omitempty"`
}

// Element returns the descriptor of a single element of an array field.
// Scalars are returned unchanged.
func (i FieldInfo) Element() FieldInfo {
	i.Array = false
	return i
}

func (i FieldInfo) String() string {
	if i.Array {
		return "Array<" + string(i.Type) + ">"
	}
	return string(i.Type)
}

type FieldNotFoundError struct {
	Path    string
	Segment string
}

func (e *FieldNotFoundError) Error() string {
	if e.Segment == "" || e.Segment == e.Path {
		return fmt.Sprintf("field %q not found", e.Path)
	}
	return fmt.Sprintf("field %q not found (no segment %q)", e.Path, e.Segment)
}

// Resolve looks up a flat or dotted field path. Dotted paths descend into
// Group fields; descending through an array group makes the result
// array-valued. Reserved fields resolve to their builtin types.
func Resolve(s *Schema, path string) (FieldInfo, error) {
	if s == nil || path == "" {
		return FieldInfo{}, &FieldNotFoundError{Path: path}
	}

	if t, ok := reservedFields[path]; ok {
		return FieldInfo{Path: path, Type: t}, nil
	}

	fields := s.Fields
	inArray := false
	var current *Field

	for _, segment := range strings.Split(path, ".") {
		if segment == "" || fields == nil {
			return FieldInfo{}, &FieldNotFoundError{Path: path, Segment: segment}
		}
		f, ok := fields[segment]
		if !ok || f == nil {
			return FieldInfo{}, &FieldNotFoundError{Path: path, Segment: segment}
		}
		if current != nil && current.Array {
			inArray = true
		}
		current = f
		if f.Type == TypeGroup {
			fields = f.Fields
		} else {
			fields = nil
		}
	}

	return describe(path, current, inArray), nil
}

func describe(path string, f *Field, inArray bool) FieldInfo {
	return FieldInfo{
		Path:       path,
		Type:       f.Type,
		Array:      f.Array || inArray,
		Enum:       f.Enum,
		EnumValues: f.EnumValues,
		Model:      f.Model,
	}
}

// Flatten returns every resolvable path of the schema, nested group paths
// included, plus the reserved fields.
func (s *Schema) Flatten() map[string]FieldInfo {
	out := make(map[string]FieldInfo)
	for name, t := range reservedFields {
		out[name] = FieldInfo{Path: name, Type: t}
	}
	if s != nil {
		flatten(out, "", s.Fields, false)
	}
	return out
}

func flatten(out map[string]FieldInfo, prefix string, fields map[string]*Field, inArray bool) {
	for name, f := range fields {
		if f == nil {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		out[path] = describe(path, f, inArray)
		if f.Type == TypeGroup {
			flatten(out, path, f.Fields, inArray || f.Array)
		}
	}
}

// FieldNames returns the sorted top-level field names, reserved fields
// excluded.
func (s *Schema) FieldNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		if IsReserved(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
