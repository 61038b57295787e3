package schema

import (
	_ "embed"
	"encoding/json"
	"regexp"
	"sort"

	"github.com/conduit/conduit/internal/core/validation"
)

//go:embed metaschema.json
var metaSchemaJSON []byte

var (
	metaSchema  map[string]any
	namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

func init() {
	if err := json.Unmarshal(metaSchemaJSON, &metaSchema); err != nil {
		panic("schema: invalid embedded meta-schema: " + err.Error())
	}
}

// ValidateDefinition checks a schema name and field tree: structure first
// (JSON meta-schema), then the rules JSON Schema cannot express.
func ValidateDefinition(v *validation.Validator, name string, fields map[string]*Field) error {
	errs := &validation.ValidationErrors{}
	if !namePattern.MatchString(name) {
		errs.Add("name", "must start with a letter and contain only letters, digits and underscores")
	}

	if err := v.Validate(fields, metaSchema); err != nil {
		if ve := validation.GetValidationErrors(err); ve != nil {
			for _, e := range ve.Errors {
				errs.Add("fields."+e.Field, "%s", e.Message)
			}
			return errs
		}
		return err
	}

	for _, name := range sortedKeys(fields) {
		if IsReserved(name) {
			errs.Add("fields."+name, "reserved field name")
			continue
		}
		checkField(errs, "fields."+name, fields[name])
	}

	return errs.Err()
}

func checkField(errs *validation.ValidationErrors, path string, f *Field) {
	if f == nil {
		errs.Add(path, "field definition is empty")
		return
	}

	switch f.Type {
	case TypeRelation:
		if f.Model == "" {
			errs.Add(path, "relation fields require a model")
		}
	case TypeGroup:
		if len(f.Fields) == 0 {
			errs.Add(path, "group fields require nested fields")
		}
	}
	if f.Type != TypeGroup && len(f.Fields) > 0 {
		errs.Add(path, "only group fields may declare nested fields")
	}
	if f.Type != TypeRelation && f.Model != "" {
		errs.Add(path, "only relation fields may declare a model")
	}

	if f.Enum {
		switch {
		case f.Type != TypeString && f.Type != TypeNumber:
			errs.Add(path, "enum is only allowed on String or Number fields")
		case len(f.EnumValues) == 0:
			errs.Add(path, "enum fields require enumValues")
		default:
			for _, v := range f.EnumValues {
				if !enumValueMatches(f.Type, v) {
					errs.Add(path, "enum value %v does not match type %s", v, f.Type)
					break
				}
			}
		}
	} else if len(f.EnumValues) > 0 {
		errs.Add(path, "enumValues requires enum to be set")
	}

	for _, name := range sortedKeys(f.Fields) {
		if IsReserved(name) {
			errs.Add(path+"."+name, "reserved field name")
			continue
		}
		checkField(errs, path+"."+name, f.Fields[name])
	}
}

func enumValueMatches(t FieldType, v any) bool {
	switch v.(type) {
	case string:
		return t == TypeString
	case float64, float32, int, int64, int32, uint64, json.Number:
		return t == TypeNumber
	}
	return false
}

func sortedKeys(fields map[string]*Field) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
