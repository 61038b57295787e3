package endpoint

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	contextPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateInputs checks each declaration in order: name, type, location,
// then uniqueness. The first failure is returned.
func ValidateInputs(inputs []Input) error {
	seen := make(map[string]bool, len(inputs))
	for i, in := range inputs {
		if err := validate.Var(in.Name, "required,identifier"); err != nil {
			reason := "name must contain only letters, digits and underscores"
			if in.Name == "" {
				reason = "name is required"
			}
			return &InvalidInputError{Index: i, Name: in.Name, Reason: reason}
		}
		if !in.Type.Valid() {
			return &InvalidInputError{Index: i, Name: in.Name, Reason: "unsupported type " + string(in.Type)}
		}
		if !in.Location.Valid() {
			return &InvalidInputError{Index: i, Name: in.Name, Reason: "unsupported location"}
		}
		if seen[in.Name] {
			return &DuplicateNameError{Kind: "input", Name: in.Name}
		}
		seen[in.Name] = true
	}
	return nil
}

func indexInputs(inputs []Input) map[string]Input {
	m := make(map[string]Input, len(inputs))
	for _, in := range inputs {
		m[in.Name] = in
	}
	return m
}
