package endpoint

import (
	"github.com/conduit/conduit/internal/core/schema"
)

// ValidateAssignments checks the assignment list against the endpoint's
// operation. GET and DELETE take none; each field may be assigned once;
// POST must SET every top-level field, which is checked last.
func ValidateAssignments(s *schema.Schema, inputs []Input, op Operation, assignments []Assignment) error {
	switch op {
	case OperationGet, OperationDelete:
		if len(assignments) > 0 {
			return &InvalidDraftError{Field: "assignments", Reason: "must be empty for " + op.String() + " endpoints"}
		}
		return nil
	case OperationPost, OperationPut:
		if len(assignments) == 0 {
			return &InvalidDraftError{Field: "assignments", Reason: "required for " + op.String() + " endpoints"}
		}
	default:
		return &InvalidDraftError{Field: "operation", Reason: "unsupported operation"}
	}

	declared := indexInputs(inputs)
	seen := make(map[string]bool, len(assignments))

	for i, a := range assignments {
		if schema.IsReserved(a.SchemaField) {
			return &ReservedFieldError{Index: i, Field: a.SchemaField}
		}

		field, err := schema.Resolve(s, a.SchemaField)
		if err != nil {
			return &UnknownFieldError{Position: atAssignment(i), Field: a.SchemaField, Err: err}
		}

		if seen[a.SchemaField] {
			return &DuplicateAssignmentError{Index: i, Field: a.SchemaField}
		}
		seen[a.SchemaField] = true

		wants, err := assignmentOperands(i, op, a, field)
		if err != nil {
			return err
		}
		if err := checkSource(atAssignment(i), a.SchemaField, a.AssignmentField.Source, declared, wants...); err != nil {
			return err
		}
	}

	if op == OperationPost {
		for _, name := range s.FieldNames() {
			if !seen[name] {
				return &MissingFieldAssignmentError{Field: name}
			}
		}
	}

	return nil
}

func assignmentOperands(i int, op Operation, a Assignment, field schema.FieldInfo) ([]schema.FieldInfo, error) {
	incompatible := func(reason string) error {
		return &IncompatibleActionError{
			Index:     i,
			Field:     a.SchemaField,
			FieldType: field.String(),
			Action:    a.Action,
			Reason:    reason,
		}
	}

	if !a.Action.Valid() {
		return nil, incompatible("unknown action")
	}

	wants := []schema.FieldInfo{field}
	switch a.Action {
	case ActionIncrement, ActionDecrement:
		if field.Type != schema.TypeNumber || field.Array {
			return nil, incompatible("only Number fields can be incremented or decremented")
		}
	case ActionAppend, ActionRemove:
		if !field.Array {
			return nil, incompatible("only array fields support APPEND and REMOVE")
		}
		wants = []schema.FieldInfo{field.Element(), field}
	}

	if op == OperationPost && a.Action != ActionSet {
		return nil, incompatible("create endpoints can only SET fields")
	}
	return wants, nil
}
