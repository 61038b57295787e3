package endpoint

import (
	"github.com/conduit/conduit/internal/core/schema"
)

// ValidateQueries walks the forest in pre-order and returns the first
// violation. Groups must be non-empty; every leaf must name a schema field,
// use an operator that fits the field's type, and draw its value from a
// source of the matching type.
func ValidateQueries(s *schema.Schema, inputs []Input, forest []*GroupNode) error {
	declared := indexInputs(inputs)
	return Walk(forest, func(n Node) error {
		switch node := n.(type) {
		case *GroupNode:
			if len(node.Children) == 0 {
				return &EmptyGroupError{NodeID: node.ID}
			}
			return nil
		case *LeafNode:
			return validateLeaf(s, declared, node)
		}
		return nil
	})
}

func validateLeaf(s *schema.Schema, declared map[string]Input, leaf *LeafNode) error {
	field, err := schema.Resolve(s, leaf.SchemaField)
	if err != nil {
		return &UnknownFieldError{Position: atNode(leaf.ID), Field: leaf.SchemaField, Err: err}
	}

	if !leaf.Operation.Valid() {
		return &InvalidOperationError{NodeID: leaf.ID, Operation: leaf.Operation}
	}

	want, err := comparisonOperand(leaf, field)
	if err != nil {
		return err
	}

	src := leaf.Comparison.Source
	if leaf.Operation == OpExists {
		if _, ok := src.(CustomValue); !ok && src != nil {
			return &TypeMismatchError{
				Position: atNode(leaf.ID),
				Field:    leaf.SchemaField,
				Expected: string(schema.TypeBoolean),
				Reason:   "EXISTS takes a literal true or false",
			}
		}
	}

	return checkSource(atNode(leaf.ID), leaf.SchemaField, src, declared, want)
}

// comparisonOperand returns the type the comparison value must have for the
// leaf's operator and field.
func comparisonOperand(leaf *LeafNode, field schema.FieldInfo) (schema.FieldInfo, error) {
	incompatible := func(reason string) error {
		return &IncompatibleOperatorError{
			NodeID:    leaf.ID,
			Field:     leaf.SchemaField,
			FieldType: field.String(),
			Operation: leaf.Operation,
			Reason:    reason,
		}
	}

	op := leaf.Operation
	if leaf.Comparison.Like {
		if op != OpEqual && op != OpNotEqual {
			return field, incompatible("like only applies to EQUAL and NEQUAL")
		}
		if field.Type != schema.TypeString || field.Array {
			return field, incompatible("like only applies to String fields")
		}
	}

	switch {
	case op == OpEqual || op == OpNotEqual:
		if field.Type == schema.TypeGroup {
			return field, incompatible("group fields cannot be compared")
		}
		return field, nil

	case op.ordered():
		if field.Type != schema.TypeNumber || field.Array {
			return field, incompatible("ordering comparisons apply to Number fields only")
		}
		return field, nil

	case op == OpIn || op == OpNotIn:
		if field.Type == schema.TypeGroup || field.Array {
			return field, incompatible("set membership applies to scalar fields")
		}
		list := field
		list.Array = true
		return list, nil

	case op == OpContains:
		if !field.Array || field.Type == schema.TypeGroup {
			return field, incompatible("CONTAIN applies to array fields")
		}
		return field.Element(), nil

	case op == OpExists:
		return schema.FieldInfo{Path: field.Path, Type: schema.TypeBoolean}, nil
	}

	return field, incompatible("unsupported operator")
}

// checkSource verifies that src can produce a value of one of the wanted
// types. The first candidate's error is reported when none fits.
func checkSource(pos Position, field string, src Source, declared map[string]Input, wants ...schema.FieldInfo) error {
	var first error
	for _, want := range wants {
		err := checkSourceFor(pos, field, src, declared, want)
		if err == nil {
			return nil
		}
		if first == nil {
			first = err
		}
	}
	return first
}

func checkSourceFor(pos Position, field string, src Source, declared map[string]Input, want schema.FieldInfo) error {
	switch s := src.(type) {
	case nil:
		return &TypeMismatchError{Position: pos, Field: field, Expected: want.String(), Reason: "value source is not set"}

	case CustomValue:
		if _, err := coerceLiteral(s.Literal, want); err != nil {
			return &TypeMismatchError{Position: pos, Field: field, Expected: want.String(), Reason: err.Error()}
		}

	case ContextValue:
		if !contextPattern.MatchString(s.Variable) {
			return &TypeMismatchError{
				Position: pos,
				Field:    field,
				Expected: want.String(),
				Reason:   "context variable must be a dotted identifier",
			}
		}

	case InputValue:
		in, ok := declared[s.Name()]
		if !ok {
			return &UnknownInputError{Position: pos, Input: s.Name()}
		}
		if !inputFits(in, want) {
			return &TypeMismatchError{Position: pos, Field: field, Expected: want.String(), Got: in.TypeString()}
		}
	}
	return nil
}
