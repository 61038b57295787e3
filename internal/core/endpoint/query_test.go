package endpoint

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/conduit/conduit/internal/core/schema"
)

func userSchema() *schema.Schema {
	return &schema.Schema{
		ID:   "users",
		Name: "User",
		Fields: map[string]*schema.Field{
			"name": {Type: schema.TypeString},
			"age":  {Type: schema.TypeNumber},
			"tags": {Type: schema.TypeString, Array: true},
		},
	}
}

// richSchema adds enums, relations, dates and nested groups on top of
// userSchema.
func richSchema() *schema.Schema {
	s := userSchema()
	s.Fields["role"] = &schema.Field{Type: schema.TypeString, Enum: true, EnumValues: []any{"admin", "member"}}
	s.Fields["owner"] = &schema.Field{Type: schema.TypeRelation, Model: "User"}
	s.Fields["joined"] = &schema.Field{Type: schema.TypeDate}
	s.Fields["active"] = &schema.Field{Type: schema.TypeBoolean}
	s.Fields["address"] = &schema.Field{
		Type: schema.TypeGroup,
		Fields: map[string]*schema.Field{
			"city": {Type: schema.TypeString},
		},
	}
	return s
}

func minAgeInput() []Input {
	return []Input{{Name: "minAge", Type: InputNumber, Location: LocationQuery}}
}

func leaf(id, field string, op ComparisonOp, src Source) *LeafNode {
	return &LeafNode{ID: id, SchemaField: field, Operation: op, Comparison: Comparison{Source: src}}
}

func and(id string, children ...Node) *GroupNode {
	return &GroupNode{ID: id, Operator: OperatorAnd, Children: children}
}

func literal(v string) CustomValue {
	return CustomValue{Literal: json.RawMessage(v)}
}

func TestValidateQueries_InputComparison(t *testing.T) {
	forest := []*GroupNode{and("g1", leaf("l1", "age", OpGreaterEqual, InputValue{Ref: "Input-minAge"}))}

	if err := ValidateQueries(userSchema(), minAgeInput(), forest); err != nil {
		t.Fatalf("ValidateQueries() error = %v", err)
	}
}

func TestValidateQueries_UnknownField(t *testing.T) {
	forest := []*GroupNode{and("g1", leaf("l1", "nonexistent", OpEqual, literal(`"x"`)))}

	err := ValidateQueries(userSchema(), nil, forest)

	var unknown *UnknownFieldError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownFieldError, got %v", err)
	}
	if unknown.Field != "nonexistent" || unknown.NodeID != "l1" {
		t.Errorf("unexpected error details %+v", unknown)
	}
	var notFound *schema.FieldNotFoundError
	if !errors.As(err, &notFound) {
		t.Error("expected the resolver error to be wrapped")
	}
}

func TestValidateQueries_Accepts(t *testing.T) {
	tests := []struct {
		name string
		node *LeafNode
	}{
		{"equal string literal", leaf("l", "name", OpEqual, literal(`"bob"`))},
		{"numeric string literal", leaf("l", "age", OpLess, literal(`"30"`))},
		{"set membership", leaf("l", "age", OpIn, literal(`[18, 21]`))},
		{"not in set", leaf("l", "name", OpNotIn, literal(`["a", "b"]`))},
		{"contains element", leaf("l", "tags", OpContains, literal(`"x"`))},
		{"array equality", leaf("l", "tags", OpEqual, literal(`["x", "y"]`))},
		{"exists", leaf("l", "tags", OpExists, literal(`true`))},
		{"context variable", leaf("l", "owner", OpEqual, ContextValue{Variable: "user.id"})},
		{"enum member", leaf("l", "role", OpEqual, literal(`"admin"`))},
		{"nested path", leaf("l", "address.city", OpNotEqual, literal(`"Paris"`))},
		{"rfc3339 date", leaf("l", "joined", OpEqual, literal(`"2024-01-02T15:04:05Z"`))},
		{"epoch date", leaf("l", "joined", OpEqual, literal(`1704207845000`))},
		{"boolean string", leaf("l", "active", OpEqual, literal(`"true"`))},
		{"object id", leaf("l", "owner", OpEqual, literal(`"507f1f77bcf86cd799439011"`))},
		{"uuid relation", leaf("l", "_id", OpEqual, literal(`"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`))},
		{"input without prefix", leaf("l", "age", OpGreater, InputValue{Ref: "minAge"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forest := []*GroupNode{and("g", tt.node)}
			if err := ValidateQueries(richSchema(), minAgeInput(), forest); err != nil {
				t.Errorf("ValidateQueries() error = %v", err)
			}
		})
	}
}

func TestValidateQueries_Like(t *testing.T) {
	ok := leaf("l", "name", OpEqual, literal(`"jo"`))
	ok.Comparison.Like = true
	if err := ValidateQueries(userSchema(), nil, []*GroupNode{and("g", ok)}); err != nil {
		t.Errorf("like on String EQUAL should pass: %v", err)
	}

	bad := leaf("l", "age", OpEqual, literal(`1`))
	bad.Comparison.Like = true
	err := ValidateQueries(userSchema(), nil, []*GroupNode{and("g", bad)})
	var incompatible *IncompatibleOperatorError
	if !errors.As(err, &incompatible) {
		t.Errorf("like on Number should fail with IncompatibleOperatorError, got %v", err)
	}
}

func TestValidateQueries_IncompatibleOperator(t *testing.T) {
	tests := []struct {
		name string
		node *LeafNode
	}{
		{"ordering on string", leaf("l", "name", OpGreater, literal(`"a"`))},
		{"ordering on array", leaf("l", "tags", OpLessEqual, literal(`1`))},
		{"contains on scalar", leaf("l", "name", OpContains, literal(`"a"`))},
		{"set on array", leaf("l", "tags", OpIn, literal(`["a"]`))},
		{"equal on group", leaf("l", "address", OpEqual, literal(`{}`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQueries(richSchema(), nil, []*GroupNode{and("g", tt.node)})
			var incompatible *IncompatibleOperatorError
			if !errors.As(err, &incompatible) {
				t.Fatalf("expected IncompatibleOperatorError, got %v", err)
			}
			if incompatible.NodeID != "l" {
				t.Errorf("expected node id l, got %q", incompatible.NodeID)
			}
		})
	}
}

func TestValidateQueries_TypeMismatch(t *testing.T) {
	tests := []struct {
		name string
		node *LeafNode
	}{
		{"string for number", leaf("l", "age", OpEqual, literal(`"abc"`))},
		{"NaN for number", leaf("l", "age", OpEqual, literal(`"NaN"`))},
		{"Inf for number", leaf("l", "age", OpGreater, literal(`"Inf"`))},
		{"negative infinity for number", leaf("l", "age", OpLess, literal(`"-Infinity"`))},
		{"NaN in set", leaf("l", "age", OpIn, literal(`[1, "nan"]`))},
		{"scalar for set", leaf("l", "age", OpIn, literal(`18`))},
		{"scalar for array equality", leaf("l", "tags", OpEqual, literal(`"x"`))},
		{"enum outsider", leaf("l", "role", OpEqual, literal(`"owner"`))},
		{"bad object id", leaf("l", "owner", OpEqual, literal(`"xyz"`))},
		{"null literal", leaf("l", "name", OpEqual, literal(`null`))},
		{"unset source", leaf("l", "name", OpEqual, nil)},
		{"exists with input", leaf("l", "name", OpExists, InputValue{Ref: "minAge"})},
		{"exists with non-boolean", leaf("l", "name", OpExists, literal(`"yes"`))},
		{"bad context variable", leaf("l", "name", OpEqual, ContextValue{Variable: "1bad"})},
		{"input type", leaf("l", "name", OpEqual, InputValue{Ref: "Input-minAge"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQueries(richSchema(), minAgeInput(), []*GroupNode{and("g", tt.node)})
			var mismatch *TypeMismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("expected TypeMismatchError, got %v", err)
			}
		})
	}
}

func TestValidateQueries_UnknownInput(t *testing.T) {
	forest := []*GroupNode{and("g", leaf("l", "age", OpEqual, InputValue{Ref: "Input-maxAge"}))}

	err := ValidateQueries(userSchema(), minAgeInput(), forest)

	var unknown *UnknownInputError
	if !errors.As(err, &unknown) || unknown.Input != "maxAge" {
		t.Fatalf("expected UnknownInputError for maxAge, got %v", err)
	}
}

func TestValidateQueries_InvalidOperation(t *testing.T) {
	forest := []*GroupNode{and("g", leaf("l", "age", OpUnset, literal(`1`)))}

	err := ValidateQueries(userSchema(), nil, forest)

	var invalid *InvalidOperationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidOperationError, got %v", err)
	}
}

func TestValidateQueries_EmptyGroup(t *testing.T) {
	forest := []*GroupNode{and("g1", leaf("l1", "age", OpEqual, literal(`1`)), and("g2"))}

	err := ValidateQueries(userSchema(), nil, forest)

	var empty *EmptyGroupError
	if !errors.As(err, &empty) || empty.NodeID != "g2" {
		t.Fatalf("expected EmptyGroupError for g2, got %v", err)
	}
}

func TestValidateQueries_FirstFailureWins(t *testing.T) {
	forest := []*GroupNode{
		and("g1",
			leaf("l1", "age", OpEqual, literal(`1`)),
			leaf("l2", "missing", OpEqual, literal(`1`)),
		),
		and("g2", leaf("l3", "name", OpGreater, literal(`"a"`))),
	}

	err := ValidateQueries(userSchema(), nil, forest)

	var unknown *UnknownFieldError
	if !errors.As(err, &unknown) || unknown.NodeID != "l2" {
		t.Fatalf("expected the pre-order first failure at l2, got %v", err)
	}
}

func TestValidateQueries_DoesNotMutate(t *testing.T) {
	forest := []*GroupNode{and("g1", leaf("l1", "age", OpGreaterEqual, InputValue{Ref: "Input-minAge"}))}
	before, _ := json.Marshal(forest)

	for i := 0; i < 2; i++ {
		if err := ValidateQueries(userSchema(), minAgeInput(), forest); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	after, _ := json.Marshal(forest)
	if string(before) != string(after) {
		t.Error("validation mutated the tree")
	}
}
