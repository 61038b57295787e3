package endpoint

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/conduit/conduit/internal/core/schema"
)

// Bind encodings tell the executor how to pass a runtime value.
const (
	EncodingJSON    = "json"
	EncodingNumeric = "numeric"
	EncodingText    = "text"
	EncodingPattern = "pattern"
)

// Bind is one positional parameter of a plan. Custom literals carry their
// encoded Value; Input and Context binds name the value the executor
// supplies per request.
type Bind struct {
	Position int        `json:"position"`
	Kind     SourceKind `json:"kind"`
	Name     string     `json:"name,omitempty"`
	Value    any        `json:"value,omitempty"`
	Encoding string     `json:"encoding"`
	Optional bool       `json:"optional,omitempty"`
}

type UpdateOp struct {
	Field  string `json:"field"`
	Action string `json:"action"`
	Expr   string `json:"expr"`
}

// Plan is the storage-level translation of a definition over the documents
// table's JSONB data column.
type Plan struct {
	EndpointID string     `json:"endpointId"`
	Operation  string     `json:"operation"`
	Schema     string     `json:"schema"`
	Filter     string     `json:"filter"`
	Binds      []Bind     `json:"binds"`
	Updates    []UpdateOp `json:"updates"`
	Paginated  bool       `json:"paginated"`
	Sorted     bool       `json:"sorted"`
}

var reservedColumns = map[string]string{
	schema.FieldID:        "id",
	schema.FieldCreatedAt: "created_at",
	schema.FieldUpdatedAt: "updated_at",
}

// Compile translates a validated definition into a Plan. Top-level groups
// are combined with AND. Output is deterministic for a given definition.
func Compile(s *schema.Schema, def *Definition) (*Plan, error) {
	c := &compiler{schema: s, inputs: indexInputs(def.Inputs)}

	clauses := make([]string, 0, len(def.Queries))
	for _, g := range def.Queries {
		clause, err := c.node(g)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}

	filter := "TRUE"
	if len(clauses) > 0 {
		filter = strings.Join(clauses, " AND ")
	}

	updates := make([]UpdateOp, 0, len(def.Assignments))
	for i, a := range def.Assignments {
		op, err := c.update(i, a)
		if err != nil {
			return nil, err
		}
		updates = append(updates, op)
	}

	binds := c.binds
	if binds == nil {
		binds = []Bind{}
	}

	return &Plan{
		EndpointID: def.ID,
		Operation:  def.Operation.String(),
		Schema:     s.Name,
		Filter:     filter,
		Binds:      binds,
		Updates:    updates,
		Paginated:  def.Paginated,
		Sorted:     def.Sorted,
	}, nil
}

type compiler struct {
	schema *schema.Schema
	inputs map[string]Input
	binds  []Bind
}

func (c *compiler) node(n Node) (string, error) {
	switch node := n.(type) {
	case *GroupNode:
		if node == nil {
			return "", &MalformedNodeError{Reason: "query entry is null"}
		}
		if len(node.Children) == 0 {
			return "", &EmptyGroupError{NodeID: node.ID}
		}
		parts := make([]string, 0, len(node.Children))
		for _, child := range node.Children {
			part, err := c.node(child)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return "(" + strings.Join(parts, " "+string(node.Operator)+" ") + ")", nil
	case *LeafNode:
		return c.leaf(node)
	}
	return "", fmt.Errorf("unsupported node %T", n)
}

func (c *compiler) leaf(l *LeafNode) (string, error) {
	field, err := schema.Resolve(c.schema, l.SchemaField)
	if err != nil {
		return "", &UnknownFieldError{Position: atNode(l.ID), Field: l.SchemaField, Err: err}
	}
	want, err := comparisonOperand(l, field)
	if err != nil {
		return "", err
	}
	src := l.Comparison.Source

	if col, ok := reservedColumns[l.SchemaField]; ok {
		return c.reservedLeaf(l, col, want)
	}

	path := jsonPath(l.SchemaField)

	switch l.Operation {
	case OpEqual, OpNotEqual:
		cmp := "="
		if l.Operation == OpNotEqual {
			cmp = "!="
		}
		if l.Comparison.Like {
			cmp = "ILIKE"
			if l.Operation == OpNotEqual {
				cmp = "NOT ILIKE"
			}
			p, err := c.bind(atNode(l.ID), l.SchemaField, src, want, EncodingPattern)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s %s %s", textPath(l.SchemaField), cmp, p), nil
		}
		p, err := c.bind(atNode(l.ID), l.SchemaField, src, want, EncodingJSON)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s::jsonb", path, cmp, p), nil

	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		p, err := c.bind(atNode(l.ID), l.SchemaField, src, want, EncodingNumeric)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s)::numeric %s %s", path, orderedSQL[l.Operation], p), nil

	case OpIn, OpNotIn:
		p, err := c.bind(atNode(l.ID), l.SchemaField, src, want, EncodingJSON)
		if err != nil {
			return "", err
		}
		clause := fmt.Sprintf("%s::jsonb @> jsonb_build_array(%s)", p, path)
		if l.Operation == OpNotIn {
			clause = "NOT (" + clause + ")"
		}
		return clause, nil

	case OpContains:
		p, err := c.bind(atNode(l.ID), l.SchemaField, src, want, EncodingJSON)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s @> jsonb_build_array(%s::jsonb)", path, p), nil

	case OpExists:
		present, err := existsLiteral(l, want)
		if err != nil {
			return "", err
		}
		if present {
			return path + " IS NOT NULL", nil
		}
		return path + " IS NULL", nil
	}

	return "", &InvalidOperationError{NodeID: l.ID, Operation: l.Operation}
}

// reservedLeaf compiles a comparison on a system column rather than the
// JSON document.
func (c *compiler) reservedLeaf(l *LeafNode, col string, want schema.FieldInfo) (string, error) {
	src := l.Comparison.Source
	switch l.Operation {
	case OpEqual, OpNotEqual:
		cmp := "="
		if l.Operation == OpNotEqual {
			cmp = "!="
		}
		p, err := c.bind(atNode(l.ID), l.SchemaField, src, want, EncodingText)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s::text %s %s", col, cmp, p), nil
	case OpIn, OpNotIn:
		p, err := c.bind(atNode(l.ID), l.SchemaField, src, want, EncodingJSON)
		if err != nil {
			return "", err
		}
		clause := fmt.Sprintf("%s::text IN (SELECT jsonb_array_elements_text(%s::jsonb))", col, p)
		if l.Operation == OpNotIn {
			clause = "NOT (" + clause + ")"
		}
		return clause, nil
	case OpExists:
		present, err := existsLiteral(l, want)
		if err != nil {
			return "", err
		}
		if present {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	return "", &IncompatibleOperatorError{
		NodeID:    l.ID,
		Field:     l.SchemaField,
		FieldType: want.String(),
		Operation: l.Operation,
		Reason:    "unsupported on system fields",
	}
}

var orderedSQL = map[ComparisonOp]string{
	OpGreater:      ">",
	OpGreaterEqual: ">=",
	OpLess:         "<",
	OpLessEqual:    "<=",
}

func existsLiteral(l *LeafNode, want schema.FieldInfo) (bool, error) {
	lit, ok := l.Comparison.Source.(CustomValue)
	if !ok {
		return false, &TypeMismatchError{Position: atNode(l.ID), Field: l.SchemaField, Expected: want.String()}
	}
	v, err := coerceLiteral(lit.Literal, want)
	if err != nil {
		return false, &TypeMismatchError{Position: atNode(l.ID), Field: l.SchemaField, Expected: want.String(), Reason: err.Error()}
	}
	present, _ := v.(bool)
	return present, nil
}

func (c *compiler) update(i int, a Assignment) (UpdateOp, error) {
	field, err := schema.Resolve(c.schema, a.SchemaField)
	if err != nil {
		return UpdateOp{}, &UnknownFieldError{Position: atAssignment(i), Field: a.SchemaField, Err: err}
	}

	path := jsonPath(a.SchemaField)
	set := func(value string) string {
		return fmt.Sprintf("jsonb_set(data, '%s', %s, true)", pathArray(a.SchemaField), value)
	}
	src := a.AssignmentField.Source

	var expr string
	switch a.Action {
	case ActionSet:
		p, err := c.bind(atAssignment(i), a.SchemaField, src, field, EncodingJSON)
		if err != nil {
			return UpdateOp{}, err
		}
		expr = set(p + "::jsonb")

	case ActionIncrement, ActionDecrement:
		p, err := c.bind(atAssignment(i), a.SchemaField, src, field, EncodingNumeric)
		if err != nil {
			return UpdateOp{}, err
		}
		sign := "+"
		if a.Action == ActionDecrement {
			sign = "-"
		}
		expr = set(fmt.Sprintf("to_jsonb(COALESCE((%s)::numeric, 0) %s %s)", path, sign, p))

	case ActionAppend, ActionRemove:
		whole := c.wholeArray(src, field)
		want := field.Element()
		if whole {
			want = field
		}
		p, err := c.bind(atAssignment(i), a.SchemaField, src, want, EncodingJSON)
		if err != nil {
			return UpdateOp{}, err
		}
		if a.Action == ActionAppend {
			added := fmt.Sprintf("jsonb_build_array(%s::jsonb)", p)
			if whole {
				added = p + "::jsonb"
			}
			expr = set(fmt.Sprintf("COALESCE(%s, '[]'::jsonb) || %s", path, added))
		} else {
			keep := fmt.Sprintf("e <> %s::jsonb", p)
			if whole {
				keep = fmt.Sprintf("NOT (%s::jsonb @> jsonb_build_array(e))", p)
			}
			expr = set(fmt.Sprintf(
				"COALESCE((SELECT jsonb_agg(e) FROM jsonb_array_elements(%s) e WHERE %s), '[]'::jsonb)",
				path, keep,
			))
		}

	default:
		return UpdateOp{}, &IncompatibleActionError{Index: i, Field: a.SchemaField, FieldType: field.String(), Action: a.Action, Reason: "unknown action"}
	}

	return UpdateOp{Field: a.SchemaField, Action: a.Action.String(), Expr: expr}, nil
}

// wholeArray reports whether an APPEND/REMOVE source supplies a full list
// rather than a single element.
func (c *compiler) wholeArray(src Source, field schema.FieldInfo) bool {
	switch s := src.(type) {
	case InputValue:
		return c.inputs[s.Name()].Array
	case CustomValue:
		if _, err := coerceLiteral(s.Literal, field.Element()); err == nil {
			return false
		}
		_, err := coerceLiteral(s.Literal, field)
		return err == nil
	}
	return false
}

// bind records a positional parameter for src. pos and field locate the
// leaf or assignment the value belongs to in any mismatch error.
func (c *compiler) bind(pos Position, field string, src Source, want schema.FieldInfo, encoding string) (string, error) {
	b := Bind{Position: len(c.binds) + 1, Encoding: encoding}

	switch s := src.(type) {
	case CustomValue:
		v, err := coerceLiteral(s.Literal, want)
		if err != nil {
			return "", &TypeMismatchError{Position: pos, Field: field, Expected: want.String(), Reason: err.Error()}
		}
		b.Kind = SourceCustom
		b.Value, err = encodeLiteral(v, encoding)
		if err != nil {
			return "", err
		}
	case ContextValue:
		b.Kind = SourceContext
		b.Name = s.Variable
	case InputValue:
		b.Kind = SourceInput
		b.Name = s.Name()
		b.Optional = c.inputs[s.Name()].Optional
	default:
		return "", &TypeMismatchError{Position: pos, Field: field, Expected: want.String(), Reason: "value source is not set"}
	}

	c.binds = append(c.binds, b)
	return fmt.Sprintf("$%d", b.Position), nil
}

func encodeLiteral(v any, encoding string) (any, error) {
	switch encoding {
	case EncodingNumeric:
		return v, nil
	case EncodingPattern:
		return "%" + fmt.Sprint(v) + "%", nil
	case EncodingText:
		if ts, ok := v.(time.Time); ok {
			return ts.Format(time.RFC3339), nil
		}
		return fmt.Sprint(v), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// jsonPath supports nested properties like "address.city".
func jsonPath(field string) string {
	return fmt.Sprintf("data->'%s'", strings.ReplaceAll(quote(field), ".", "'->'"))
}

func textPath(field string) string {
	segments := strings.Split(quote(field), ".")
	last := segments[len(segments)-1]
	if len(segments) == 1 {
		return fmt.Sprintf("data->>'%s'", last)
	}
	return fmt.Sprintf("data->'%s'->>'%s'", strings.Join(segments[:len(segments)-1], "'->'"), last)
}

func pathArray(field string) string {
	return "{" + strings.ReplaceAll(quote(field), ".", ",") + "}"
}

func quote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
