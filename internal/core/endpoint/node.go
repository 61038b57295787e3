package endpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type GroupOperator string

const (
	OperatorAnd GroupOperator = "AND"
	OperatorOr  GroupOperator = "OR"
)

type ComparisonOp int

const (
	OpUnset ComparisonOp = iota - 1
	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpIn
	OpNotIn
	OpContains
	OpExists
)

func (o ComparisonOp) Valid() bool {
	return o >= OpEqual && o <= OpExists
}

func (o ComparisonOp) String() string {
	switch o {
	case OpEqual:
		return "EQUAL"
	case OpNotEqual:
		return "NEQUAL"
	case OpGreater:
		return "GREATER"
	case OpGreaterEqual:
		return "GREATER_EQUAL"
	case OpLess:
		return "LESS"
	case OpLessEqual:
		return "LESS_EQUAL"
	case OpIn:
		return "EQUAL_SET"
	case OpNotIn:
		return "NEQUAL_SET"
	case OpContains:
		return "CONTAIN"
	case OpExists:
		return "EXISTS"
	case OpUnset:
		return "UNSET"
	}
	return fmt.Sprintf("ComparisonOp(%d)", int(o))
}

func (o ComparisonOp) ordered() bool {
	return o >= OpGreater && o <= OpLessEqual
}

// Node is a query tree element: a *GroupNode or a *LeafNode. The kind is
// fixed when the tree is decoded.
type Node interface {
	NodeID() string
	node()
}

type GroupNode struct {
	ID       string
	Operator GroupOperator
	Children []Node
}

type LeafNode struct {
	ID          string
	SchemaField string
	Operation   ComparisonOp
	Comparison  Comparison
}

func (g *GroupNode) NodeID() string { return g.ID }
func (l *LeafNode) NodeID() string  { return l.ID }

func (*GroupNode) node() {}
func (*LeafNode) node()  {}

type groupJSON struct {
	ID       string          `json:"_id"`
	Operator GroupOperator   `json:"operator"`
	Queries  json.RawMessage `json:"queries"`
}

type leafJSON struct {
	ID              string          `json:"_id"`
	SchemaField     string          `json:"schemaField"`
	Operation       *ComparisonOp   `json:"operation"`
	ComparisonField json.RawMessage `json:"comparisonField"`
}

func (g *GroupNode) MarshalJSON() ([]byte, error) {
	children := g.Children
	if children == nil {
		children = []Node{}
	}
	queries, err := json.Marshal(children)
	if err != nil {
		return nil, err
	}
	return json.Marshal(groupJSON{ID: g.ID, Operator: g.Operator, Queries: queries})
}

func (l *LeafNode) MarshalJSON() ([]byte, error) {
	comparison, err := json.Marshal(l.Comparison)
	if err != nil {
		return nil, err
	}
	op := l.Operation
	return json.Marshal(leafJSON{
		ID:              l.ID,
		SchemaField:     l.SchemaField,
		Operation:       &op,
		ComparisonField: comparison,
	})
}

// MaxDecodedNodes bounds how many nodes a single decode may produce,
// whatever ceiling the service is configured with.
const MaxDecodedNodes = 4096

// UnmarshalJSON decodes a group and its subtree. Objects that look like a
// leaf are rejected, which keeps top-level entries groups.
func (g *GroupNode) UnmarshalJSON(data []byte) error {
	td := newTreeDecoder(data, MaxDecodedNodes)
	n, err := td.group()
	if err != nil || n == nil {
		return err
	}
	*g = *n
	return nil
}

func (l *LeafNode) UnmarshalJSON(data []byte) error {
	td := newTreeDecoder(data, MaxDecodedNodes)
	n, err := td.node()
	if err != nil {
		return err
	}
	leaf, ok := n.(*LeafNode)
	if !ok {
		return &MalformedNodeError{NodeID: n.NodeID(), Reason: "expected a leaf node, found a group"}
	}
	*l = *leaf
	return nil
}

// decodeForest reads the top-level query array in one pass over the input,
// failing with TreeTooLargeError as soon as more than limit nodes are seen.
func decodeForest(data []byte, limit int) ([]*GroupNode, error) {
	td := newTreeDecoder(data, limit)
	tok, err := td.dec.Token()
	if err != nil {
		return nil, &MalformedNodeError{Reason: err.Error()}
	}
	if tok == nil {
		return nil, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, &MalformedNodeError{Reason: "queries must be an array"}
	}

	forest := []*GroupNode{}
	for td.dec.More() {
		g, err := td.group()
		if err != nil {
			return nil, err
		}
		forest = append(forest, g)
	}
	if _, err := td.dec.Token(); err != nil {
		return nil, &MalformedNodeError{Reason: err.Error()}
	}
	return forest, nil
}

type treeDecoder struct {
	dec   *json.Decoder
	count int
	limit int
}

func newTreeDecoder(data []byte, limit int) *treeDecoder {
	return &treeDecoder{dec: json.NewDecoder(bytes.NewReader(data)), limit: limit}
}

// group decodes a top-level entry. A JSON null yields a nil group so the
// envelope check can report its position.
func (td *treeDecoder) group() (*GroupNode, error) {
	n, err := td.next(true)
	if err != nil || n == nil {
		return nil, err
	}
	g, ok := n.(*GroupNode)
	if !ok {
		return nil, &MalformedNodeError{NodeID: n.NodeID(), Reason: "expected a group node, found a leaf"}
	}
	return g, nil
}

func (td *treeDecoder) node() (Node, error) {
	return td.next(false)
}

// next reads one node object. The kind is picked from the keys present:
// queries makes a group, schemaField makes a leaf.
func (td *treeDecoder) next(nullable bool) (Node, error) {
	tok, err := td.dec.Token()
	if err != nil {
		return nil, &MalformedNodeError{Reason: err.Error()}
	}
	if tok == nil && nullable {
		return nil, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, &MalformedNodeError{Reason: "node must be a JSON object"}
	}

	td.count++
	if td.count > td.limit {
		return nil, &TreeTooLargeError{Count: td.count, Limit: td.limit}
	}

	var (
		id, schemaField string
		operator        GroupOperator
		operation       *ComparisonOp
		comparison      json.RawMessage
		children        []Node
		isGroup, isLeaf bool
	)
	for td.dec.More() {
		keyTok, err := td.dec.Token()
		if err != nil {
			return nil, &MalformedNodeError{NodeID: id, Reason: err.Error()}
		}
		key, _ := keyTok.(string)

		switch key {
		case "_id":
			err = td.dec.Decode(&id)
		case "operator":
			err = td.dec.Decode(&operator)
		case "schemaField":
			isLeaf = true
			err = td.dec.Decode(&schemaField)
		case "operation":
			err = td.dec.Decode(&operation)
		case "comparisonField":
			err = td.dec.Decode(&comparison)
		case "queries":
			isGroup = true
			children, err = td.children(id)
		default:
			var skip json.RawMessage
			err = td.dec.Decode(&skip)
		}
		if err != nil {
			if _, ok := AsValidationError(err); ok {
				return nil, err
			}
			return nil, &MalformedNodeError{NodeID: id, Reason: err.Error()}
		}
	}
	if _, err := td.dec.Token(); err != nil {
		return nil, &MalformedNodeError{NodeID: id, Reason: err.Error()}
	}

	switch {
	case isGroup && isLeaf:
		return nil, &MalformedNodeError{NodeID: id, Reason: "node has both queries and schemaField"}
	case !isGroup && !isLeaf:
		return nil, &MalformedNodeError{NodeID: id, Reason: "node has neither queries nor schemaField"}
	case id == "":
		return nil, &MalformedNodeError{Reason: "node has no _id"}
	}

	if isGroup {
		if operator != OperatorAnd && operator != OperatorOr {
			return nil, &MalformedNodeError{NodeID: id, Reason: fmt.Sprintf("unknown group operator %q", operator)}
		}
		return &GroupNode{ID: id, Operator: operator, Children: children}, nil
	}

	leaf := &LeafNode{ID: id, SchemaField: schemaField, Operation: OpUnset}
	if operation != nil {
		leaf.Operation = *operation
	}
	if len(comparison) > 0 && string(comparison) != "null" {
		if err := json.Unmarshal(comparison, &leaf.Comparison); err != nil {
			return nil, &MalformedNodeError{NodeID: id, Reason: err.Error()}
		}
	}
	return leaf, nil
}

func (td *treeDecoder) children(parent string) ([]Node, error) {
	tok, err := td.dec.Token()
	if err != nil {
		return nil, err
	}
	children := []Node{}
	if tok == nil {
		return children, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, &MalformedNodeError{NodeID: parent, Reason: "queries must be an array"}
	}
	for td.dec.More() {
		child, err := td.node()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if _, err := td.dec.Token(); err != nil {
		return nil, err
	}
	return children, nil
}

// Walk visits every node of the forest in pre-order, stopping at the first
// error fn returns.
func Walk(forest []*GroupNode, fn func(Node) error) error {
	for _, g := range forest {
		if g == nil {
			return &MalformedNodeError{Reason: "query entry is null"}
		}
		if err := walk(g, fn); err != nil {
			return err
		}
	}
	return nil
}

func walk(n Node, fn func(Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	if g, ok := n.(*GroupNode); ok {
		for _, child := range g.Children {
			if child == nil {
				return &MalformedNodeError{NodeID: g.ID, Reason: "group contains a null node"}
			}
			if err := walk(child, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// CountNodes returns the number of group and leaf nodes in the forest.
func CountNodes(forest []*GroupNode) int {
	n := 0
	_ = Walk(forest, func(Node) error {
		n++
		return nil
	})
	return n
}
