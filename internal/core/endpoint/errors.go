package endpoint

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("custom endpoint not found")

// Error codes carried in API responses.
const (
	CodeInvalidDraft        = "invalid_draft"
	CodeMalformedNode       = "malformed_node"
	CodeDuplicateNode       = "duplicate_node"
	CodeTreeTooLarge        = "tree_too_large"
	CodeSchemaNotFound      = "schema_not_found"
	CodeDuplicateName       = "duplicate_name"
	CodeInvalidInput        = "invalid_input"
	CodeUnknownField        = "unknown_field"
	CodeUnknownInput        = "unknown_input"
	CodeInvalidOperation    = "invalid_operation"
	CodeIncompatibleOp      = "incompatible_operator"
	CodeTypeMismatch        = "type_mismatch"
	CodeEmptyGroup          = "empty_group"
	CodeMissingAssignment   = "missing_field_assignment"
	CodeDuplicateAssignment = "duplicate_assignment"
	CodeIncompatibleAction  = "incompatible_action"
	CodeReservedField       = "reserved_field"
)

// ValidationError is implemented by every rejection the validators produce.
type ValidationError interface {
	error
	Code() string
	Details() map[string]any
}

// AsValidationError unwraps err to a ValidationError, if it is one.
func AsValidationError(err error) (ValidationError, bool) {
	var ve ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// Position locates the offending element: a query node, or an assignment by
// index when NodeID is empty.
type Position struct {
	NodeID string
	Index  int
}

func atNode(id string) Position   { return Position{NodeID: id, Index: -1} }
func atAssignment(i int) Position { return Position{Index: i} }

func (p Position) String() string {
	if p.NodeID != "" {
		return fmt.Sprintf("query node %s", p.NodeID)
	}
	return fmt.Sprintf("assignment %d", p.Index)
}

func (p Position) details(m map[string]any) map[string]any {
	if p.NodeID != "" {
		m["nodeId"] = p.NodeID
	} else if p.Index >= 0 {
		m["assignment"] = p.Index
	}
	return m
}

type InvalidDraftError struct {
	Field  string
	Reason string
}

func (e *InvalidDraftError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
func (e *InvalidDraftError) Code() string { return CodeInvalidDraft }
func (e *InvalidDraftError) Details() map[string]any {
	return map[string]any{"field": e.Field, "reason": e.Reason}
}

type MalformedNodeError struct {
	NodeID string
	Reason string
}

func (e *MalformedNodeError) Error() string {
	if e.NodeID == "" {
		return "malformed query node: " + e.Reason
	}
	return fmt.Sprintf("malformed query node %s: %s", e.NodeID, e.Reason)
}
func (e *MalformedNodeError) Code() string { return CodeMalformedNode }
func (e *MalformedNodeError) Details() map[string]any {
	return atNode(e.NodeID).details(map[string]any{"reason": e.Reason})
}

type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("query node id %s is used more than once", e.NodeID)
}
func (e *DuplicateNodeError) Code() string { return CodeDuplicateNode }
func (e *DuplicateNodeError) Details() map[string]any {
	return map[string]any{"nodeId": e.NodeID}
}

type TreeTooLargeError struct {
	Count int
	Limit int
}

func (e *TreeTooLargeError) Error() string {
	return fmt.Sprintf("query tree has %d nodes or more, limit is %d", e.Count, e.Limit)
}
func (e *TreeTooLargeError) Code() string { return CodeTreeTooLarge }
func (e *TreeTooLargeError) Details() map[string]any {
	return map[string]any{"count": e.Count, "limit": e.Limit}
}

type SchemaNotFoundError struct {
	SchemaID string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("schema %s not found", e.SchemaID)
}
func (e *SchemaNotFoundError) Code() string { return CodeSchemaNotFound }
func (e *SchemaNotFoundError) Details() map[string]any {
	return map[string]any{"schemaId": e.SchemaID}
}

// DuplicateNameError reports an endpoint name already taken, or an input
// name declared twice (Kind "input").
type DuplicateNameError struct {
	Kind string
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s name %q already exists", e.Kind, e.Name)
}
func (e *DuplicateNameError) Code() string { return CodeDuplicateName }
func (e *DuplicateNameError) Details() map[string]any {
	return map[string]any{"kind": e.Kind, "name": e.Name}
}

type InvalidInputError struct {
	Index  int
	Name   string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("input %d (%q): %s", e.Index, e.Name, e.Reason)
}
func (e *InvalidInputError) Code() string { return CodeInvalidInput }
func (e *InvalidInputError) Details() map[string]any {
	return map[string]any{"input": e.Index, "name": e.Name, "reason": e.Reason}
}

type UnknownFieldError struct {
	Position
	Field string
	Err   error
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s: unknown schema field %q", e.Position, e.Field)
}
func (e *UnknownFieldError) Unwrap() error { return e.Err }
func (e *UnknownFieldError) Code() string  { return CodeUnknownField }
func (e *UnknownFieldError) Details() map[string]any {
	return e.Position.details(map[string]any{"field": e.Field})
}

type UnknownInputError struct {
	Position
	Input string
}

func (e *UnknownInputError) Error() string {
	return fmt.Sprintf("%s: input %q is not declared", e.Position, e.Input)
}
func (e *UnknownInputError) Code() string { return CodeUnknownInput }
func (e *UnknownInputError) Details() map[string]any {
	return e.Position.details(map[string]any{"input": e.Input})
}

type InvalidOperationError struct {
	NodeID    string
	Operation ComparisonOp
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("query node %s: operation %d is not a comparison operator", e.NodeID, int(e.Operation))
}
func (e *InvalidOperationError) Code() string { return CodeInvalidOperation }
func (e *InvalidOperationError) Details() map[string]any {
	return map[string]any{"nodeId": e.NodeID, "operation": int(e.Operation)}
}

type IncompatibleOperatorError struct {
	NodeID    string
	Field     string
	FieldType string
	Operation ComparisonOp
	Reason    string
}

func (e *IncompatibleOperatorError) Error() string {
	return fmt.Sprintf("query node %s: %s cannot be applied to %s (%s): %s",
		e.NodeID, e.Operation, e.Field, e.FieldType, e.Reason)
}
func (e *IncompatibleOperatorError) Code() string { return CodeIncompatibleOp }
func (e *IncompatibleOperatorError) Details() map[string]any {
	return map[string]any{
		"nodeId":    e.NodeID,
		"field":     e.Field,
		"fieldType": e.FieldType,
		"operation": int(e.Operation),
		"reason":    e.Reason,
	}
}

type TypeMismatchError struct {
	Position
	Field    string
	Expected string
	Got      string
	Reason   string
}

func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("%s: value for %q must be %s", e.Position, e.Field, e.Expected)
	if e.Got != "" {
		msg += ", got " + e.Got
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}
func (e *TypeMismatchError) Code() string { return CodeTypeMismatch }
func (e *TypeMismatchError) Details() map[string]any {
	m := map[string]any{"field": e.Field, "expected": e.Expected}
	if e.Got != "" {
		m["got"] = e.Got
	}
	if e.Reason != "" {
		m["reason"] = e.Reason
	}
	return e.Position.details(m)
}

type EmptyGroupError struct {
	NodeID string
}

func (e *EmptyGroupError) Error() string {
	return fmt.Sprintf("query group %s has no conditions", e.NodeID)
}
func (e *EmptyGroupError) Code() string { return CodeEmptyGroup }
func (e *EmptyGroupError) Details() map[string]any {
	return map[string]any{"nodeId": e.NodeID}
}

type MissingFieldAssignmentError struct {
	Field string
}

func (e *MissingFieldAssignmentError) Error() string {
	return fmt.Sprintf("create endpoints must assign every schema field, %q is missing", e.Field)
}
func (e *MissingFieldAssignmentError) Code() string { return CodeMissingAssignment }
func (e *MissingFieldAssignmentError) Details() map[string]any {
	return map[string]any{"field": e.Field}
}

type DuplicateAssignmentError struct {
	Index int
	Field string
}

func (e *DuplicateAssignmentError) Error() string {
	return fmt.Sprintf("assignment %d: field %q is assigned more than once", e.Index, e.Field)
}
func (e *DuplicateAssignmentError) Code() string { return CodeDuplicateAssignment }
func (e *DuplicateAssignmentError) Details() map[string]any {
	return map[string]any{"assignment": e.Index, "field": e.Field}
}

type IncompatibleActionError struct {
	Index     int
	Field     string
	FieldType string
	Action    Action
	Reason    string
}

func (e *IncompatibleActionError) Error() string {
	return fmt.Sprintf("assignment %d: %s cannot be applied to %s (%s): %s",
		e.Index, e.Action, e.Field, e.FieldType, e.Reason)
}
func (e *IncompatibleActionError) Code() string { return CodeIncompatibleAction }
func (e *IncompatibleActionError) Details() map[string]any {
	return map[string]any{
		"assignment": e.Index,
		"field":      e.Field,
		"fieldType":  e.FieldType,
		"action":     int(e.Action),
		"reason":     e.Reason,
	}
}

type ReservedFieldError struct {
	Index int
	Field string
}

func (e *ReservedFieldError) Error() string {
	return fmt.Sprintf("assignment %d: %q is managed by the system and cannot be assigned", e.Index, e.Field)
}
func (e *ReservedFieldError) Code() string { return CodeReservedField }
func (e *ReservedFieldError) Details() map[string]any {
	return map[string]any{"assignment": e.Index, "field": e.Field}
}
