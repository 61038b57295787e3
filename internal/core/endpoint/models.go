package endpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Operation int

const (
	OperationGet Operation = iota
	OperationPost
	OperationPut
	OperationDelete
)

func (o Operation) Valid() bool {
	return o >= OperationGet && o <= OperationDelete
}

func (o Operation) String() string {
	switch o {
	case OperationGet:
		return "GET"
	case OperationPost:
		return "POST"
	case OperationPut:
		return "PUT"
	case OperationDelete:
		return "DELETE"
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// Writes reports whether the operation mutates documents and therefore
// carries assignments.
func (o Operation) Writes() bool {
	return o == OperationPost || o == OperationPut
}

type Location int

const (
	LocationInvalid Location = -1
	LocationBody    Location = 0
	LocationQuery   Location = 1
	LocationURL     Location = 2
)

func (l Location) Valid() bool {
	return l >= LocationBody && l <= LocationURL
}

func (l Location) String() string {
	switch l {
	case LocationBody:
		return "body"
	case LocationQuery:
		return "query"
	case LocationURL:
		return "url"
	}
	return "invalid"
}

// UnmarshalJSON accepts the numeric code or its name. Anything else decodes
// to LocationInvalid so the input validator can report it.
func (l *Location) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		switch strings.ToLower(name) {
		case "body":
			*l = LocationBody
		case "query":
			*l = LocationQuery
		case "url", "params", "urlparams":
			*l = LocationURL
		default:
			*l = LocationInvalid
		}
		return nil
	}

	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		*l = LocationInvalid
		return nil
	}
	*l = Location(code)
	return nil
}

type InputType string

const (
	InputString   InputType = "String"
	InputNumber   InputType = "Number"
	InputBoolean  InputType = "Boolean"
	InputDate     InputType = "Date"
	InputObjectID InputType = "ObjectId"
)

func (t InputType) Valid() bool {
	switch t {
	case InputString, InputNumber, InputBoolean, InputDate, InputObjectID:
		return true
	}
	return false
}

type Input struct {
	Name     string    `json:"name"`
	Type     InputType `json:"type"`
	Location Location  `json:"location"`
	Optional bool      `json:"optional"`
	Array    bool      `json:"array"`
}

func (in Input) TypeString() string {
	if in.Array {
		return "Array<" + string(in.Type) + ">"
	}
	return string(in.Type)
}

type Action int

const (
	ActionSet Action = iota
	ActionIncrement
	ActionDecrement
	ActionAppend
	ActionRemove
)

func (a Action) Valid() bool {
	return a >= ActionSet && a <= ActionRemove
}

func (a Action) String() string {
	switch a {
	case ActionSet:
		return "SET"
	case ActionIncrement:
		return "INCREMENT"
	case ActionDecrement:
		return "DECREMENT"
	case ActionAppend:
		return "APPEND"
	case ActionRemove:
		return "REMOVE"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

type Assignment struct {
	SchemaField     string  `json:"schemaField"`
	Action          Action  `json:"action"`
	AssignmentField Operand `json:"assignmentField"`
}

// Draft is the user-authored endpoint submitted for create, update or a
// dry-run validation.
type Draft struct {
	Name           string       `json:"name" validate:"required,max=128"`
	Operation      Operation    `json:"operation" validate:"min=0,max=3"`
	SelectedSchema string       `json:"selectedSchema" validate:"required"`
	Authentication bool         `json:"authentication"`
	Paginated      bool         `json:"paginated"`
	Sorted         bool         `json:"sorted"`
	Inputs         []Input      `json:"inputs" validate:"required"`
	Queries        []*GroupNode `json:"queries" validate:"required,min=1"`
	Assignments    []Assignment `json:"assignments"`
}

// UnmarshalJSON decodes the draft. The query forest is read in a single
// pass and may hold at most MaxDecodedNodes nodes.
func (d *Draft) UnmarshalJSON(data []byte) error {
	return d.decode(data, MaxDecodedNodes)
}

func (d *Draft) decode(data []byte, limit int) error {
	type plain Draft
	aux := struct {
		*plain
		Queries json.RawMessage `json:"queries"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	d.Queries = nil
	if len(aux.Queries) == 0 {
		return nil
	}
	queries, err := decodeForest(aux.Queries, limit)
	if err != nil {
		return err
	}
	d.Queries = queries
	return nil
}

// Definition is a validated, persisted custom endpoint.
type Definition struct {
	ID             string       `json:"_id"`
	Name           string       `json:"name"`
	Operation      Operation    `json:"operation"`
	SelectedSchema string       `json:"selectedSchema"`
	Authentication bool         `json:"authentication"`
	Paginated      bool         `json:"paginated"`
	Sorted         bool         `json:"sorted"`
	Inputs         []Input      `json:"inputs"`
	Queries        []*GroupNode `json:"queries"`
	Assignments    []Assignment `json:"assignments"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// Draft returns the authored part of the definition, for re-validation.
func (d *Definition) Draft() *Draft {
	return &Draft{
		Name:           d.Name,
		Operation:      d.Operation,
		SelectedSchema: d.SelectedSchema,
		Authentication: d.Authentication,
		Paginated:      d.Paginated,
		Sorted:         d.Sorted,
		Inputs:         d.Inputs,
		Queries:        d.Queries,
		Assignments:    d.Assignments,
	}
}

func newDefinition(id string, d *Draft, createdAt, updatedAt time.Time) *Definition {
	def := &Definition{
		ID:             id,
		Name:           d.Name,
		Operation:      d.Operation,
		SelectedSchema: d.SelectedSchema,
		Authentication: d.Authentication,
		Paginated:      d.Paginated,
		Sorted:         d.Sorted,
		Inputs:         d.Inputs,
		Queries:        d.Queries,
		Assignments:    d.Assignments,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
	if def.Inputs == nil {
		def.Inputs = []Input{}
	}
	if def.Assignments == nil {
		def.Assignments = []Assignment{}
	}
	return def
}

type ListFilter struct {
	Schema    string `schema:"schema"`
	Operation *int   `schema:"operation"`
	Name      string `schema:"name"`
	Limit     int    `schema:"limit"`
	Offset    int    `schema:"offset"`
}

type ListEndpointsResponse struct {
	Endpoints []*Definition `json:"endpoints"`
	Total     int           `json:"total"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
}
