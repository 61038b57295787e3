package endpoint

import (
	"encoding/json"
	"fmt"
	"strings"
)

type SourceKind string

const (
	SourceCustom  SourceKind = "Custom"
	SourceContext SourceKind = "Context"
	SourceInput   SourceKind = "Input"
)

// inputPrefix is how editors reference declared inputs, e.g. "Input-minAge".
const inputPrefix = "Input-"

// Source is where a comparison or assignment value comes from: a literal, a
// request-context variable or a declared input. The set of variants is
// closed.
type Source interface {
	Kind() SourceKind
	source()
}

// CustomValue is a literal. The raw JSON is kept so the stored definition
// round-trips exactly.
type CustomValue struct {
	Literal json.RawMessage
}

// ContextValue names a request-context variable such as "user.id".
type ContextValue struct {
	Variable string
}

// InputValue references a declared input, with or without the Input- prefix.
type InputValue struct {
	Ref string
}

func (CustomValue) Kind() SourceKind  { return SourceCustom }
func (ContextValue) Kind() SourceKind { return SourceContext }
func (InputValue) Kind() SourceKind   { return SourceInput }

func (CustomValue) source()  {}
func (ContextValue) source() {}
func (InputValue) source()   {}

// Name is the declared input name the reference points to.
func (v InputValue) Name() string {
	return strings.TrimPrefix(v.Ref, inputPrefix)
}

// Operand is the JSON envelope {"type": ..., "value": ...} around a Source.
// A nil Source is the editor's unset placeholder.
type Operand struct {
	Source Source
}

type rawOperand struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type rawComparison struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
	Like  bool            `json:"like"`
}

func (o Operand) MarshalJSON() ([]byte, error) {
	kind, value, err := encodeSource(o.Source)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rawOperand{Type: kind, Value: value})
}

func (o *Operand) UnmarshalJSON(data []byte) error {
	var raw rawOperand
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	src, err := decodeSource(raw.Type, raw.Value)
	if err != nil {
		return err
	}
	o.Source = src
	return nil
}

// Comparison is the right-hand side of a leaf: a source plus the
// case-insensitive substring flag.
type Comparison struct {
	Source Source
	Like   bool
}

func (c Comparison) MarshalJSON() ([]byte, error) {
	kind, value, err := encodeSource(c.Source)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rawComparison{Type: kind, Value: value, Like: c.Like})
}

func (c *Comparison) UnmarshalJSON(data []byte) error {
	var raw rawComparison
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	src, err := decodeSource(raw.Type, raw.Value)
	if err != nil {
		return err
	}
	c.Source = src
	c.Like = raw.Like
	return nil
}

func encodeSource(src Source) (string, json.RawMessage, error) {
	switch s := src.(type) {
	case nil:
		return "", json.RawMessage(`null`), nil
	case CustomValue:
		if len(s.Literal) == 0 {
			return string(SourceCustom), json.RawMessage(`null`), nil
		}
		return string(SourceCustom), s.Literal, nil
	case ContextValue:
		b, err := json.Marshal(s.Variable)
		return string(SourceContext), b, err
	case InputValue:
		b, err := json.Marshal(s.Ref)
		return string(SourceInput), b, err
	}
	return "", nil, fmt.Errorf("unsupported source %T", src)
}

func decodeSource(kind string, value json.RawMessage) (Source, error) {
	switch SourceKind(kind) {
	case "":
		return nil, nil
	case SourceCustom:
		if len(value) == 0 {
			value = json.RawMessage(`null`)
		}
		return CustomValue{Literal: append(json.RawMessage(nil), value...)}, nil
	case SourceContext:
		var name string
		if err := json.Unmarshal(value, &name); err != nil {
			return nil, fmt.Errorf("context source value must be a string")
		}
		return ContextValue{Variable: name}, nil
	case SourceInput:
		var ref string
		if err := json.Unmarshal(value, &ref); err != nil {
			return nil, fmt.Errorf("input source value must be a string")
		}
		return InputValue{Ref: ref}, nil
	}
	return nil, fmt.Errorf("unknown source type %q", kind)
}
