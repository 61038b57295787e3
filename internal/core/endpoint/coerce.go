package endpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/conduit/conduit/internal/core/schema"
	"github.com/google/uuid"
)

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// coerceLiteral checks a Custom literal against the expected operand type
// and returns its normalized value. Numeric strings, "true"/"false",
// RFC 3339 or epoch-millisecond dates are accepted; enum fields only take
// their declared values.
func coerceLiteral(raw json.RawMessage, want schema.FieldInfo) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, errors.New("value is required")
	}

	if want.Array {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, errors.New("value must be a list")
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			v, err := coerceLiteral(item, want.Element())
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, v)
		}
		return out, nil
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	out, err := coerceScalar(v, want.Type)
	if err != nil {
		return nil, err
	}
	if want.Enum && !inEnum(out, want.EnumValues) {
		return nil, fmt.Errorf("%v is not one of the allowed values", out)
	}
	return out, nil
}

func coerceScalar(v any, t schema.FieldType) (any, error) {
	switch t {
	case schema.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case schema.TypeNumber:
		switch n := v.(type) {
		case json.Number:
			return n.Float64()
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
				return f, nil
			}
		}
	case schema.TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if b == "true" || b == "false" {
				return b == "true", nil
			}
		}
	case schema.TypeDate:
		switch d := v.(type) {
		case string:
			if ts, err := time.Parse(time.RFC3339, d); err == nil {
				return ts.UTC(), nil
			}
			if ts, err := time.Parse(time.DateOnly, d); err == nil {
				return ts, nil
			}
		case json.Number:
			if ms, err := d.Int64(); err == nil {
				return time.UnixMilli(ms).UTC(), nil
			}
		}
	case schema.TypeObjectID, schema.TypeRelation:
		if s, ok := v.(string); ok {
			if objectIDPattern.MatchString(s) {
				return s, nil
			}
			if _, err := uuid.Parse(s); err == nil {
				return s, nil
			}
			return nil, fmt.Errorf("%q is not a valid identifier", s)
		}
	case schema.TypeGroup:
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("value is not a valid %s", t)
}

func inEnum(v any, values []any) bool {
	for _, allowed := range values {
		switch a := allowed.(type) {
		case string:
			if s, ok := v.(string); ok && s == a {
				return true
			}
		default:
			if f, ok := v.(float64); ok && toFloat(a) == f {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

// inputFits reports whether a declared input can feed an operand of the
// given type. ObjectId inputs also feed relations.
func inputFits(in Input, want schema.FieldInfo) bool {
	if in.Array != want.Array {
		return false
	}
	switch want.Type {
	case schema.TypeString:
		return in.Type == InputString
	case schema.TypeNumber:
		return in.Type == InputNumber
	case schema.TypeBoolean:
		return in.Type == InputBoolean
	case schema.TypeDate:
		return in.Type == InputDate
	case schema.TypeObjectID, schema.TypeRelation:
		return in.Type == InputObjectID
	}
	return false
}
