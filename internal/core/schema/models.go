package schema

import (
	"time"
)

type FieldType string

const (
	TypeString   FieldType = "String"
	TypeNumber   FieldType = "Number"
	TypeBoolean  FieldType = "Boolean"
	TypeDate     FieldType = "Date"
	TypeObjectID FieldType = "ObjectId"
	TypeRelation FieldType = "Relation"
	TypeGroup    FieldType = "Group"
)

func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeObjectID, TypeRelation, TypeGroup:
		return true
	}
	return false
}

// Reserved field names. Every schema carries them implicitly and no editor
// may declare or assign them.
const (
	FieldID        = "_id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

var reservedFields = map[string]FieldType{
	FieldID:        TypeObjectID,
	FieldCreatedAt: TypeDate,
	FieldUpdatedAt: TypeDate,
}

func IsReserved(name string) bool {
	_, ok := reservedFields[name]
	return ok
}

type Field struct {
	Type        FieldType         `json:"type" yaml:"type"`
	Array       bool              `json:"array,omitempty" yaml:"array,omitempty"`
	Enum        bool              `json:"enum,omitempty" yaml:"enum,omitempty"`
	EnumValues  []any             `json:"enumValues,omitempty" yaml:"enumValues,omitempty"`
	Model       string            `json:"model,omitempty" yaml:"model,omitempty"`
	Fields      map[string]*Field `json:"fields,omitempty" yaml:"fields,omitempty"`
	Required    bool              `json:"required,omitempty" yaml:"required,omitempty"`
	Unique      bool              `json:"unique,omitempty" yaml:"unique,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
}

type Schema struct {
	ID        string            `json:"_id"`
	Name      string            `json:"name"`
	Fields    map[string]*Field `json:"fields"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

type CreateSchemaRequest struct {
	Name   string            `json:"name" yaml:"name" binding:"required"`
	Fields map[string]*Field `json:"fields" yaml:"fields" binding:"required"`
}

type UpdateSchemaRequest struct {
	Name   string            `json:"name"`
	Fields map[string]*Field `json:"fields"`
}

type ListSchemasResponse struct {
	Schemas []*Schema `json:"schemas"`
	Total   int       `json:"total"`
}

type FieldsResponse struct {
	SchemaID string               `json:"schemaId"`
	Fields   map[string]FieldInfo `json:"fields"`
}
