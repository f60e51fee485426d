// Package convert maps application entities to and from stored JSON documents.
package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// ErrMapping is wrapped by every converter failure
var ErrMapping = errors.New("mapping failed")

// IDTag is the struct tag that marks the identifier field: `docbucket:"id"`
const IDTag = "docbucket"

// Metadata travels with a document but is not part of its body
type Metadata struct {
	Expiry time.Duration // Zero means the document never expires
}

// Document is the stored form of an entity
type Document struct {
	ID       string
	Body     []byte
	Metadata Metadata
}

// Converter maps entities to documents and back. Write and GetID must agree
// on the id of an entity, and Read of a written body must reproduce it.
type Converter interface {
	Write(entity any) (*Document, error)
	Read(body []byte, target any) error
	GetID(entity any) (string, error)
}

// Identifiable entities supply their own document id
type Identifiable interface {
	DocumentID() string
}

// Expirable entities are written with an expiry
type Expirable interface {
	DocumentExpiry() time.Duration
}

// JSONConverter is the default Converter. Bodies are encoding/json output.
//
// The id is taken from, in order: the Identifiable interface, a string field
// tagged `docbucket:"id"`, an exported string field named ID or Id, or the
// "id" key of a map[string]any.
type JSONConverter struct{}

// NewJSONConverter returns the default converter
func NewJSONConverter() *JSONConverter {
	return &JSONConverter{}
}

func (c *JSONConverter) Write(entity any) (*Document, error) {
	id, err := c.GetID(entity)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(entity)
	if err != nil {
		return nil, mappingErr("encode %q: %v", id, err)
	}

	doc := &Document{ID: id, Body: body}
	if e, ok := entity.(Expirable); ok {
		doc.Metadata.Expiry = e.DocumentExpiry()
	}
	return doc, nil
}

// Read decodes body into target, which must be a non-nil pointer
func (c *JSONConverter) Read(body []byte, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return mappingErr("decode target must be a non-nil pointer, got %T", target)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return mappingErr("decode into %T: %v", target, err)
	}
	return nil
}

func (c *JSONConverter) GetID(entity any) (string, error) {
	if entity == nil {
		return "", mappingErr("entity is nil")
	}
	rv := reflect.ValueOf(entity)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "", mappingErr("entity %T is nil", entity)
	}
	if ident, ok := entity.(Identifiable); ok {
		if id := ident.DocumentID(); id != "" {
			return id, nil
		}
		return "", mappingErr("%T has an empty document id", entity)
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", mappingErr("entity %T is nil", entity)
		}
		rv = rv.Elem()
	}

	var id string
	switch rv.Kind() {
	case reflect.Struct:
		field, ok := idField(rv.Type())
		if !ok {
			return "", mappingErr("%T has no id field", entity)
		}
		v, err := rv.FieldByIndexErr(field.Index)
		if err != nil {
			return "", mappingErr("id field %s of %T: %v", field.Name, entity, err)
		}
		if v.Kind() != reflect.String {
			return "", mappingErr("id field %s of %T is not a string", field.Name, entity)
		}
		id = v.String()
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return "", mappingErr("%T is not keyed by string", entity)
		}
		v := rv.MapIndex(reflect.ValueOf("id").Convert(rv.Type().Key()))
		if !v.IsValid() {
			return "", mappingErr("%T has no \"id\" key", entity)
		}
		s, ok := v.Interface().(string)
		if !ok {
			return "", mappingErr("\"id\" of %T is not a string", entity)
		}
		id = s
	default:
		return "", mappingErr("cannot identify a %T", entity)
	}

	if id == "" {
		return "", mappingErr("%T has an empty id", entity)
	}
	return id, nil
}

// idField finds the identifier field of a struct type
func idField(t reflect.Type) (reflect.StructField, bool) {
	var byName reflect.StructField
	var named bool
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() {
			continue
		}
		if tag, ok := f.Tag.Lookup(IDTag); ok && strings.Split(tag, ",")[0] == "id" {
			return f, true
		}
		if !named && (f.Name == "ID" || f.Name == "Id") && len(f.Index) == 1 {
			byName, named = f, true
		}
	}
	return byName, named
}

func mappingErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMapping, fmt.Sprintf(format, args...))
}
