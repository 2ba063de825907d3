// Package schema derives query types from the content-type hierarchy.
//
// A schema build is a pure function of a list of output type definitions and a
// content-type catalog: the Registry partitions the definitions by kind, the
// mapper binds every content type to an interface and an object type, and the
// Service exposes the result read-only to request handlers.
package schema

import (
	"fmt"
	"strings"
)

// Kind distinguishes abstract and concrete output types.
type Kind string

// Output type kinds.
const (
	KindInterface Kind = "interface"
	KindObject    Kind = "object"
)

// ObjectSuffix is appended to a content-type name to form its object type name.
const ObjectSuffix = "Impl"

// MediaResourceType is the built-in object type produced by media fields.
const MediaResourceType = "MediaResource"

// FieldKind selects how a field value is produced from content.
type FieldKind string

// Field kinds.
const (
	FieldProperty FieldKind = "property" // raw property value
	FieldLink     FieldKind = "link"     // property holds one or more content ids
	FieldURI      FieldKind = "uri"      // delivery URI of the content or linked content
	FieldMedia    FieldKind = "media"    // media resource model built from a blob property
)

// Scalar type names understood by every schema.
var scalars = map[string]bool{
	"String":  true,
	"Int":     true,
	"Float":   true,
	"Boolean": true,
	"ID":      true,
}

// IsScalar reports whether name is a built-in scalar type.
func IsScalar(name string) bool {
	return scalars[name]
}

// TypeDef is an output type definition (immutable after registry construction).
type TypeDef struct {
	Name        string
	Kind        Kind
	Description string
	Interfaces  []string // objects only
	Fields      []FieldDef
}

// IsInterface reports whether the definition is abstract.
func (t TypeDef) IsInterface() bool {
	return t.Kind == KindInterface
}

// FieldDef describes one field of an output type.
type FieldDef struct {
	Name        string
	Type        string // type reference, e.g. "String", "[Article]", "ID!"
	Property    string // content property, defaults to Name
	Kind        FieldKind
	InstanceOf  string // link filter by satisfied type name
	Description string
}

// SourceProperty returns the content property the field reads.
func (f FieldDef) SourceProperty() string {
	if f.Property != "" {
		return f.Property
	}
	return f.Name
}

// TypeRef is a parsed field type reference. One list level is supported.
type TypeRef struct {
	Name        string
	List        bool
	NonNull     bool // outer non-null
	ElemNonNull bool // list element non-null
}

// ParseTypeRef parses references such as "String", "Article!", "[Article]" and "[Article!]!".
func ParseTypeRef(s string) (TypeRef, error) {
	var ref TypeRef
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "!") {
		ref.NonNull = true
		s = strings.TrimSuffix(s, "!")
	}
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return TypeRef{}, fmt.Errorf("unbalanced list type %q", s)
		}
		ref.List = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		if strings.HasSuffix(s, "!") {
			ref.ElemNonNull = true
			s = strings.TrimSuffix(s, "!")
		}
	}
	if s == "" || strings.ContainsAny(s, "[]! ") {
		return TypeRef{}, fmt.Errorf("invalid type reference")
	}
	ref.Name = s
	return ref, nil
}

// String renders the reference back in GraphQL notation.
func (r TypeRef) String() string {
	s := r.Name
	if r.List {
		if r.ElemNonNull {
			s += "!"
		}
		s = "[" + s + "]"
	}
	if r.NonNull {
		s += "!"
	}
	return s
}
