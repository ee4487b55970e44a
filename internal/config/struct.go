package config

import (
	"reflect"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Reserved attribute names that are interpreted by the record model itself
// rather than passed through as fields.
const (
	FieldExtends      = "extends"
	FieldMerges       = "merges"
	FieldAbstract     = "abstract"
	FieldDependencies = "dependencies"
	FieldName         = "name"
)

// Struct is a single declared record. Top-level records carry a Name and
// are addressable; nested records are anonymous and live inside a parent's
// Fields as StructVal values.
type Struct struct {
	Kind   string
	Name   string
	Fields map[string]cty.Value

	Extends      *Ref
	Merges       []Ref
	Abstract     bool
	Dependencies []string

	Range hcl.Range
}

// Ref points at the record a Struct inherits from: either an address
// string or an inline anonymous Struct.
type Ref struct {
	Address string
	Inline  *Struct
}

// IsInline reports whether the reference holds an anonymous record.
func (r Ref) IsInline() bool {
	return r.Inline != nil
}

func (r Ref) String() string {
	if r.Inline != nil {
		return "<inline " + r.Inline.Kind + ">"
	}
	return r.Address
}

// Anonymous reports whether the record has no name.
func (s *Struct) Anonymous() bool {
	return s.Name == ""
}

// HasInheritance reports whether the record extends or merges anything.
func (s *Struct) HasInheritance() bool {
	return s.Extends != nil || len(s.Merges) > 0
}

// Validator is implemented by record objects that check their own fields
// once they are fully hydrated. Abstract records are never validated.
type Validator interface {
	Validate() error
}

// StructType is the capsule type nested anonymous records are stored as
// inside a parent's fields before hydration.
var StructType = cty.Capsule("struct", reflect.TypeOf(Struct{}))

// StructVal wraps a nested record as a field value.
func StructVal(s *Struct) cty.Value {
	return cty.CapsuleVal(StructType, s)
}

// AsStruct returns the record held by v, if v is a StructVal.
func AsStruct(v cty.Value) (*Struct, bool) {
	if v.IsNull() || !v.IsKnown() || !v.Type().Equals(StructType) {
		return nil, false
	}
	s, ok := v.EncapsulatedValue().(*Struct)
	return s, ok
}
