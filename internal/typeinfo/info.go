// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"reflect"
)

// Field represents a single tagged field from a struct type.
type Field struct {
	Type reflect.Type

	// Name is the name of the struct field.
	Name string

	// Tag is the name given in the `db` tag.
	Tag string

	// Index of this field in the structure.
	Index int

	// OmitEmpty is true when "omitempty" is
	// a property of the field's "db" tag.
	OmitEmpty bool
}

// Info represents reflected information about a struct type.
type Info struct {
	Type reflect.Type

	// Fields holds the tagged fields in declaration order.
	Fields []Field

	// Relate tag names to fields.
	TagToField map[string]Field
}

// Omit reports whether the field should be left out for the struct value s.
func (f Field) Omit(s reflect.Value) bool {
	return f.OmitEmpty && s.Field(f.Index).IsZero()
}
