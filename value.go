// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package surrealq

import (
	"github.com/canonical/surrealq/internal/parse"
	"github.com/canonical/surrealq/internal/value"
)

// Value is a value that can be bound to a query parameter: one of Null,
// Bool, Number, Strand, Array, Object or Thing.
type Value = value.Value

type (
	Null   = value.Null
	Bool   = value.Bool
	Number = value.Number
	Strand = value.Strand
	Array  = value.Array
	Object = value.Object
	// Thing is a record identifier made of a table name and a key.
	Thing = value.Thing
)

// Int returns an integer Number.
func Int(i int64) Number {
	return value.Int(i)
}

// Float returns a floating point Number.
func Float(f float64) Number {
	return value.Float(f)
}

// ValueOf converts a Go value into a Value. Strings always become Strand
// values; use [NamedString] to bind a string that may be a record id.
func ValueOf(x any) (Value, error) {
	return value.From(x)
}

// ParseThing parses a record identifier of the form table:key.
func ParseThing(s string) (Thing, error) {
	return parse.Thing(s)
}

// Decode stores v in the Go value pointed to by dst. Struct fields are
// matched by their `db` tags.
func Decode(v Value, dst any) error {
	return value.Decode(v, dst)
}

// Equal reports whether a and b hold the same value. Integer and floating
// point numbers are equal when they hold the same number.
func Equal(a, b Value) bool {
	return value.Equal(a, b)
}
