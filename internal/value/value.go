// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package value defines the closed set of values that can be sent to the
// database as query parameters or read back from it.
package value

import (
	"math"
	"strconv"
)

// Kind identifies the variant of a Value.
type Kind int

const (
	NullKind Kind = iota
	BoolKind
	NumberKind
	StrandKind
	ArrayKind
	ObjectKind
	ThingKind
)

var kindNames = [...]string{
	NullKind:   "null",
	BoolKind:   "bool",
	NumberKind: "number",
	StrandKind: "string",
	ArrayKind:  "array",
	ObjectKind: "object",
	ThingKind:  "record id",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Value is one of Null, Bool, Number, Strand, Array, Object or Thing.
// String renders the value as a query language literal.
type Value interface {
	Kind() Kind
	String() string
	isValue()
}

// Null is the absent value.
type Null struct{}

func (Null) Kind() Kind     { return NullKind }
func (Null) String() string { return "NULL" }
func (Null) isValue()       {}

// Bool is a boolean value.
type Bool bool

func (Bool) Kind() Kind { return BoolKind }
func (b Bool) String() string {
	return strconv.FormatBool(bool(b))
}
func (Bool) isValue() {}

// Number is either an integer or a floating point number.
type Number struct {
	i       int64
	f       float64
	isFloat bool
}

// Int returns an integer Number.
func Int(i int64) Number {
	return Number{i: i}
}

// Float returns a floating point Number.
func Float(f float64) Number {
	return Number{f: f, isFloat: true}
}

func (Number) Kind() Kind { return NumberKind }
func (Number) isValue()   {}

// IsFloat reports whether n holds a floating point number.
func (n Number) IsFloat() bool {
	return n.isFloat
}

// Int64 returns n as an integer, truncating floats.
func (n Number) Int64() int64 {
	if n.isFloat {
		return int64(n.f)
	}
	return n.i
}

// Float64 returns n as a float.
func (n Number) Float64() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

// String renders integers as plain digits and floats with the "f" suffix
// when they would otherwise read as integers.
func (n Number) String() string {
	if !n.isFloat {
		return strconv.FormatInt(n.i, 10)
	}
	switch {
	case math.IsNaN(n.f):
		return "NaN"
	case math.IsInf(n.f, 1):
		return "Infinity"
	case math.IsInf(n.f, -1):
		return "-Infinity"
	}
	s := strconv.FormatFloat(n.f, 'g', -1, 64)
	for _, c := range s {
		if c == '.' || c == 'e' {
			return s
		}
	}
	return s + "f"
}

// Strand is a string value.
type Strand string

func (Strand) Kind() Kind { return StrandKind }
func (s Strand) String() string {
	return quoteStrand(string(s))
}
func (Strand) isValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) Kind() Kind { return ArrayKind }
func (a Array) String() string {
	return formatArray(a)
}
func (Array) isValue() {}

// Object maps field names to values.
type Object map[string]Value

func (Object) Kind() Kind { return ObjectKind }
func (o Object) String() string {
	return formatObject(o)
}
func (Object) isValue() {}

// Thing is a record identifier: a table name and a key unique within the
// table. The key is a Number, Strand, Array or Object.
type Thing struct {
	Table string
	ID    Value
}

func (Thing) Kind() Kind { return ThingKind }
func (t Thing) String() string {
	return formatThing(t)
}
func (Thing) isValue() {}

// Equal reports whether a and b hold the same value.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case Null:
		return true
	case Bool:
		return a == b.(Bool)
	case Number:
		b := b.(Number)
		if a.isFloat || b.isFloat {
			return a.Float64() == b.Float64()
		}
		return a.i == b.i
	case Strand:
		return a == b.(Strand)
	case Array:
		b := b.(Array)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	case Object:
		b := b.(Object)
		if len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case Thing:
		b := b.(Thing)
		return a.Table == b.Table && Equal(a.ID, b.ID)
	}
	return false
}
