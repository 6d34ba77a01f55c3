// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package surrealq

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/canonical/surrealq/internal/parse"
	"github.com/canonical/surrealq/internal/value"
)

// Binding is an input that resolves into one or more entries of a
// ParameterMap. The set of bindings is closed, they are built with
// NamedValue, NamedString, NamedOptionalString, Pair, Fields and Entries.
// A ParameterMap is itself a Binding that merges all of its entries.
type Binding interface {
	isBinding()
}

// Mergeable is a Binding accepted by [Query.BindMerged]. Mergeable bindings
// convert their values without reading strings as record ids.
type Mergeable interface {
	Binding
	isMergeable()
}

type namedValue struct {
	name  string
	value Value
}

type namedString struct {
	name string
	s    string
}

type namedOptionalString struct {
	name string
	s    *string
}

type pair struct {
	name  string
	value any
}

type fields struct {
	value any
}

type entries struct {
	value any
}

func (namedValue) isBinding()          {}
func (namedString) isBinding()         {}
func (namedOptionalString) isBinding() {}
func (pair) isBinding()                {}
func (fields) isBinding()              {}
func (entries) isBinding()             {}
func (ParameterMap) isBinding()        {}

func (pair) isMergeable()         {}
func (entries) isMergeable()      {}
func (ParameterMap) isMergeable() {}

// NamedValue binds v to name as it is.
func NamedValue(name string, v Value) Binding {
	return namedValue{name: name, value: v}
}

// NamedString binds s to name. If s is a record id such as "person:tobie"
// the parsed Thing is bound, otherwise the string itself.
func NamedString(name string, s string) Binding {
	return namedString{name: name, s: s}
}

// NamedOptionalString binds *s to name following the rules of NamedString.
// A nil s binds nothing.
func NamedOptionalString(name string, s *string) Binding {
	return namedOptionalString{name: name, s: s}
}

// Pair binds the Go value v to name, converting it with [ValueOf].
func Pair(name string, v any) Mergeable {
	return pair{name: name, value: v}
}

// Fields decomposes an object shaped value into one binding per field. v
// may be a struct, whose `db` tagged fields are used, a map with string
// keys or an Object. String field values follow the rules of NamedString,
// other values are converted with [ValueOf]. Any other shape fails with
// ErrUnsupportedShape.
func Fields(v any) Binding {
	return fields{value: v}
}

// Entries decomposes an object shaped value like Fields, but converts
// every field with [ValueOf] so strings are never read as record ids.
func Entries(v any) Mergeable {
	return entries{value: v}
}

// Resolve adds the entries produced by b to params. Existing entries with
// the same names are replaced. On error params is left unchanged.
func Resolve(b Binding, params ParameterMap) error {
	switch b := b.(type) {
	case namedValue:
		if b.value == nil {
			params[b.name] = Null{}
		} else {
			params[b.name] = b.value
		}
	case namedString:
		params[b.name] = stringValue(b.s)
	case namedOptionalString:
		if b.s != nil {
			params[b.name] = stringValue(*b.s)
		}
	case pair:
		v, err := value.From(b.value)
		if err != nil {
			return fmt.Errorf("cannot bind %q: %w", b.name, err)
		}
		params[b.name] = v
	case ParameterMap:
		params.Merge(b)
	case fields:
		return resolveFields(b.value, params, true)
	case entries:
		return resolveFields(b.value, params, false)
	case nil:
		return fmt.Errorf("cannot bind nil binding")
	default:
		return fmt.Errorf("internal error: unknown binding type %T", b)
	}
	return nil
}

// stringValue returns the record id held in s or, if s is not a record id,
// s itself.
func stringValue(s string) Value {
	if t, err := parse.Thing(s); err == nil {
		return t
	}
	return Strand(s)
}

var jsonNumberType = reflect.TypeOf(json.Number(""))

func resolveFields(v any, params ParameterMap, thingStrings bool) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot bind fields: %w", err)
		}
	}()

	if vv, ok := v.(Value); ok {
		if _, ok := vv.(Object); !ok {
			return fmt.Errorf("need object, got %s: %w", vv.Kind(), ErrUnsupportedShape)
		}
	}

	// Collect the entries first so a failure binds nothing.
	resolved := ParameterMap{}
	err = value.EachField(reflect.ValueOf(v), func(name string, field reflect.Value) error {
		if thingStrings {
			if s, ok := stringField(field); ok {
				resolved[name] = stringValue(s)
				return nil
			}
		}
		fv, err := value.From(field.Interface())
		if err != nil {
			return fmt.Errorf("%q: %w", name, err)
		}
		resolved[name] = fv
		return nil
	})
	if err != nil {
		return err
	}
	params.Merge(resolved)
	return nil
}

// stringField returns the string held by v, looking through pointers and
// interfaces.
func stringField(v reflect.Value) (string, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "", false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.String || v.Type() == jsonNumberType {
		return "", false
	}
	return v.String(), true
}
