// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package value

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/canonical/surrealq/internal/typeinfo"
)

// ErrUnsupportedShape is returned when a Go value has no representation as a
// Value, or when a value cannot be decomposed into named parameters.
var ErrUnsupportedShape = errors.New("unsupported value shape")

var valueInterface = reflect.TypeOf((*Value)(nil)).Elem()
var textMarshalerInterface = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
var jsonNumberType = reflect.TypeOf(json.Number(""))

// From converts a Go value into a Value. The supported kinds are nil, Value,
// bool, integers, floats, strings, json.Number, encoding.TextMarshaler
// implementations (time.Time among them), byte slices, slices, arrays,
// string keyed maps, structs with `db` tags and pointers to any of these.
// Strings are always converted to Strand, they are never read as record ids.
func From(x any) (Value, error) {
	if x == nil {
		return Null{}, nil
	}
	return fromReflect(reflect.ValueOf(x))
}

func fromReflect(v reflect.Value) (Value, error) {
	if !v.IsValid() {
		return Null{}, nil
	}
	t := v.Type()
	isRef := v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface
	if isRef && v.IsNil() {
		return Null{}, nil
	}
	if t.Implements(valueInterface) && v.Kind() != reflect.Pointer {
		return v.Interface().(Value), nil
	}
	if t == jsonNumberType {
		return fromJSONNumber(json.Number(v.String()))
	}
	if t.Implements(textMarshalerInterface) {
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, fmt.Errorf("cannot convert %s: %s", t, err)
		}
		return Strand(text), nil
	}
	if isRef {
		return fromReflect(v.Elem())
	}

	switch v.Kind() {
	case reflect.Bool:
		return Bool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return Float(float64(u)), nil
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(v.Float()), nil
	case reflect.String:
		return Strand(v.String()), nil
	case reflect.Slice:
		if v.IsNil() {
			return Null{}, nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			return Strand(v.Bytes()), nil
		}
		return fromList(v)
	case reflect.Array:
		return fromList(v)
	case reflect.Map:
		if v.IsNil() {
			return Null{}, nil
		}
		o := Object{}
		err := EachField(v, func(name string, field reflect.Value) error {
			fv, err := fromReflect(field)
			if err != nil {
				return fmt.Errorf("key %q: %w", name, err)
			}
			o[name] = fv
			return nil
		})
		if err != nil {
			return nil, err
		}
		return o, nil
	case reflect.Struct:
		o := Object{}
		err := EachField(v, func(name string, field reflect.Value) error {
			fv, err := fromReflect(field)
			if err != nil {
				return fmt.Errorf("field %q: %w", name, err)
			}
			o[name] = fv
			return nil
		})
		if err != nil {
			return nil, err
		}
		return o, nil
	}
	return nil, fmt.Errorf("cannot convert %s: %w", t, ErrUnsupportedShape)
}

func fromList(v reflect.Value) (Value, error) {
	a := make(Array, v.Len())
	for i := range a {
		e, err := fromReflect(v.Index(i))
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		a[i] = e
	}
	return a, nil
}

func fromJSONNumber(n json.Number) (Value, error) {
	if i, err := n.Int64(); err == nil {
		return Int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("cannot convert number %q: %s", n, err)
	}
	return Float(f), nil
}

// EachField calls fn for every named entry of an object shaped value: the
// keys of a string keyed map in sorted order or the `db` tagged fields of a
// struct in declaration order. Struct fields with "omitempty" and a zero
// value are skipped. Other shapes fail with ErrUnsupportedShape.
func EachField(v reflect.Value, fn func(name string, field reflect.Value) error) error {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return fmt.Errorf("need object, got nil: %w", ErrUnsupportedShape)
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("need string keys, got map with %s keys: %w", v.Type().Key().Kind(), ErrUnsupportedShape)
		}
		for _, k := range sortedKeys(v) {
			if err := fn(k.String(), v.MapIndex(k)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Struct:
		info, err := typeinfo.ForType(v.Type())
		if err != nil {
			return err
		}
		for _, f := range info.Fields {
			if f.Omit(v) {
				continue
			}
			if err := fn(f.Tag, v.Field(f.Index)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Invalid:
		return fmt.Errorf("need object, got nil: %w", ErrUnsupportedShape)
	}
	return fmt.Errorf("need object, got %s: %w", v.Kind(), ErrUnsupportedShape)
}

// ToGo converts a Value into plain Go values: nil, bool, int64, float64,
// string, []any and map[string]any. Record ids become their literal text.
func ToGo(v Value) any {
	switch v := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(v)
	case Number:
		if v.isFloat {
			if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
				return nil
			}
			return v.f
		}
		return v.i
	case Strand:
		return string(v)
	case Array:
		a := make([]any, len(v))
		for i, e := range v {
			a[i] = ToGo(e)
		}
		return a
	case Object:
		o := make(map[string]any, len(v))
		for k, e := range v {
			o[k] = ToGo(e)
		}
		return o
	case Thing:
		return v.String()
	}
	return nil
}

// MarshalJSON encodes v through ToGo.
func MarshalJSON(v Value) ([]byte, error) {
	return json.Marshal(ToGo(v))
}

func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}
