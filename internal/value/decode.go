// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package value

import (
	"encoding"
	"fmt"
	"reflect"

	"github.com/canonical/surrealq/internal/typeinfo"
)

var textUnmarshalerInterface = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// Decode stores v in the value pointed to by dst. Objects decode into
// structs by `db` tag and into string keyed maps, arrays into slices and
// arrays. A Null leaves pointers, maps and slices nil and other targets at
// their zero value.
func Decode(v Value, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("need non-nil pointer, got %T", dst)
	}
	return decode(v, rv.Elem())
}

func decode(v Value, dst reflect.Value) error {
	if v == nil {
		v = Null{}
	}
	t := dst.Type()

	if t.Kind() == reflect.Interface {
		if t == valueInterface {
			dst.Set(reflect.ValueOf(&v).Elem())
			return nil
		}
		if t.NumMethod() == 0 {
			if g := ToGo(v); g != nil {
				dst.Set(reflect.ValueOf(g))
			} else {
				dst.Set(reflect.Zero(t))
			}
			return nil
		}
		return fmt.Errorf("cannot decode %s into %s", v.Kind(), t)
	}
	if _, ok := v.(Null); ok {
		dst.Set(reflect.Zero(t))
		return nil
	}
	if t.Kind() == reflect.Pointer {
		elem := reflect.New(t.Elem())
		if err := decode(v, elem.Elem()); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}
	// A concrete variant type receives the value as is.
	if rv := reflect.ValueOf(v); rv.Type() == t {
		dst.Set(rv)
		return nil
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerInterface) {
		var text string
		switch v := v.(type) {
		case Strand:
			text = string(v)
		case Thing:
			text = v.String()
		default:
			return fmt.Errorf("cannot decode %s into %s", v.Kind(), t)
		}
		return dst.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text))
	}

	mismatch := func() error {
		return fmt.Errorf("cannot decode %s into %s", v.Kind(), t)
	}
	switch t.Kind() {
	case reflect.Bool:
		b, ok := v.(Bool)
		if !ok {
			return mismatch()
		}
		dst.SetBool(bool(b))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := v.(Number)
		if !ok {
			return mismatch()
		}
		i := n.Int64()
		if dst.OverflowInt(i) {
			return fmt.Errorf("number %s overflows %s", n, t)
		}
		dst.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, ok := v.(Number)
		if !ok {
			return mismatch()
		}
		i := n.Int64()
		if i < 0 || dst.OverflowUint(uint64(i)) {
			return fmt.Errorf("number %s overflows %s", n, t)
		}
		dst.SetUint(uint64(i))
	case reflect.Float32, reflect.Float64:
		n, ok := v.(Number)
		if !ok {
			return mismatch()
		}
		dst.SetFloat(n.Float64())
	case reflect.String:
		switch v := v.(type) {
		case Strand:
			dst.SetString(string(v))
		case Thing:
			dst.SetString(v.String())
		default:
			return mismatch()
		}
	case reflect.Slice:
		a, ok := v.(Array)
		if !ok {
			return mismatch()
		}
		s := reflect.MakeSlice(t, len(a), len(a))
		for i, e := range a {
			if err := decode(e, s.Index(i)); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		dst.Set(s)
	case reflect.Array:
		a, ok := v.(Array)
		if !ok {
			return mismatch()
		}
		if len(a) != t.Len() {
			return fmt.Errorf("cannot decode array of length %d into %s", len(a), t)
		}
		for i, e := range a {
			if err := decode(e, dst.Index(i)); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
	case reflect.Map:
		o, ok := v.(Object)
		if !ok {
			return mismatch()
		}
		if t.Key().Kind() != reflect.String {
			return fmt.Errorf("cannot decode object into map with %s keys", t.Key().Kind())
		}
		m := reflect.MakeMapWithSize(t, len(o))
		for k, e := range o {
			ev := reflect.New(t.Elem()).Elem()
			if err := decode(e, ev); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			m.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), ev)
		}
		dst.Set(m)
	case reflect.Struct:
		o, ok := v.(Object)
		if !ok {
			return mismatch()
		}
		info, err := typeinfo.ForType(t)
		if err != nil {
			return err
		}
		for _, f := range info.Fields {
			e, ok := o[f.Tag]
			if !ok {
				continue
			}
			if err := decode(e, dst.Field(f.Index)); err != nil {
				return fmt.Errorf("field %q: %w", f.Tag, err)
			}
		}
	default:
		return mismatch()
	}
	return nil
}
