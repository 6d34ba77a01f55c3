// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
)

var cacheMutex sync.RWMutex
var cache = make(map[reflect.Type]*Info)

// GetTypeInfo returns the Info of the type of value, generating and caching
// it as required.
func GetTypeInfo(value any) (*Info, error) {
	if value == (any)(nil) {
		return &Info{}, fmt.Errorf("cannot reflect nil value")
	}
	return ForType(reflect.TypeOf(value))
}

// ForType returns the Info of a struct type. Pointer types are dereferenced.
func ForType(t reflect.Type) (*Info, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	cacheMutex.RLock()
	info, found := cache[t]
	cacheMutex.RUnlock()
	if found {
		return info, nil
	}

	info, err := generate(t)
	if err != nil {
		return &Info{}, err
	}

	cacheMutex.Lock()
	cache[t] = info
	cacheMutex.Unlock()

	return info, nil
}

// generate produces and returns reflection information for the struct type.
func generate(typ reflect.Type) (*Info, error) {
	// Reflection information is only generated for structs.
	if typ.Kind() != reflect.Struct {
		return &Info{}, fmt.Errorf("can only reflect struct type")
	}

	info := Info{
		TagToField: make(map[string]Field),
		Type:       typ,
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		// Fields without a "db" tag are not parameters.
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" || !field.IsExported() {
			continue
		}
		tag, omitEmpty, err := parseTag(tag)
		if err != nil {
			return &Info{}, fmt.Errorf("field %q of struct %q: %s", field.Name, typ.Name(), err)
		}
		if _, ok := info.TagToField[tag]; ok {
			return &Info{}, fmt.Errorf("tag %q appears more than once in struct %q", tag, typ.Name())
		}
		f := Field{
			Name:      field.Name,
			Tag:       tag,
			Index:     i,
			OmitEmpty: omitEmpty,
			Type:      field.Type,
		}
		info.Fields = append(info.Fields, f)
		info.TagToField[tag] = f
	}

	return &info, nil
}

// This expression should be aligned with the bytes the statement parser
// accepts in a $param name.
var validParamNameRx = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z_0-9]*$`)

// parseTag parses the input tag string and returns its
// name and whether it contains the "omitempty" option.
func parseTag(tag string) (string, bool, error) {
	options := strings.Split(tag, ",")

	var omitEmpty bool
	// Refuse to parse if there are more than 2 items.
	if len(options) > 2 {
		return "", false, fmt.Errorf("too many options in 'db' tag")
	}
	if len(options) == 2 {
		if strings.ToLower(options[1]) != "omitempty" {
			return "", false, fmt.Errorf("unexpected tag value %q", options[1])
		}
		omitEmpty = true
	}

	name := options[0]
	if len(name) == 0 {
		return "", false, fmt.Errorf("empty db tag")
	}

	if !validParamNameRx.MatchString(name) {
		return "", false, fmt.Errorf("invalid parameter name in 'db' tag")
	}

	return name, omitEmpty, nil
}
