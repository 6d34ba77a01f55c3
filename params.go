// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package surrealq

import (
	"sort"
)

// ParameterMap maps parameter names to the values bound to them. Later
// bindings for a name replace earlier ones.
type ParameterMap map[string]Value

// Clone returns a copy of the map.
func (m ParameterMap) Clone() ParameterMap {
	c := make(ParameterMap, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Merge copies every entry of other into m, replacing existing entries with
// the same name.
func (m ParameterMap) Merge(other ParameterMap) {
	for k, v := range other {
		m[k] = v
	}
}

// Names returns the parameter names in sorted order.
func (m ParameterMap) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
