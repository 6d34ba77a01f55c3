// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package value

import (
	"sort"
	"strings"
)

// IsIdentByte reports whether c may appear in an unescaped identifier.
func IsIdentByte(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}

// IsIdent reports whether s can be written without escaping.
func IsIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !IsIdentByte(c) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// EscapeIdent returns s unchanged when it is a plain identifier, otherwise
// wrapped in angle brackets. Purely numeric names are escaped so they do not
// read as numbers.
func EscapeIdent(s string) string {
	if IsIdent(s) && !isDigits(s) {
		return s
	}
	return "⟨" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "⟩", `\⟩`) + "⟩"
}

func quoteStrand(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, c := range s {
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func formatArray(a Array) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range a {
		if i != 0 {
			b.WriteString(", ")
		}
		b.WriteString(literal(v))
	}
	b.WriteByte(']')
	return b.String()
}

func formatObject(o Object) string {
	if len(o) == 0 {
		return "{}"
	}
	// Sort for consistent output.
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{ ")
	for i, k := range keys {
		if i != 0 {
			b.WriteString(", ")
		}
		if IsIdent(k) {
			b.WriteString(k)
		} else {
			b.WriteString(quoteStrand(k))
		}
		b.WriteString(": ")
		b.WriteString(literal(o[k]))
	}
	b.WriteString(" }")
	return b.String()
}

func formatThing(t Thing) string {
	return EscapeIdent(t.Table) + ":" + formatID(t.ID)
}

func formatID(id Value) string {
	switch id := id.(type) {
	case Strand:
		return EscapeIdent(string(id))
	case nil:
		return "⟨⟩"
	default:
		return id.String()
	}
}

func literal(v Value) string {
	if v == nil {
		return Null{}.String()
	}
	return v.String()
}
