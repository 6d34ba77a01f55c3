// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package parse

import (
	"strings"
)

// Statement is a single statement of a program. It is immutable once parsed.
type Statement struct {
	text   string
	params []string
}

// Text returns the statement without its separator or surrounding blanks and
// comments.
func (s Statement) Text() string {
	return s.text
}

// Params returns the distinct names of the $params referenced by the
// statement in order of first appearance.
func (s Statement) Params() []string {
	return append([]string(nil), s.params...)
}

// String returns a textual representation of the Statement meant for
// debugging purposes.
func (s Statement) String() string {
	return "Statement[" + s.text + "]"
}

// Join concatenates statements into a single program.
func Join(stmts []Statement) string {
	texts := make([]string, len(stmts))
	for i, s := range stmts {
		texts[i] = s.text
	}
	return strings.Join(texts, ";\n")
}
