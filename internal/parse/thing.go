// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/canonical/surrealq/internal/value"
)

// Thing parses a record identifier of the form table:key. The table is a
// plain or escaped identifier. The key is an integer, a plain or escaped
// identifier, an array literal or an object literal. The whole input must be
// consumed.
func Thing(s string) (value.Thing, error) {
	p := NewParser()
	p.init(s)
	t, err := p.parseThing()
	if err != nil {
		return value.Thing{}, fmt.Errorf("cannot parse record id %q: %s", s, err)
	}
	if p.pos != len(p.input) {
		return value.Thing{}, fmt.Errorf("cannot parse record id %q: unexpected %q at column %d", s, p.char, p.colNum())
	}
	return t, nil
}

func (p *Parser) parseThing() (value.Thing, error) {
	table, ok, err := p.parseIdent()
	if err != nil {
		return value.Thing{}, err
	}
	if !ok {
		return value.Thing{}, fmt.Errorf("missing table name")
	}
	return p.parseThingID(table)
}

// parseThingID parses the ":key" part of a record id.
func (p *Parser) parseThingID(table string) (value.Thing, error) {
	if !p.skipChar(':') {
		return value.Thing{}, fmt.Errorf("missing \":\" after table name")
	}
	id, err := p.parseID()
	if err != nil {
		return value.Thing{}, err
	}
	return value.Thing{Table: table, ID: id}, nil
}

// parseIdent parses a plain identifier or one escaped with angle brackets
// or backticks. An escaped identifier is never empty.
func (p *Parser) parseIdent() (string, bool, error) {
	switch p.char {
	case '⟨':
		s, err := p.parseEscaped('⟨', '⟩')
		return s, err == nil && s != "", err
	case '`':
		s, err := p.parseEscaped('`', '`')
		return s, err == nil && s != "", err
	}
	name := p.parseName()
	return name, name != "", nil
}

func (p *Parser) parseID() (value.Value, error) {
	switch p.char {
	case '[':
		return p.parseArray()
	case '{':
		return p.parseObject()
	case '-':
		cp := p.save()
		p.advanceChar()
		digits := p.parseName()
		if i, err := strconv.ParseInt("-"+digits, 10, 64); err == nil && isDigits(digits) {
			return value.Int(i), nil
		}
		cp.restore()
		return nil, fmt.Errorf("invalid record key")
	}
	escaped := p.char == '⟨' || p.char == '`'
	name, ok, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("missing record key")
	}
	if !escaped && isDigits(name) {
		if i, err := strconv.ParseInt(name, 10, 64); err == nil {
			return value.Int(i), nil
		}
	}
	return value.Strand(name), nil
}

// parseEscaped parses text between open and close, where a backslash escapes
// the following character.
func (p *Parser) parseEscaped(open, close rune) (string, error) {
	if !p.skipChar(open) {
		return "", fmt.Errorf("expected %q", open)
	}
	var b strings.Builder
	for p.pos < len(p.input) {
		switch {
		case p.skipChar('\\'):
			if p.pos >= len(p.input) {
				return "", fmt.Errorf("unfinished escape")
			}
			b.WriteRune(unescape(p.char))
			p.advanceChar()
		case p.skipChar(close):
			return b.String(), nil
		default:
			b.WriteRune(p.char)
			p.advanceChar()
		}
	}
	return "", fmt.Errorf("missing closing %q", close)
}

func unescape(c rune) rune {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	}
	return c
}

// parseLiteral parses a value inside a composite record key.
func (p *Parser) parseLiteral() (value.Value, error) {
	switch c := p.char; {
	case c == '[':
		return p.parseArray()
	case c == '{':
		return p.parseObject()
	case c == '\'' || c == '"':
		s, err := p.parseEscaped(c, c)
		if err != nil {
			return nil, err
		}
		return value.Strand(s), nil
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case c == '⟨' || c == '`' || value.IsIdentByte(c):
		name, ok, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("unexpected %q", p.char)
		}
		if p.peekChar(':') {
			return p.parseThingID(name)
		}
		switch strings.ToLower(name) {
		case "true":
			return value.Bool(true), nil
		case "false":
			return value.Bool(false), nil
		case "null", "none":
			return value.Null{}, nil
		}
		return nil, fmt.Errorf("unexpected identifier %q", name)
	}
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("unexpected end of input")
	}
	return nil, fmt.Errorf("unexpected %q", p.char)
}

func (p *Parser) parseNumber() (value.Value, error) {
	mark := p.pos
	if !p.skipChar('-') {
		p.skipChar('+')
	}
	digits := func() int {
		n := 0
		for p.pos < len(p.input) && p.char >= '0' && p.char <= '9' {
			p.advanceChar()
			n++
		}
		return n
	}
	if digits() == 0 {
		return nil, fmt.Errorf("invalid number")
	}
	isFloat := false
	if p.peekChar('.') {
		cp := p.save()
		p.advanceChar()
		if digits() == 0 {
			cp.restore()
		} else {
			isFloat = true
		}
	}
	if p.peekChar('e') || p.peekChar('E') {
		cp := p.save()
		p.advanceChar()
		if !p.skipChar('-') {
			p.skipChar('+')
		}
		if digits() == 0 {
			cp.restore()
		} else {
			isFloat = true
		}
	}
	text := p.input[mark:p.pos]
	if p.skipChar('f') {
		isFloat = true
	}
	if !isFloat {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return value.Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", text)
	}
	return value.Float(f), nil
}

func (p *Parser) parseArray() (value.Value, error) {
	p.skipChar('[')
	a := value.Array{}
	for {
		p.skipBlanks()
		if p.skipChar(']') {
			return a, nil
		}
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		a = append(a, v)
		p.skipBlanks()
		if p.skipChar(',') {
			continue
		}
		if p.skipChar(']') {
			return a, nil
		}
		return nil, fmt.Errorf("expected \",\" or \"]\" in array")
	}
}

func (p *Parser) parseObject() (value.Value, error) {
	p.skipChar('{')
	o := value.Object{}
	for {
		p.skipBlanks()
		if p.skipChar('}') {
			return o, nil
		}
		var key string
		var err error
		switch p.char {
		case '\'', '"':
			key, err = p.parseEscaped(p.char, p.char)
		default:
			var ok bool
			key, ok, err = p.parseIdent()
			if err == nil && !ok {
				err = fmt.Errorf("missing object key")
			}
		}
		if err != nil {
			return nil, err
		}
		p.skipBlanks()
		if !p.skipChar(':') {
			return nil, fmt.Errorf("expected \":\" after object key %q", key)
		}
		p.skipBlanks()
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		o[key] = v
		p.skipBlanks()
		if p.skipChar(',') {
			continue
		}
		if p.skipChar('}') {
			return o, nil
		}
		return nil, fmt.Errorf("expected \",\" or \"}\" in object")
	}
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
