// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package parse splits query programs into statements and parses record
// identifiers. It does not understand the query language beyond the lexical
// level: strings, escaped identifiers, comments, brackets, statement
// separators and $param references.
package parse

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/canonical/surrealq/internal/value"
)

// Error is returned when a program cannot be split into statements. It
// carries the position of the offending character.
type Error struct {
	Line   int
	Column int
	Msg    string

	multiline bool
}

func (e *Error) Error() string {
	if e.multiline {
		return fmt.Sprintf("cannot parse statement: line %d, column %d: %s", e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("cannot parse statement: column %d: %s", e.Column, e.Msg)
}

func NewParser() *Parser {
	return &Parser{}
}

type Parser struct {
	input string
	pos   int
	// nextPos is start of the next char.
	nextPos int
	// char is the rune starting at pos. char is set to 0 when pos reaches the
	// end of input.
	char rune
	// lineNum is the number of the current line of the input.
	lineNum int
	// lineStart is the position of the first char of the current line in the
	// input.
	lineStart int

	// brackets holds the currently open brackets.
	brackets []bracket
	// contentStart and contentEnd delimit the statement being parsed,
	// excluding leading and trailing blanks and comments. contentStart is -1
	// until the statement has content.
	contentStart int
	contentEnd   int
	params       []string
	seen         map[string]bool
	stmts        []Statement
}

// bracket records an open bracket and where it was found.
type bracket struct {
	char            rune
	lineNum, colNum int
}

var closers = map[rune]rune{'(': ')', '[': ']', '{': '}'}

// Parse splits a program into its statements. Empty statements are dropped
// so a program holding only blanks and comments has no statements.
func Parse(program string) ([]Statement, error) {
	return NewParser().Parse(program)
}

// Parse splits input into its statements.
func (p *Parser) Parse(input string) ([]Statement, error) {
	p.init(input)

	for p.pos < len(p.input) {
		if ok, err := p.skipComment(); err != nil {
			return nil, err
		} else if ok {
			continue
		}

		switch p.char {
		case ' ', '\t', '\r', '\n':
			p.advanceChar()
			continue
		}

		start := p.pos
		if ok, err := p.skipStringLiteral(); err != nil {
			return nil, err
		} else if ok {
			p.markContent(start)
			continue
		}
		if ok, err := p.skipEscapedIdent(); err != nil {
			return nil, err
		} else if ok {
			p.markContent(start)
			continue
		}

		switch p.char {
		case ';':
			if len(p.brackets) == 0 {
				p.endStatement()
				p.advanceChar()
				continue
			}
		case '(', '[', '{':
			p.brackets = append(p.brackets, bracket{char: p.char, lineNum: p.lineNum, colNum: p.colNum()})
		case ')', ']', '}':
			if len(p.brackets) == 0 {
				return nil, p.errorf("unexpected %q", p.char)
			}
			open := p.brackets[len(p.brackets)-1]
			if closers[open.char] != p.char {
				return nil, p.errorf("expected %q to close %q, got %q", closers[open.char], open.char, p.char)
			}
			p.brackets = p.brackets[:len(p.brackets)-1]
		case '$':
			p.advanceChar()
			p.addParam(p.parseName())
			p.markContent(start)
			continue
		}
		p.advanceChar()
		p.markContent(start)
	}

	if len(p.brackets) > 0 {
		open := p.brackets[len(p.brackets)-1]
		return nil, &Error{
			Line:      open.lineNum,
			Column:    open.colNum,
			Msg:       fmt.Sprintf("missing closing %q", closers[open.char]),
			multiline: strings.ContainsRune(p.input, '\n'),
		}
	}
	p.endStatement()
	return p.stmts, nil
}

// init resets the state of the parser and sets the input string.
func (p *Parser) init(input string) {
	p.input = input
	p.pos = 0
	p.nextPos = 0
	p.char = 0
	p.lineNum = 1
	p.lineStart = 0
	p.brackets = nil
	p.stmts = []Statement{}
	p.resetStatement()
	p.advanceChar()
}

func (p *Parser) resetStatement() {
	p.contentStart = -1
	p.contentEnd = -1
	p.params = nil
	p.seen = map[string]bool{}
}

// markContent extends the current statement to cover input from start to
// the parser position.
func (p *Parser) markContent(start int) {
	if p.contentStart == -1 {
		p.contentStart = start
	}
	p.contentEnd = p.pos
}

// endStatement adds the statement parsed so far, if it has any content.
func (p *Parser) endStatement() {
	if p.contentStart != -1 {
		p.stmts = append(p.stmts, Statement{
			text:   p.input[p.contentStart:p.contentEnd],
			params: p.params,
		})
	}
	p.resetStatement()
}

func (p *Parser) addParam(name string) {
	if name == "" || p.seen[name] {
		return
	}
	p.seen[name] = true
	p.params = append(p.params, name)
}

// colNum calculates the current column number taking into account line breaks.
func (p *Parser) colNum() int {
	return utf8.RuneCountInString(p.input[p.lineStart:p.pos]) + 1
}

// advanceChar moves the parser to the next character in the input. It also
// takes care of updating the line and column numbers if it encounters line
// breaks.
func (p *Parser) advanceChar() bool {
	if p.nextPos >= len(p.input) {
		p.char = 0
		p.pos = p.nextPos
		return false
	}
	if p.char == '\n' {
		p.lineStart = p.nextPos
		p.lineNum++
	}
	var size int
	p.char, size = utf8.DecodeRuneInString(p.input[p.nextPos:])
	p.pos = p.nextPos
	p.nextPos += size
	return true
}

// errorf returns an Error at the current position.
func (p *Parser) errorf(format string, args ...any) error {
	return &Error{
		Line:      p.lineNum,
		Column:    p.colNum(),
		Msg:       fmt.Sprintf(format, args...),
		multiline: strings.ContainsRune(p.input, '\n'),
	}
}

// A checkpoint struct for saving parser state to restore later.
type checkpoint struct {
	parser    *Parser
	pos       int
	nextPos   int
	char      rune
	lineNum   int
	lineStart int
}

// save takes a snapshot of the state of the parser and returns a pointer to a
// checkpoint that represents it.
func (p *Parser) save() *checkpoint {
	return &checkpoint{
		parser:    p,
		pos:       p.pos,
		nextPos:   p.nextPos,
		char:      p.char,
		lineNum:   p.lineNum,
		lineStart: p.lineStart,
	}
}

// restore sets the internal state of the parser to the values stored in the
// checkpoint.
func (cp *checkpoint) restore() {
	cp.parser.pos = cp.pos
	cp.parser.nextPos = cp.nextPos
	cp.parser.char = cp.char
	cp.parser.lineNum = cp.lineNum
	cp.parser.lineStart = cp.lineStart
}

// peekChar returns true if the current char equals the one passed as parameter.
func (p *Parser) peekChar(c rune) bool {
	return p.pos < len(p.input) && p.char == c
}

// skipChar jumps over the current char if it matches the char passed as a
// parameter. Returns true in that case, false otherwise.
func (p *Parser) skipChar(c rune) bool {
	if p.pos < len(p.input) && p.char == c {
		p.advanceChar()
		return true
	}
	return false
}

// skipComment jumps over "--", "#" and "//" line comments and "/* */" block
// comments. If no comment is found the parser state is left unchanged.
func (p *Parser) skipComment() (bool, error) {
	cp := p.save()
	switch {
	case p.skipChar('#'):
	case p.skipChar('-'):
		if !p.skipChar('-') {
			cp.restore()
			return false, nil
		}
	case p.skipChar('/'):
		if p.skipChar('*') {
			for p.pos < len(p.input) {
				if p.skipChar('*') && p.skipChar('/') {
					return true, nil
				}
				if !p.peekChar('*') {
					p.advanceChar()
				}
			}
			cp.restore()
			return false, p.errorf("missing closing \"*/\" in comment")
		}
		if !p.skipChar('/') {
			cp.restore()
			return false, nil
		}
	default:
		return false, nil
	}
	// Line comments run up to, but not including, the newline.
	for p.pos < len(p.input) && p.char != '\n' {
		p.advanceChar()
	}
	return true, nil
}

// skipStringLiteral jumps over single and double quoted sections of input.
// A backslash escapes the following character.
func (p *Parser) skipStringLiteral() (bool, error) {
	c := p.char
	if c != '\'' && c != '"' {
		return false, nil
	}
	return p.skipDelimited(c, c, "missing closing quote in string literal")
}

// skipEscapedIdent jumps over identifiers escaped with angle brackets or
// backticks.
func (p *Parser) skipEscapedIdent() (bool, error) {
	switch p.char {
	case '⟨':
		return p.skipDelimited('⟨', '⟩', "missing closing \"⟩\" in identifier")
	case '`':
		return p.skipDelimited('`', '`', "missing closing \"`\" in identifier")
	}
	return false, nil
}

func (p *Parser) skipDelimited(open, close rune, msg string) (bool, error) {
	cp := p.save()
	if !p.skipChar(open) {
		return false, nil
	}
	for p.pos < len(p.input) {
		switch {
		case p.skipChar('\\'):
			p.advanceChar()
		case p.skipChar(close):
			return true, nil
		default:
			p.advanceChar()
		}
	}
	// Reached end of input and didn't find the closing delimiter. Report the
	// position of the opening one.
	cp.restore()
	return false, p.errorf("%s", msg)
}

// parseName consumes and returns a run of identifier characters.
func (p *Parser) parseName() string {
	mark := p.pos
	for p.pos < len(p.input) && value.IsIdentByte(p.char) {
		p.advanceChar()
	}
	return p.input[mark:p.pos]
}

// skipBlanks advances the parser past spaces, tabs and newlines. Returns
// whether the parser position was changed.
func (p *Parser) skipBlanks() bool {
	mark := p.pos
	for p.pos < len(p.input) {
		switch p.char {
		case ' ', '\t', '\r', '\n':
			p.advanceChar()
		default:
			return p.pos != mark
		}
	}
	return p.pos != mark
}
