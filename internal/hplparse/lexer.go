// Package hplparse parses the small HPL-like property surface syntax
// into internal/ast values. The real HPL grammar a third-party AST
// visitor would normally parse is explicitly out of scope for the core
// (see DESIGN.md); this is a minimal, bespoke recursive-descent front
// end sufficient for this repository's own requirement files and tests.
package hplparse

import (
	"strconv"
	"strings"
	"text/scanner"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  scanner.Position
}

// lexer tokenizes HPL source text using text/scanner for identifier,
// string, and numeric literal scanning, with manual lookahead to merge
// multi-character operators ("<=", ">=", "!=").
type lexer struct {
	s    scanner.Scanner
	peek *token
}

func newLexer(src string) *lexer {
	l := &lexer{}
	l.s.Init(strings.NewReader(src))
	l.s.Mode = scanner.ScanIdents | scanner.ScanStrings | scanner.ScanInts | scanner.ScanFloats | scanner.ScanComments | scanner.SkipComments
	l.s.Filename = "hpl"
	return l
}

func (l *lexer) next() token {
	if l.peek != nil {
		t := *l.peek
		l.peek = nil
		return t
	}
	return l.scan()
}

func (l *lexer) peekTok() token {
	if l.peek == nil {
		t := l.scan()
		l.peek = &t
	}
	return *l.peek
}

func (l *lexer) scan() token {
	r := l.s.Scan()
	pos := l.s.Position
	switch r {
	case scanner.EOF:
		return token{kind: tokEOF, pos: pos}
	case scanner.Ident:
		return token{kind: tokIdent, text: l.s.TokenText(), pos: pos}
	case scanner.String:
		text := l.s.TokenText()
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			unquoted = text
		}
		return token{kind: tokString, text: unquoted, pos: pos}
	case scanner.Int, scanner.Float:
		return token{kind: tokNumber, text: l.s.TokenText(), pos: pos}
	default:
		text := string(r)
		// Merge two-character operators.
		if r == '<' || r == '>' || r == '!' || r == '=' {
			if l.s.Peek() == '=' {
				l.s.Next()
				text += "="
			}
		}
		return token{kind: tokPunct, text: text, pos: pos}
	}
}
