package filter

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenString
	tokenEq
	tokenNeq
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	text string
	pos  int
	kind tokenKind
}

type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) scan() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokenEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokenLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokenRParen, text: ")", pos: start}, nil
	case c == '&':
		if strings.HasPrefix(l.input[l.pos:], "&&") {
			l.pos += 2
			return token{kind: tokenAnd, text: "&&", pos: start}, nil
		}
		return token{}, &ParseError{Pos: start, Message: "expected &&"}
	case c == '|':
		if strings.HasPrefix(l.input[l.pos:], "||") {
			l.pos += 2
			return token{kind: tokenOr, text: "||", pos: start}, nil
		}
		return token{}, &ParseError{Pos: start, Message: "expected ||"}
	case c == '=':
		if strings.HasPrefix(l.input[l.pos:], "==") {
			l.pos += 2
			return token{kind: tokenEq, text: "==", pos: start}, nil
		}
		return token{}, &ParseError{Pos: start, Message: "expected =="}
	case c == '!':
		if strings.HasPrefix(l.input[l.pos:], "!=") {
			l.pos += 2
			return token{kind: tokenNeq, text: "!=", pos: start}, nil
		}
		l.pos++
		return token{kind: tokenNot, text: "!", pos: start}, nil
	case c == '"' || c == '\'':
		return l.scanString(c)
	case isIdentStart(c):
		return l.scanIdent()
	}
	return token{}, &ParseError{Pos: start, Message: fmt.Sprintf("unexpected character %q", c)}
}

func (l *lexer) scanString(quote byte) (token, error) {
	start := l.pos
	l.pos++ // consume opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == quote {
			l.pos++
			return token{kind: tokenString, text: b.String(), pos: start}, nil
		}
		if c == '\\' && l.pos+1 < len(l.input) {
			l.pos++
			c = l.input[l.pos]
		}
		b.WriteByte(c)
		l.pos++
	}
	return token{}, &ParseError{Pos: start, Message: "unterminated string"}
}

func (l *lexer) scanIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	return token{kind: tokenIdent, text: l.input[start:l.pos], pos: start}, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '.'
}
