// Package filter implements a restricted predicate language for report
// records. Expressions are parsed once into an AST and evaluated per record;
// no user-supplied code is ever executed.
//
// Grammar:
//
//	expr       = orExpr
//	orExpr     = andExpr { "||" andExpr }
//	andExpr    = unaryExpr { "&&" unaryExpr }
//	unaryExpr  = "!" unaryExpr | "(" expr ")" | comparison
//	comparison = field operator string
//	operator   = "==" | "!=" | "contains" | "startsWith" | "endsWith"
//
// Fields are report column names; strings are single- or double-quoted.
package filter

import (
	"fmt"
	"strings"

	"github.com/joshsymonds/accesslens/internal/models"
)

// Expr is a parsed filter expression.
type Expr interface {
	// Evaluate reports whether the record matches.
	Evaluate(record models.Record) bool
}

// ParseError describes where parsing failed.
type ParseError struct {
	Message string
	Pos     int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("filter parse error at position %d: %s", e.Pos, e.Message)
}

// Parse compiles a filter string into an evaluable expression.
func Parse(input string) (Expr, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &ParseError{Pos: 0, Message: "empty filter expression"}
	}
	p := &parser{lexer: newLexer(input)}
	if err := p.next(); err != nil {
		return nil, err
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokenEOF {
		return nil, &ParseError{Pos: p.tok.pos, Message: fmt.Sprintf("unexpected %q", p.tok.text)}
	}
	return expr, nil
}

// Apply returns the records matching the expression.
func Apply(expr Expr, recs []models.Record) []models.Record {
	var matched []models.Record
	for _, rec := range recs {
		if expr.Evaluate(rec) {
			matched = append(matched, rec)
		}
	}
	return matched
}

type binaryExpr struct {
	left, right Expr
	and         bool
}

func (b *binaryExpr) Evaluate(record models.Record) bool {
	if b.and {
		return b.left.Evaluate(record) && b.right.Evaluate(record)
	}
	return b.left.Evaluate(record) || b.right.Evaluate(record)
}

type notExpr struct {
	inner Expr
}

func (n *notExpr) Evaluate(record models.Record) bool {
	return !n.inner.Evaluate(record)
}

type comparison struct {
	field string
	op    string
	value string
}

func (c *comparison) Evaluate(record models.Record) bool {
	actual := record[c.field]
	switch c.op {
	case "==":
		return actual == c.value
	case "!=":
		return actual != c.value
	case "contains":
		return strings.Contains(actual, c.value)
	case "startsWith":
		return strings.HasPrefix(actual, c.value)
	case "endsWith":
		return strings.HasSuffix(actual, c.value)
	}
	return false
}

type parser struct {
	lexer *lexer
	tok   token
}

func (p *parser) next() error {
	tok, err := p.lexer.scan()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokenOr {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokenAnd {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{left: left, right: right, and: true}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	switch p.tok.kind {
	case tokenNot:
		if err := p.next(); err != nil {
			return nil, err
		}
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{inner: inner}, nil
	case tokenLParen:
		if err := p.next(); err != nil {
			return nil, err
		}
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokenRParen {
			return nil, &ParseError{Pos: p.tok.pos, Message: "expected closing parenthesis"}
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	if p.tok.kind != tokenIdent {
		return nil, &ParseError{Pos: p.tok.pos, Message: fmt.Sprintf("expected field name, got %q", p.tok.text)}
	}
	field := p.tok.text
	if err := p.next(); err != nil {
		return nil, err
	}

	var op string
	switch p.tok.kind {
	case tokenEq:
		op = "=="
	case tokenNeq:
		op = "!="
	case tokenIdent:
		switch p.tok.text {
		case "contains", "startsWith", "endsWith":
			op = p.tok.text
		default:
			return nil, &ParseError{Pos: p.tok.pos, Message: fmt.Sprintf("unknown operator %q", p.tok.text)}
		}
	default:
		return nil, &ParseError{Pos: p.tok.pos, Message: fmt.Sprintf("expected operator, got %q", p.tok.text)}
	}
	if err := p.next(); err != nil {
		return nil, err
	}

	if p.tok.kind != tokenString {
		return nil, &ParseError{Pos: p.tok.pos, Message: fmt.Sprintf("expected quoted string, got %q", p.tok.text)}
	}
	value := p.tok.text
	if err := p.next(); err != nil {
		return nil, err
	}

	return &comparison{field: field, op: op, value: value}, nil
}
