package expr

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/c360studio/mathcheck/normalize"
	"github.com/c360studio/mathcheck/symbols"
)

// ParseError reports a failure to turn canonical expression text into a tree.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q at %d: %s", e.Input, e.Pos, e.Msg)
}

var builtinFunctions = func() map[string]bool {
	m := make(map[string]bool, len(normalize.KnownFunctions))
	for _, name := range normalize.KnownFunctions {
		m[name] = true
	}
	return m
}()

// Parse turns canonical (already normalized) expression text into an
// expression tree, resolving names against the symbol table. Equations keep
// only the right-hand side; a single top-level comma keeps only the part
// before it. Undeclared names become ordinary commuting symbols.
func Parse(text string, table *symbols.Table) (Expr, error) {
	text = strings.TrimSpace(text)

	if strings.Contains(text, "=") {
		parts := strings.Split(text, "=")
		if len(parts) > 2 {
			return nil, &ParseError{Input: text, Msg: "more than one equals sign"}
		}
		text = strings.TrimSpace(parts[len(parts)-1])
	}
	if parts := splitTopComma(text); len(parts) > 1 {
		if len(parts) > 2 {
			return nil, &ParseError{Input: text, Msg: "more than one top-level comma"}
		}
		text = strings.TrimSpace(parts[0])
	}
	if text == "" {
		return nil, &ParseError{Input: text, Msg: "empty expression"}
	}

	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{input: text, toks: toks, table: table}
	e, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, &ParseError{Input: text, Pos: p.peek().pos, Msg: "unexpected trailing input"}
	}
	return e.Simplify(), nil
}

// splitTopComma splits on commas outside any parentheses.
func splitTopComma(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// ============================================================
// Tokenizer
// ============================================================

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp // one of + - * / ^ ( ) ,
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
				i++
			}
			text := s[start:i]
			if text == "." || strings.Count(text, ".") > 1 {
				return nil, &ParseError{Input: s, Pos: start, Msg: "malformed number"}
			}
			toks = append(toks, token{kind: tokNumber, text: text, pos: start})
		case isLetter(c):
			start := i
			for i < len(s) && (isLetter(s[i]) || s[i] >= '0' && s[i] <= '9' || s[i] == '_') {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: s[start:i], pos: start})
		case c == '*':
			if i+1 < len(s) && s[i+1] == '*' {
				toks = append(toks, token{kind: tokOp, text: "^", pos: i})
				i += 2
			} else {
				toks = append(toks, token{kind: tokOp, text: "*", pos: i})
				i++
			}
		case strings.ContainsRune("+-/^(),", rune(c)):
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
		default:
			return nil, &ParseError{Input: s, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return toks, nil
}

func isLetter(c byte) bool {
	return unicode.IsLetter(rune(c))
}

// ============================================================
// Precedence-climbing parser
// ============================================================

type parser struct {
	input string
	toks  []token
	pos   int
	table *symbols.Table
}

func (p *parser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.atEnd() {
		return token{kind: tokOp, text: "", pos: len(p.input)}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) errorf(pos int, format string, args ...any) error {
	return &ParseError{Input: p.input, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// parseSum handles + and -.
func (p *parser) parseSum() (Expr, error) {
	lhs, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	terms := []Expr{lhs}
	for !p.atEnd() {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			break
		}
		p.next()
		rhs, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		if t.text == "-" {
			rhs = Neg(rhs)
		}
		terms = append(terms, rhs)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return AddOf(terms...), nil
}

// parseProduct handles *, /, and implicit multiplication: two adjacent
// operands multiply (2x, x(y+1), (a)(b)).
func (p *parser) parseProduct() (Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	factors := []Expr{lhs}
	for !p.atEnd() {
		t := p.peek()
		switch {
		case t.kind == tokOp && t.text == "*":
			p.next()
			rhs, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			factors = append(factors, rhs)
		case t.kind == tokOp && t.text == "/":
			p.next()
			rhs, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			factors = append(factors, PowOf(rhs, N(-1)))
		case t.kind == tokNumber || t.kind == tokIdent || (t.kind == tokOp && t.text == "("):
			rhs, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			factors = append(factors, rhs)
		default:
			if len(factors) == 1 {
				return factors[0], nil
			}
			return MulOf(factors...), nil
		}
	}
	if len(factors) == 1 {
		return factors[0], nil
	}
	return MulOf(factors...), nil
}

// parseUnary handles leading signs.
func (p *parser) parseUnary() (Expr, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+") {
		p.next()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if t.text == "-" {
			return Neg(e), nil
		}
		return e, nil
	}
	return p.parsePower()
}

// parsePower handles ^, right associative, with a signed exponent allowed.
func (p *parser) parsePower() (Expr, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind == tokOp && t.text == "^" {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return PowOf(base, exp), nil
	}
	return base, nil
}

func (p *parser) parseAtom() (Expr, error) {
	t := p.next()
	switch {
	case t.kind == tokNumber:
		n, ok := NumFromString(t.text)
		if !ok {
			return nil, p.errorf(t.pos, "bad number %q", t.text)
		}
		return n, nil
	case t.kind == tokIdent:
		return p.resolveIdent(t)
	case t.kind == tokOp && t.text == "(":
		e, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokOp || c.text != ")" {
			return nil, p.errorf(c.pos, "expected closing parenthesis")
		}
		return e, nil
	}
	return nil, p.errorf(t.pos, "unexpected token %q", t.text)
}

// resolveIdent turns a name into a constant, function call, operator, or
// symbol, consulting the symbol table.
func (p *parser) resolveIdent(t token) (Expr, error) {
	name := t.text

	switch name {
	case "pi":
		return S("pi"), nil
	case "E":
		return S("E"), nil
	case "I":
		return S("I"), nil
	}

	if builtinFunctions[name] {
		args, called, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		if !called {
			return nil, p.errorf(t.pos, "function %s needs an argument", name)
		}
		return FuncOf(name, args...), nil
	}

	spec, declared := p.table.Lookup(name)

	// A _dag suffix marks the adjoint of a non-commuting operator.
	if base, isDag := strings.CutSuffix(name, "_dag"); isDag {
		baseSpec, baseDeclared := p.table.Lookup(base)
		nc := declared && !spec.Commuting || baseDeclared && !baseSpec.Commuting
		if nc {
			args, called, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			if called {
				return DaggerOf(NCFuncOf(base, args...)), nil
			}
			return DaggerOf(NC(base)), nil
		}
	}

	if declared {
		if spec.Role == symbols.RoleFunction {
			args, called, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			if called {
				if spec.Commuting {
					return FuncOf(name, args...), nil
				}
				return NCFuncOf(name, args...), nil
			}
		}
		if !spec.Commuting {
			if spec.Role == symbols.RoleParameter {
				// An operator applied to a mode label, c_up(k).
				args, called, err := p.parseCallArgs()
				if err != nil {
					return nil, err
				}
				if called {
					return NCFuncOf(name, args...), nil
				}
			}
			return NC(name), nil
		}
		return S(name), nil
	}

	// Unknown names become free commuting symbols; a following parenthesis
	// is multiplication, handled by parseProduct.
	return S(name), nil
}

// parseCallArgs consumes a parenthesized argument list if one follows.
func (p *parser) parseCallArgs() (args []Expr, called bool, err error) {
	t := p.peek()
	if t.kind != tokOp || t.text != "(" {
		return nil, false, nil
	}
	p.next()
	for {
		a, err := p.parseSum()
		if err != nil {
			return nil, false, err
		}
		args = append(args, a)
		c := p.next()
		if c.kind == tokOp && c.text == ")" {
			return args, true, nil
		}
		if c.kind != tokOp || c.text != "," {
			return nil, false, p.errorf(c.pos, "expected , or ) in argument list")
		}
	}
}
