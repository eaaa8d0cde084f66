package equiv

import (
	"strconv"
	"strings"

	"github.com/c360studio/mathcheck/extract"
)

// LiteralError reports text that is not a recognized numeric literal.
type LiteralError struct {
	Input string
	Msg   string
}

func (e *LiteralError) Error() string {
	return "literal " + strconv.Quote(e.Input) + ": " + e.Msg
}

// Literal is a restricted structured value for the plain-numeric comparison
// path: a single number or a tuple of numbers. Free-form text never reaches
// an evaluator; anything outside this grammar is an error.
type Literal struct {
	Values []complex128
	Tuple  bool
}

// ParseLiteral parses a number or a parenthesized tuple of numbers. Numbers
// may be integers, decimals, scientific notation, or complex values written
// with a trailing i or j imaginary unit.
func ParseLiteral(s string) (Literal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Literal{}, &LiteralError{Input: s, Msg: "empty"}
	}

	if strings.HasPrefix(s, "(") {
		if !strings.HasSuffix(s, ")") {
			return Literal{}, &LiteralError{Input: s, Msg: "unclosed tuple"}
		}
		inner := s[1 : len(s)-1]
		var values []complex128
		for _, part := range strings.Split(inner, ",") {
			v, err := parseNumber(strings.TrimSpace(part))
			if err != nil {
				return Literal{}, &LiteralError{Input: s, Msg: err.Error()}
			}
			values = append(values, v)
		}
		if len(values) == 0 {
			return Literal{}, &LiteralError{Input: s, Msg: "empty tuple"}
		}
		return Literal{Values: values, Tuple: true}, nil
	}

	v, err := parseNumber(s)
	if err != nil {
		return Literal{}, &LiteralError{Input: s, Msg: err.Error()}
	}
	return Literal{Values: []complex128{v}}, nil
}

func parseNumber(s string) (complex128, error) {
	if s == "" {
		return 0, &LiteralError{Input: s, Msg: "empty number"}
	}
	// Python-style imaginary unit.
	normalized := strings.ReplaceAll(s, "j", "i")
	v, err := strconv.ParseComplex(normalized, 128)
	if err != nil {
		return 0, &LiteralError{Input: s, Msg: "not a number"}
	}
	return v, nil
}

// closeLiterals compares two literals within Atol: same shape, elementwise
// closeness.
func closeLiterals(a, b Literal) bool {
	if a.Tuple != b.Tuple || len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if !Close(a.Values[i], b.Values[i]) {
			return false
		}
	}
	return true
}

// NumericCollections compares two collections whose elements are numeric
// literals, using list/set semantics with tolerance-based element equality.
func NumericCollections(left, right extract.Collection) (Verdict, error) {
	return Collections(left, right, func(a, b string) (bool, error) {
		la, err := ParseLiteral(a)
		if err != nil {
			return false, err
		}
		lb, err := ParseLiteral(b)
		if err != nil {
			return false, err
		}
		return closeLiterals(la, lb), nil
	})
}
