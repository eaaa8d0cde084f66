package grader

import (
	"fmt"

	"github.com/c360studio/mathcheck/equiv"
	"github.com/c360studio/mathcheck/extract"
	"github.com/c360studio/mathcheck/normalize"
	"github.com/c360studio/mathcheck/symbols"
)

// Comparison is the serializable verdict of grading an answer against a
// solution.
type Comparison struct {
	Equivalent bool        `json:"equivalent"`
	Reason     string      `json:"reason,omitempty"`
	Mode       string      `json:"mode"`
	Answer     *Evaluation `json:"answer"`
	Solution   *Evaluation `json:"solution"`
}

// Compare grades an answer against a solution. Both sides share the
// problem's declaration strings, so they run in the same mode against the
// same symbol table and, in numeric modes, the same parameter sample.
func (g *Grader) Compare(answer, solution string, parameterDecl, functionDecl string) *Comparison {
	if cmp, ok := g.compareCollections(answer, solution, parameterDecl, functionDecl); ok {
		return cmp
	}

	mode := ModeFor(parameterDecl, functionDecl)
	cmp := &Comparison{Mode: mode.String()}

	cmp.Answer = g.Evaluate(Request{Answer: answer, Parameters: parameterDecl, Functions: functionDecl})
	cmp.Solution = g.Evaluate(Request{Answer: solution, Parameters: parameterDecl, Functions: functionDecl})
	if !cmp.Answer.Success {
		cmp.Reason = "answer: " + cmp.Answer.ErrorMessage
		return cmp
	}
	if !cmp.Solution.Success {
		cmp.Reason = "solution: " + cmp.Solution.ErrorMessage
		return cmp
	}

	if mode != SymbolicWithFunctions && hasNonCommuting(cmp.Answer) {
		mode = SymbolicWithFunctions
		cmp.Mode = mode.String()
	}

	switch mode {
	case PlainNumeric, ParameterizedNumeric:
		v := equiv.AllClose(cmp.Answer.values, cmp.Solution.values)
		cmp.Equivalent, cmp.Reason = v.Equal, v.Reason
	case SymbolicWithFunctions:
		g.compareSymbolic(cmp)
	}

	g.logger.Info("compared answers",
		"mode", cmp.Mode, "equivalent", cmp.Equivalent)
	return cmp
}

// compareSymbolic decides the symbolic modes: operator algebra goes through
// fermionic normal ordering sub-answer by sub-answer, commuting algebra
// through expanded multiset comparison.
func (g *Grader) compareSymbolic(cmp *Comparison) {
	a, s := cmp.Answer, cmp.Solution

	if hasNonCommuting(a) {
		if len(a.exprs) != len(s.exprs) {
			cmp.Equivalent = false
			cmp.Reason = "answer counts differ"
			return
		}
		for i := range a.exprs {
			v, err := equiv.NonCommutative(a.exprs[i], s.exprs[i])
			if err != nil {
				cmp.Equivalent = false
				cmp.Reason = err.Error()
				return
			}
			if !v.Equal {
				cmp.Equivalent = false
				cmp.Reason = v.Reason
				return
			}
		}
		cmp.Equivalent = true
		return
	}

	v := equiv.Symbolic(a.exprs, s.exprs)
	cmp.Equivalent, cmp.Reason = v.Equal, v.Reason
}

func hasNonCommuting(ev *Evaluation) bool {
	return ev.table != nil && tableHasNonCommuting(ev.table)
}

// compareCollections handles payloads written as explicit collections:
// {a;b} matches as a set, [a;b] positionally. Each element pair runs through
// the full single-expression comparison, so sets of symbolic or operator
// expressions match the same way scalars do. Payloads without literal
// brackets fall through to the standard path.
func (g *Grader) compareCollections(answer, solution string, parameterDecl, functionDecl string) (*Comparison, bool) {
	left, lerr := extract.BoxedCollection(normalize.ReplaceUnicode(answer))
	right, rerr := extract.BoxedCollection(normalize.ReplaceUnicode(solution))
	if lerr != nil || rerr != nil {
		return nil, false
	}
	if !left.Explicit && !right.Explicit {
		return nil, false
	}

	mode := ModeFor(parameterDecl, functionDecl)
	cmp := &Comparison{Mode: mode.String()}
	if table, err := symbols.Build(parameterDecl, functionDecl); err == nil &&
		mode != SymbolicWithFunctions && tableHasNonCommuting(table) {
		mode = SymbolicWithFunctions
		cmp.Mode = mode.String()
	}

	pred := func(a, b string) (bool, error) {
		sub := g.Compare(`\boxed{`+a+`}`, `\boxed{`+b+`}`, parameterDecl, functionDecl)
		if sub.Answer != nil && !sub.Answer.Success {
			return false, fmt.Errorf("element %q: %s", a, sub.Answer.ErrorMessage)
		}
		if sub.Solution != nil && !sub.Solution.Success {
			return false, fmt.Errorf("element %q: %s", b, sub.Solution.ErrorMessage)
		}
		return sub.Equivalent, nil
	}

	v, err := equiv.Collections(left, right, pred)
	if err != nil {
		cmp.Reason = err.Error()
		return cmp, true
	}
	cmp.Equivalent, cmp.Reason = v.Equal, v.Reason

	g.logger.Info("compared answer collections",
		"kind", left.Kind.String(), "mode", cmp.Mode, "equivalent", cmp.Equivalent)
	return cmp, true
}

// CompareLiterals grades two boxed collections of numeric literals without
// any symbolic parsing: set or list extraction, then tolerance-based literal
// matching. This is the restricted replacement for evaluating answer text as
// code.
func (g *Grader) CompareLiterals(answer, solution string) *Comparison {
	cmp := &Comparison{Mode: "numeric_literals"}

	left, err := extract.BoxedCollection(normalize.ReplaceUnicode(answer))
	if err != nil {
		cmp.Reason = "answer: " + err.Error()
		return cmp
	}
	right, err := extract.BoxedCollection(normalize.ReplaceUnicode(solution))
	if err != nil {
		cmp.Reason = "solution: " + err.Error()
		return cmp
	}

	v, err := equiv.NumericCollections(left, right)
	if err != nil {
		cmp.Reason = err.Error()
		return cmp
	}
	cmp.Equivalent, cmp.Reason = v.Equal, v.Reason
	return cmp
}
