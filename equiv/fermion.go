package equiv

import (
	"errors"
	"fmt"

	"github.com/c360studio/mathcheck/expr"
	"github.com/c360studio/mathcheck/rewrite"
)

// NormalOrderCap bounds the normal-ordering rewrite. Failing to converge
// within the cap is a hard error, unlike the lexical cascade which stops
// silently at its bound.
const NormalOrderCap = 100

// NonConvergenceError reports a normal-ordering rewrite that did not reach a
// fixpoint within NormalOrderCap passes.
type NonConvergenceError struct {
	Cap int
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("normal ordering did not converge within %d passes", e.Cap)
}

// fermionRule rewrites an adjacent operator pair (a, b) in a product into
// repl.
type fermionRule struct {
	a, b expr.Expr
	repl expr.Expr
}

// NonCommutative decides equivalence of two operator expressions by normal
// ordering their difference: collect the non-commuting leaves of a-b in
// first encounter order, generate the fermionic anticommutation ruleset over
// that ordering, rewrite to a fixpoint, and declare equivalence iff the
// result simplifies to zero.
func NonCommutative(a, b expr.Expr) (Verdict, error) {
	diff := expr.Expand(expr.SubtractOf(a, b))

	leaves := expr.NonCommutingLeaves(diff)
	if len(leaves) == 0 {
		if diff.Simplify().String() == "0" {
			return equal(), nil
		}
		return unequal("difference is nonzero: %s", diff.Simplify()), nil
	}

	rules := fermionRules(leaves)
	step := func(e expr.Expr) expr.Expr {
		return expr.Expand(applyRules(e, rules))
	}
	eq := func(x, y expr.Expr) bool { return x.String() == y.String() }

	normalized, err := rewrite.Fixpoint(diff, step, eq, NormalOrderCap, rewrite.ErrorAtCap)
	if err != nil {
		var nc *rewrite.ErrNoConvergence
		if errors.As(err, &nc) {
			return Verdict{}, &NonConvergenceError{Cap: nc.Cap}
		}
		return Verdict{}, err
	}

	final := expr.Expand(normalized).Simplify()
	if final.String() == "0" {
		return equal(), nil
	}
	return unequal("normal-ordered difference is nonzero: %s", final), nil
}

// fermionRules generates the anticommutation ruleset for the canonically
// ordered operators ops. For i < j in the canonical order:
//
//	dag_i*dag_j -> -dag_j*dag_i
//	op_i*op_j   -> -op_j*op_i
//	op_i*dag_j  -> -dag_j*op_i
//	op_j*dag_i  -> -dag_i*op_j
//
// and for every operator the anticommutation identity with its own adjoint:
//
//	op_i*dag_i  -> 1 - dag_i*op_i
func fermionRules(ops []expr.Expr) []fermionRule {
	dag := func(op expr.Expr) expr.Expr { return expr.DaggerOf(op) }

	var rules []fermionRule
	for i := range ops {
		for j := i + 1; j < len(ops); j++ {
			rules = append(rules,
				fermionRule{
					a:    dag(ops[i]),
					b:    dag(ops[j]),
					repl: expr.Neg(expr.MulOf(dag(ops[j]), dag(ops[i]))),
				},
				fermionRule{
					a:    ops[i],
					b:    ops[j],
					repl: expr.Neg(expr.MulOf(ops[j], ops[i])),
				},
				fermionRule{
					a:    ops[i],
					b:    dag(ops[j]),
					repl: expr.Neg(expr.MulOf(dag(ops[j]), ops[i])),
				},
				fermionRule{
					a:    ops[j],
					b:    dag(ops[i]),
					repl: expr.Neg(expr.MulOf(dag(ops[i]), ops[j])),
				},
			)
		}
		rules = append(rules, fermionRule{
			a:    ops[i],
			b:    dag(ops[i]),
			repl: expr.AddOf(expr.N(1), expr.Neg(expr.MulOf(dag(ops[i]), ops[i]))),
		})
	}
	return rules
}

// applyRules rewrites the first matching adjacent factor pair in each
// product. Repeated passes under the fixpoint driver handle the rest.
func applyRules(e expr.Expr, rules []fermionRule) expr.Expr {
	switch v := e.(type) {
	case *expr.Add:
		terms := v.Terms()
		out := make([]expr.Expr, len(terms))
		for i, t := range terms {
			out[i] = applyRules(t, rules)
		}
		return expr.AddOf(out...)
	case *expr.Mul:
		factors := v.Factors()
		for k := 0; k+1 < len(factors); k++ {
			for _, r := range rules {
				if factors[k].Equal(r.a) && factors[k+1].Equal(r.b) {
					spliced := make([]expr.Expr, 0, len(factors)-1)
					spliced = append(spliced, factors[:k]...)
					spliced = append(spliced, r.repl)
					spliced = append(spliced, factors[k+2:]...)
					return expr.MulOf(spliced...)
				}
			}
		}
		out := make([]expr.Expr, len(factors))
		for i, f := range factors {
			out[i] = applyRules(f, rules)
		}
		return expr.MulOf(out...)
	case *expr.Pow:
		return expr.PowOf(applyRules(v.Base(), rules), applyRules(v.Exp(), rules))
	}
	return e
}
