// Package rewrite provides a bounded fixpoint iterator shared by the lexical
// normalizer and the operator normal-ordering engine. Both apply a rule set
// repeatedly until a pass produces no change; they differ only in what happens
// when the iteration cap is hit.
package rewrite

import "fmt"

// Policy selects the behavior when the iteration cap is reached without
// convergence.
type Policy int

const (
	// StopAtCap returns the last value silently. The lexical cascade uses
	// this: an under-normalized string surfaces later as a parse failure.
	StopAtCap Policy = iota
	// ErrorAtCap returns ErrNoConvergence. The normal-ordering engine uses
	// this: a non-converged operator product would be a wrong verdict.
	ErrorAtCap
)

// ErrNoConvergence reports that a rule set failed to reach a fixpoint within
// its iteration cap.
type ErrNoConvergence struct {
	Cap int
}

func (e *ErrNoConvergence) Error() string {
	return fmt.Sprintf("rewrite did not converge within %d iterations", e.Cap)
}

// Fixpoint applies step to x until eq reports no change between consecutive
// values, up to maxIter passes. The returned value is the last computed one.
func Fixpoint[T any](x T, step func(T) T, eq func(a, b T) bool, maxIter int, policy Policy) (T, error) {
	for i := 0; i < maxIter; i++ {
		next := step(x)
		if eq(x, next) {
			return next, nil
		}
		x = next
	}
	if policy == ErrorAtCap {
		return x, &ErrNoConvergence{Cap: maxIter}
	}
	return x, nil
}

// Strings is Fixpoint specialized to strings with == as the convergence test.
func Strings(s string, step func(string) string, maxIter int, policy Policy) (string, error) {
	return Fixpoint(s, step, func(a, b string) bool { return a == b }, maxIter, policy)
}
