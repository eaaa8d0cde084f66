package equiv

import (
	"github.com/c360studio/mathcheck/expr"
)

// Symbolic compares two lists of expression trees for the commuting case:
// each tree is fully expanded and the two expanded lists are compared as
// multisets of canonical forms. Expansion plus multiset comparison catches
// reordering and regrouping but not every algebraic identity, so a false
// negative is possible; a true verdict is always sound.
func Symbolic(a, b []expr.Expr) Verdict {
	if len(a) != len(b) {
		return unequal("answer counts differ: %d vs %d", len(a), len(b))
	}

	counts := make(map[string]int, len(a))
	for _, e := range a {
		counts[expr.Expand(e).String()]++
	}
	for _, e := range b {
		key := expr.Expand(e).String()
		if counts[key] == 0 {
			return unequal("no matching expression for %s", key)
		}
		counts[key]--
	}
	return equal()
}
