// Package equiv decides whether two answers are mathematically equivalent.
// It offers three comparison strategies: elementwise numeric closeness,
// symbolic expand-and-compare for commuting algebra, and fermionic
// normal-ordering for non-commuting operator expressions. A comparison always
// resolves to an explicit verdict or an explicit error, never an ambiguous
// state.
package equiv

import (
	"fmt"
	"math/cmplx"
)

// Atol is the absolute tolerance for numeric closeness.
const Atol = 1e-6

// Verdict is the outcome of a comparison. Reason is set when Equal is false
// and explains the first mismatch found.
type Verdict struct {
	Equal  bool
	Reason string
}

func equal() Verdict { return Verdict{Equal: true} }

func unequal(format string, args ...any) Verdict {
	return Verdict{Equal: false, Reason: fmt.Sprintf(format, args...)}
}

// AllClose compares two numeric result vectors elementwise within Atol.
// A length mismatch is an inequality with a diagnostic, not an error.
func AllClose(a, b []complex128) Verdict {
	if len(a) != len(b) {
		return unequal("shape mismatch: %d values vs %d", len(a), len(b))
	}
	for i := range a {
		if !Close(a[i], b[i]) {
			return unequal("values differ at position %d: %v vs %v", i, a[i], b[i])
		}
	}
	return equal()
}

// Close reports |a-b| <= Atol.
func Close(a, b complex128) bool {
	return cmplx.Abs(a-b) <= Atol
}
