// Package normalize converts markup-based math notation into canonical
// expression text the parser can consume. The pipeline is an ordered rewrite
// cascade: deletion of cosmetic tokens, function-spelling substitutions, a
// fixpoint iteration over recursively nestable constructs, and one-shot final
// cleanups, followed by known-function spacing and implicit-application
// parenthesization. Re-running Normalize on its own output is a no-op.
package normalize

import (
	"fmt"
	"strings"

	"github.com/c360studio/mathcheck/rewrite"
)

// Error reports a failed normalization.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

// Normalize runs the full cascade over one sub-answer. An empty result at the
// end of the cascade is an error; the nested-rule fixpoint stopping at its cap
// is not.
func Normalize(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", &Error{msg: "empty expression text"}
	}

	// Decorated identifiers fold before generic exponent rewriting so true
	// exponents are not mistaken for identifier annotations.
	cur := CanonicalizeScripts(s)

	cur = applyDeletions(cur)
	cur = functionRules.apply(cur)

	cur, _ = rewrite.Strings(cur, nestedRules.apply, nestedRuleCap, rewrite.StopAtCap)

	cur = gammaRule.re.ReplaceAllString(cur, gammaRule.repl)
	cur = replaceBareE(cur)
	cur = xeRule.re.ReplaceAllString(cur, xeRule.repl)
	cur = bracketRules.apply(cur)

	cur = spaceBeforeFunc.ReplaceAllString(cur, "$1 $2")
	cur = implicitApplication.ReplaceAllString(cur, " $1($2)")
	cur = bareImplicitApplication.ReplaceAllString(cur, "$1($2)")

	cur = replacementRules.apply(cur)
	cur = strings.ReplaceAll(cur, "\\", "")

	cur = restoreSquared(cur)

	if strings.TrimSpace(cur) == "" {
		return "", &Error{msg: fmt.Sprintf("normalization of %q produced empty text", s)}
	}
	return cur, nil
}

// replaceBareE rewrites a standalone e (not part of a longer name) to Euler's
// E. Needs neighbor checks, which RE2 lookaround cannot express.
func replaceBareE(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 'e' {
			prevIsLetter := i > 0 && isLetter(s[i-1])
			nextIsLetter := i+1 < len(s) && isLetter(s[i+1])
			if !prevIsLetter && !nextIsLetter {
				b.WriteByte('E')
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// restoreSquared reverses the sq-prefixed intermediate spellings once call
// parentheses are explicit: sqsin(x) -> sin(x)^2.
func restoreSquared(s string) string {
	for {
		idx, name := findSquared(s)
		if idx < 0 {
			return s
		}
		open := idx + len(name)
		if open >= len(s) || s[open] != '(' {
			// No argument to wrap; drop the sq prefix and move on.
			s = s[:idx] + squaredIntermediates[name] + s[open:]
			continue
		}
		depth := 1
		j := open + 1
		for j < len(s) && depth > 0 {
			switch s[j] {
			case '(':
				depth++
			case ')':
				depth--
			}
			j++
		}
		if depth != 0 {
			// Unbalanced; leave as-is to surface as a parse error.
			return s
		}
		base := squaredIntermediates[name]
		s = s[:idx] + base + s[open:j] + "^2" + s[j:]
	}
}

// findSquared locates the earliest sq-intermediate name in s, preferring the
// longest match at a given position (sqsinh over sqsin).
func findSquared(s string) (int, string) {
	best := -1
	var bestName string
	for name := range squaredIntermediates {
		i := strings.Index(s, name)
		if i < 0 {
			continue
		}
		if best == -1 || i < best || (i == best && len(name) > len(bestName)) {
			best = i
			bestName = name
		}
	}
	return best, bestName
}
