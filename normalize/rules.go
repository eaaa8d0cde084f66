package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// rule is a single regexp rewrite.
type rule struct {
	re   *regexp.Regexp
	repl string
}

// ruleSet applies its rules in declaration order, once each.
type ruleSet []rule

func (rs ruleSet) apply(s string) string {
	for _, r := range rs {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

func mustRule(pattern, repl string) rule {
	return rule{re: regexp.MustCompile(pattern), repl: repl}
}

// unicodeReplacements maps glyphs that LLMs emit in place of markup commands
// back onto the commands the cascade understands. Box-drawing characters stand
// in for \boxed delimiters often enough to matter.
var unicodeReplacements = []struct{ from, to string }{
	{"⎧", `\boxed{`},
	{"⎫", "}"},
	{"\n│", `\boxed{`},
	{"│", "}"},
	{"\n┃", `\boxed{`},
	{"┃", "}"},
	{"\n", `\boxed{`},
	{"", "}"},
	{"√", `\sqrt`},
	{"×", `\cdot`},
	{" ", " "},
}

// ReplaceUnicode rewrites unicode stand-ins to markup commands. Applied to the
// raw response before boxed extraction, since some glyphs synthesize the box
// markers themselves.
func ReplaceUnicode(s string) string {
	for _, r := range unicodeReplacements {
		s = strings.ReplaceAll(s, r.from, r.to)
	}
	return s
}

// deletionTokens are cosmetic markup removed with no replacement.
var deletionTokens = []string{
	`\left`,
	`\right`,
	`\langle`,
	`\rangle`,
	`\Bigl`,
	`\Bigr`,
	`\bigl`,
	`\bigr`,
	`\Biggl`,
	`\Biggr`,
	`\hline`,
	`\vline`,
	`$`,
	`\pm`,
}

func applyDeletions(s string) string {
	for _, tok := range deletionTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	return s
}

// trigNames is the alternation of trig and hyperbolic function spellings used
// by the function rules.
const trigNames = `sin|cos|tan|csc|sec|cot|sinh|cosh|tanh|coth|sech|csch`

// functionRules map markup function spellings onto parser-recognized algebra.
// The sq+trig intermediate names defer "squared function" rewriting until
// implicit application has inserted explicit parentheses; restoreSquared
// reverses them afterwards.
var functionRules = ruleSet{
	mustRule(`exp`, `E^`),
	mustRule(`\\cdot`, `*`),
	mustRule(`\\times`, `*`),
	mustRule(`\\pi`, `pi`),
	mustRule(`\\i\b`, `I`),
	mustRule(`\\(`+trigNames+`)\^\{-1\}`, `arc$1`),
	mustRule(`arc(`+trigNames+`)`, `a$1`),
	mustRule(`(?:\\)?(`+trigNames+`)\^(?:\{)?2(?:\})?`, `sq$1`),
}

// nestedRules rewrite recursively nestable constructs. They are iterated to a
// fixpoint (innermost groups resolve first) with a cap of nestedRuleCap.
var nestedRules = ruleSet{
	mustRule(`\\frac\{([^{}]*)\}\{([^{}]*)\}`, `($1)/($2)`),
	mustRule(`\\sqrt\[(.*?)\]\{([^{}]*)\}`, `($2)**(1/($1))`),
	mustRule(`\\sqrt\{([^{}]*)\}`, `($1)**(1/2)`),
	mustRule(`\^\{([^{}]*)\}`, `^($1)`),
	mustRule(`_\{([^{}]*)\}`, `$1`),
	mustRule(`\\mathrm\{([^{}]*)\}`, `$1`),
	mustRule(`\\text\{([^{}]*)\}`, `$1`),
}

// nestedRuleCap bounds the nested-rule fixpoint. Exceeding it stops silently;
// an under-normalized string surfaces as a parse error downstream.
const nestedRuleCap = 5

// Final-phase rules run once after the nested fixpoint; applying them earlier
// would interfere with the nested patterns. Bare-e disambiguation sits between
// them and needs neighbor checks (replaceBareE in normalize.go).
var (
	gammaRule = mustRule(`\\Gamma\((.*?)\)`, `gamma($1)`)
	xeRule    = mustRule(`([a-zA-Z])e\^`, `$1*E^`)

	bracketRules = ruleSet{
		mustRule(`\{`, `(`),
		mustRule(`\}`, `)`),
		mustRule(`\[`, `(`),
		mustRule(`\]`, `)`),
	}
)

// replacementRules run after implicit-application handling, mapping residual
// relational and bracket markup to expression syntax.
var replacementRules = ruleSet{
	mustRule(`\\approx`, `=`),
	mustRule(`\\sim`, `=`),
	mustRule(`\\\{`, `(`),
	mustRule(`\\\}`, `)`),
	mustRule(`\[`, `(`),
	mustRule(`\]`, `)`),
}

// squaredIntermediates restore the sq-prefixed trig spellings to f(arg)^2.
var squaredIntermediates = map[string]string{
	"sqsin": "sin", "sqcos": "cos", "sqtan": "tan",
	"sqcsc": "csc", "sqsec": "sec", "sqcot": "cot",
	"sqsinh": "sinh", "sqcosh": "cosh", "sqtanh": "tanh",
	"sqcoth": "coth", "sqsech": "sech", "sqcsch": "csch",
}

// KnownFunctions lists the function names the expression parser accepts,
// including the transient sq spellings that exist only inside the cascade.
var KnownFunctions = []string{
	"sin", "cos", "tan", "csc", "sec", "cot",
	"sinh", "cosh", "tanh", "coth", "sech", "csch",
	"asin", "acos", "atan", "acsc", "asec", "acot",
	"asinh", "acosh", "atanh", "acoth", "asech", "acsch",
	"log", "ln", "exp", "sqrt", "gamma",
	"sqsin", "sqcos", "sqtan", "sqcsc", "sqsec", "sqcot",
	"sqsinh", "sqcosh", "sqtanh", "sqcoth", "sqsech", "sqcsch",
}

// knownFunctionAlt is the alternation of function names, longest first so
// sinh never matches as sin followed by an h operand.
var knownFunctionAlt = func() string {
	names := append([]string(nil), KnownFunctions...)
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	return strings.Join(names, "|")
}()

// spaceBeforeFunc separates a known function command from preceding non-space
// text so x\ln(x) does not tokenize as a single identifier.
var spaceBeforeFunc = regexp.MustCompile(`(\S)(\\(?:` + knownFunctionAlt + `)\b)`)

// implicitApplication wraps the bare token following a function command in
// call parentheses: \sin \theta -> sin(\theta).
var implicitApplication = regexp.MustCompile(`\\(` + knownFunctionAlt + `)\s*([^{}\s()+\-*/^]+)`)

// bareImplicitApplication covers the unbackslashed spellings the function
// rules emit (\sin^{-1} -> asin), which the pattern above no longer sees:
// asin x -> asin(x).
var bareImplicitApplication = regexp.MustCompile(`\b(` + knownFunctionAlt + `)\s+([^{}\s()+\-*/^]+)`)
