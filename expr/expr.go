// Package expr is a small symbolic expression kernel: exact rational numbers,
// symbols with a commuting flag, sums, order-preserving products, powers,
// named function applications, and the adjoint (dagger) operator. It covers
// exactly what answer grading needs: parsing canonical expression text,
// expansion, substitution, numeric evaluation to complex values, and stable
// canonical string forms.
package expr

import (
	"math/big"
	"sort"
	"strings"
)

// Expr is a node in an expression tree. Implementations are immutable;
// Simplify and Sub return new trees.
type Expr interface {
	// Simplify returns a canonical form: flattened sums and products,
	// folded numeric subterms, collected like terms.
	Simplify() Expr

	// String renders a stable canonical text form. Two simplified trees are
	// interchangeable iff their strings are equal.
	String() string

	// Sub substitutes value for every occurrence of the named symbol.
	Sub(name string, value Expr) Expr

	// Equal is structural equality.
	Equal(other Expr) bool

	exprNode()
}

// ============================================================
// Num — exact rational constant
// ============================================================

// Num is an exact rational number.
type Num struct{ val *big.Rat }

// N returns an integer constant.
func N(n int64) *Num { return &Num{val: new(big.Rat).SetInt64(n)} }

// Frac returns p/q.
func Frac(p, q int64) *Num {
	if q == 0 {
		panic("expr: zero denominator")
	}
	return &Num{val: new(big.Rat).SetFrac(big.NewInt(p), big.NewInt(q))}
}

// NumFromString parses an integer or decimal literal exactly.
func NumFromString(s string) (*Num, bool) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, false
	}
	return &Num{val: r}, true
}

func (n *Num) Simplify() Expr           { return n }
func (n *Num) Sub(string, Expr) Expr    { return n }
func (n *Num) Equal(other Expr) bool    { o, ok := other.(*Num); return ok && n.val.Cmp(o.val) == 0 }
func (n *Num) exprNode()                {}
func (n *Num) IsZero() bool             { return n.val.Sign() == 0 }
func (n *Num) IsOne() bool              { return n.val.Cmp(ratOne) == 0 }
func (n *Num) IsInteger() bool          { return n.val.IsInt() }
func (n *Num) IsNegative() bool         { return n.val.Sign() < 0 }
func (n *Num) Rat() *big.Rat            { return new(big.Rat).Set(n.val) }
func (n *Num) Float64() (float64, bool) { f, exact := n.val.Float64(); return f, exact }

var ratOne = new(big.Rat).SetInt64(1)

func (n *Num) String() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	return n.val.RatString()
}

func numAdd(a, b *Num) *Num { return &Num{val: new(big.Rat).Add(a.val, b.val)} }
func numMul(a, b *Num) *Num { return &Num{val: new(big.Rat).Mul(a.val, b.val)} }

// ============================================================
// Sym — named symbol
// ============================================================

// Sym is a named symbol. Non-commuting symbols keep their position in
// products.
type Sym struct {
	name      string
	commuting bool
}

// S returns a commuting symbol.
func S(name string) *Sym { return &Sym{name: name, commuting: true} }

// NC returns a non-commuting symbol.
func NC(name string) *Sym { return &Sym{name: name, commuting: false} }

func (s *Sym) Simplify() Expr  { return s }
func (s *Sym) String() string  { return s.name }
func (s *Sym) Name() string    { return s.name }
func (s *Sym) Commuting() bool { return s.commuting }
func (s *Sym) exprNode()       {}

func (s *Sym) Sub(name string, value Expr) Expr {
	if s.name == name {
		return value
	}
	return s
}

func (s *Sym) Equal(other Expr) bool {
	o, ok := other.(*Sym)
	return ok && s.name == o.name && s.commuting == o.commuting
}

// ============================================================
// Add — sum of terms
// ============================================================

// Add is a sum. Simplify collects like terms by canonical key, so exact
// cancellation reduces to zero.
type Add struct{ terms []Expr }

// AddOf builds a simplified sum.
func AddOf(terms ...Expr) Expr { return (&Add{terms: terms}).Simplify() }

// Terms exposes the summands.
func (a *Add) Terms() []Expr { return a.terms }

func (a *Add) Simplify() Expr {
	var flat []Expr
	for _, t := range a.terms {
		s := t.Simplify()
		if inner, ok := s.(*Add); ok {
			flat = append(flat, inner.terms...)
		} else {
			flat = append(flat, s)
		}
	}

	constant := N(0)
	type bucket struct {
		coeff *Num
		body  Expr
	}
	var order []string
	buckets := map[string]*bucket{}

	for _, t := range flat {
		if n, ok := t.(*Num); ok {
			constant = numAdd(constant, n)
			continue
		}
		coeff, body := splitCoeff(t)
		key := body.String()
		b, seen := buckets[key]
		if !seen {
			b = &bucket{coeff: N(0), body: body}
			buckets[key] = b
			order = append(order, key)
		}
		b.coeff = numAdd(b.coeff, coeff)
	}

	var result []Expr
	for _, key := range order {
		b := buckets[key]
		switch {
		case b.coeff.IsZero():
		case b.coeff.IsOne():
			result = append(result, b.body)
		default:
			result = append(result, mulWithCoeff(b.coeff, b.body))
		}
	}
	if !constant.IsZero() {
		result = append(result, constant)
	}

	switch len(result) {
	case 0:
		return N(0)
	case 1:
		return result[0]
	}
	return &Add{terms: result}
}

// splitCoeff separates a numeric leading coefficient from the rest of a term.
func splitCoeff(e Expr) (*Num, Expr) {
	m, ok := e.(*Mul)
	if !ok {
		return N(1), e
	}
	if len(m.factors) > 0 {
		if n, isNum := m.factors[0].(*Num); isNum {
			rest := m.factors[1:]
			if len(rest) == 1 {
				return n, rest[0]
			}
			return n, &Mul{factors: rest}
		}
	}
	return N(1), m
}

// mulWithCoeff reattaches a collected coefficient without re-sorting.
func mulWithCoeff(coeff *Num, body Expr) Expr {
	if m, ok := body.(*Mul); ok {
		fs := append([]Expr{coeff}, m.factors...)
		return &Mul{factors: fs}
	}
	return &Mul{factors: []Expr{coeff, body}}
}

func (a *Add) String() string {
	if len(a.terms) == 0 {
		return "0"
	}
	parts := make([]string, len(a.terms))
	for i, t := range a.terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " + ")
}

func (a *Add) Sub(name string, value Expr) Expr {
	out := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		out[i] = t.Sub(name, value)
	}
	return AddOf(out...)
}

func (a *Add) Equal(other Expr) bool {
	o, ok := other.(*Add)
	if !ok || len(a.terms) != len(o.terms) {
		return false
	}
	for i := range a.terms {
		if !a.terms[i].Equal(o.terms[i]) {
			return false
		}
	}
	return true
}

func (a *Add) exprNode() {}

// ============================================================
// Mul — product of factors
// ============================================================

// Mul is a product. Commuting factors are sorted into a canonical order;
// non-commuting factors keep their relative order and sit after the
// commuting ones (scalars commute past operators).
type Mul struct{ factors []Expr }

// MulOf builds a simplified product.
func MulOf(factors ...Expr) Expr { return (&Mul{factors: factors}).Simplify() }

// Factors exposes the factor list.
func (m *Mul) Factors() []Expr { return m.factors }

func (m *Mul) Simplify() Expr {
	var flat []Expr
	for _, f := range m.factors {
		s := f.Simplify()
		if inner, ok := s.(*Mul); ok {
			flat = append(flat, inner.factors...)
		} else {
			flat = append(flat, s)
		}
	}

	coeff := N(1)
	var commuting []Expr
	var noncommuting []Expr
	for _, f := range flat {
		switch {
		case isNum(f):
			coeff = numMul(coeff, f.(*Num))
		case IsNonCommuting(f):
			noncommuting = append(noncommuting, f)
		default:
			commuting = append(commuting, f)
		}
	}
	if coeff.IsZero() {
		return N(0)
	}

	sort.SliceStable(commuting, func(i, j int) bool {
		return commuting[i].String() < commuting[j].String()
	})

	rest := append(commuting, noncommuting...)
	if len(rest) == 0 {
		return coeff
	}
	if coeff.IsOne() {
		if len(rest) == 1 {
			return rest[0]
		}
		return &Mul{factors: rest}
	}
	return &Mul{factors: append([]Expr{coeff}, rest...)}
}

func isNum(e Expr) bool { _, ok := e.(*Num); return ok }

func (m *Mul) String() string {
	if len(m.factors) == 0 {
		return "1"
	}
	parts := make([]string, len(m.factors))
	for i, f := range m.factors {
		if _, isAdd := f.(*Add); isAdd {
			parts[i] = "(" + f.String() + ")"
		} else {
			parts[i] = f.String()
		}
	}
	return strings.Join(parts, "*")
}

func (m *Mul) Sub(name string, value Expr) Expr {
	out := make([]Expr, len(m.factors))
	for i, f := range m.factors {
		out[i] = f.Sub(name, value)
	}
	return MulOf(out...)
}

func (m *Mul) Equal(other Expr) bool {
	o, ok := other.(*Mul)
	if !ok || len(m.factors) != len(o.factors) {
		return false
	}
	for i := range m.factors {
		if !m.factors[i].Equal(o.factors[i]) {
			return false
		}
	}
	return true
}

func (m *Mul) exprNode() {}

// ============================================================
// Pow — base^exponent
// ============================================================

// Pow is exponentiation.
type Pow struct{ base, exp Expr }

// PowOf builds a simplified power.
func PowOf(base, exp Expr) Expr { return (&Pow{base: base, exp: exp}).Simplify() }

// Base returns the base.
func (p *Pow) Base() Expr { return p.base }

// Exp returns the exponent.
func (p *Pow) Exp() Expr { return p.exp }

func (p *Pow) Simplify() Expr {
	base := p.base.Simplify()
	exp := p.exp.Simplify()

	if en, ok := exp.(*Num); ok {
		if en.IsZero() {
			return N(1)
		}
		if en.IsOne() {
			return base
		}
		if bn, ok2 := base.(*Num); ok2 && en.IsInteger() {
			e := en.val.Num().Int64()
			if e >= -20 && e <= 20 && !(bn.IsZero() && e <= 0) {
				return numIntPow(bn, e)
			}
		}
	}
	if bn, ok := base.(*Num); ok {
		if bn.IsZero() {
			// 0^x for symbolic x left alone; handled above for numeric.
			return &Pow{base: base, exp: exp}
		}
		if bn.IsOne() {
			return N(1)
		}
	}
	if inner, ok := base.(*Pow); ok {
		return PowOf(inner.base, MulOf(inner.exp, exp))
	}
	return &Pow{base: base, exp: exp}
}

func numIntPow(b *Num, e int64) *Num {
	neg := e < 0
	if neg {
		e = -e
	}
	result := N(1)
	for i := int64(0); i < e; i++ {
		result = numMul(result, b)
	}
	if neg {
		return &Num{val: new(big.Rat).Inv(result.val)}
	}
	return result
}

func (p *Pow) String() string {
	baseStr := p.base.String()
	switch p.base.(type) {
	case *Add, *Mul, *Pow, *Num:
		if n, ok := p.base.(*Num); !ok || !n.IsInteger() || n.IsNegative() {
			baseStr = "(" + baseStr + ")"
		}
	}
	expStr := p.exp.String()
	switch p.exp.(type) {
	case *Add, *Mul, *Pow:
		expStr = "(" + expStr + ")"
	case *Num:
		if n := p.exp.(*Num); !n.IsInteger() || n.IsNegative() {
			expStr = "(" + expStr + ")"
		}
	}
	return baseStr + "^" + expStr
}

func (p *Pow) Sub(name string, value Expr) Expr {
	return PowOf(p.base.Sub(name, value), p.exp.Sub(name, value))
}

func (p *Pow) Equal(other Expr) bool {
	o, ok := other.(*Pow)
	return ok && p.base.Equal(o.base) && p.exp.Equal(o.exp)
}

func (p *Pow) exprNode() {}

// ============================================================
// Func — named function application
// ============================================================

// Func is a named function applied to arguments: builtins (sin, ln, ...) or
// declared function symbols, which may be non-commuting operators.
type Func struct {
	name      string
	args      []Expr
	commuting bool
}

// FuncOf builds a commuting (ordinary) function application.
func FuncOf(name string, args ...Expr) Expr {
	return (&Func{name: name, args: args, commuting: true}).Simplify()
}

// NCFuncOf builds a non-commuting operator application.
func NCFuncOf(name string, args ...Expr) Expr {
	return (&Func{name: name, args: args, commuting: false}).Simplify()
}

// FuncName returns the applied name.
func (f *Func) FuncName() string { return f.name }

// Args returns the argument list.
func (f *Func) Args() []Expr { return f.args }

// Commuting reports whether the application commutes in products.
func (f *Func) Commuting() bool { return f.commuting }

func (f *Func) Simplify() Expr {
	args := make([]Expr, len(f.args))
	for i, a := range f.args {
		args[i] = a.Simplify()
	}
	return &Func{name: f.name, args: args, commuting: f.commuting}
}

func (f *Func) String() string {
	parts := make([]string, len(f.args))
	for i, a := range f.args {
		parts[i] = a.String()
	}
	return f.name + "(" + strings.Join(parts, ", ") + ")"
}

func (f *Func) Sub(name string, value Expr) Expr {
	args := make([]Expr, len(f.args))
	for i, a := range f.args {
		args[i] = a.Sub(name, value)
	}
	return (&Func{name: f.name, args: args, commuting: f.commuting}).Simplify()
}

func (f *Func) Equal(other Expr) bool {
	o, ok := other.(*Func)
	if !ok || f.name != o.name || f.commuting != o.commuting || len(f.args) != len(o.args) {
		return false
	}
	for i := range f.args {
		if !f.args[i].Equal(o.args[i]) {
			return false
		}
	}
	return true
}

func (f *Func) exprNode() {}

// ============================================================
// Dagger — adjoint of an operator
// ============================================================

// Dagger is the adjoint of a non-commuting operator. Its operand is opaque to
// leaf collection: Dagger(c) counts as one leaf, not two.
type Dagger struct{ op Expr }

// DaggerOf wraps an operator in an adjoint.
func DaggerOf(op Expr) Expr { return (&Dagger{op: op}).Simplify() }

// Op returns the wrapped operator.
func (d *Dagger) Op() Expr { return d.op }

func (d *Dagger) Simplify() Expr {
	op := d.op.Simplify()
	// Dagger(Dagger(x)) = x.
	if inner, ok := op.(*Dagger); ok {
		return inner.op
	}
	return &Dagger{op: op}
}

func (d *Dagger) String() string { return "Dagger(" + d.op.String() + ")" }

func (d *Dagger) Sub(name string, value Expr) Expr {
	return (&Dagger{op: d.op.Sub(name, value)}).Simplify()
}

func (d *Dagger) Equal(other Expr) bool {
	o, ok := other.(*Dagger)
	return ok && d.op.Equal(o.op)
}

func (d *Dagger) exprNode() {}

// ============================================================
// Shared queries
// ============================================================

// IsNonCommuting reports whether e contains a non-commuting leaf anywhere.
func IsNonCommuting(e Expr) bool {
	switch v := e.(type) {
	case *Sym:
		return !v.commuting
	case *Dagger:
		return true
	case *Func:
		if !v.commuting {
			return true
		}
		for _, a := range v.args {
			if IsNonCommuting(a) {
				return true
			}
		}
		return false
	case *Add:
		for _, t := range v.terms {
			if IsNonCommuting(t) {
				return true
			}
		}
		return false
	case *Mul:
		for _, f := range v.factors {
			if IsNonCommuting(f) {
				return true
			}
		}
		return false
	case *Pow:
		return IsNonCommuting(v.base) || IsNonCommuting(v.exp)
	}
	return false
}

// FreeSymbols returns the names of all symbols appearing in e.
func FreeSymbols(e Expr) map[string]struct{} {
	out := map[string]struct{}{}
	collectSymbols(e, out)
	return out
}

func collectSymbols(e Expr, out map[string]struct{}) {
	switch v := e.(type) {
	case *Sym:
		out[v.name] = struct{}{}
	case *Add:
		for _, t := range v.terms {
			collectSymbols(t, out)
		}
	case *Mul:
		for _, f := range v.factors {
			collectSymbols(f, out)
		}
	case *Pow:
		collectSymbols(v.base, out)
		collectSymbols(v.exp, out)
	case *Func:
		for _, a := range v.args {
			collectSymbols(a, out)
		}
	case *Dagger:
		collectSymbols(v.op, out)
	}
}

// NonCommutingLeaves collects the non-commuting operator leaves of e in first
// encounter order. It does not recurse into a Dagger operand, so an adjoint
// counts as its own leaf.
func NonCommutingLeaves(e Expr) []Expr {
	var out []Expr
	seen := map[string]bool{}
	var visit func(Expr)
	visit = func(e Expr) {
		switch v := e.(type) {
		case *Sym:
			if !v.commuting && !seen[v.String()] {
				seen[v.String()] = true
				out = append(out, v)
			}
		case *Func:
			if !v.commuting {
				if !seen[v.String()] {
					seen[v.String()] = true
					out = append(out, v)
				}
				return
			}
			for _, a := range v.args {
				visit(a)
			}
		case *Dagger:
			// Opaque: record nothing inside, nothing for the wrapper. The
			// rule generator pairs each leaf with its own adjoint.
			if inner := baseOperator(v.op); inner != nil {
				if !seen[inner.String()] {
					seen[inner.String()] = true
					out = append(out, inner)
				}
			}
		case *Add:
			for _, t := range v.terms {
				visit(t)
			}
		case *Mul:
			for _, f := range v.factors {
				visit(f)
			}
		case *Pow:
			visit(v.base)
			visit(v.exp)
		}
	}
	visit(e)
	return out
}

// baseOperator returns the operator leaf under a dagger, or nil if the
// operand is not a leaf.
func baseOperator(e Expr) Expr {
	switch v := e.(type) {
	case *Sym:
		if !v.commuting {
			return v
		}
	case *Func:
		if !v.commuting {
			return v
		}
	}
	return nil
}

// Substitute replaces the named symbols in e with the given values.
func Substitute(e Expr, env map[string]Expr) Expr {
	names := make([]string, 0, len(env))
	for n := range env {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		e = e.Sub(n, env[n])
	}
	return e
}

// Expand distributes products over sums throughout e, preserving the order
// of non-commuting factors.
func Expand(e Expr) Expr { return expandExpr(e).Simplify() }

func expandExpr(e Expr) Expr {
	switch v := e.(type) {
	case *Mul:
		factors := make([]Expr, len(v.factors))
		for i, f := range v.factors {
			factors[i] = expandExpr(f)
		}
		// Distribute left to right so operator order is preserved.
		terms := []([]Expr){{}}
		for _, f := range factors {
			if a, ok := f.(*Add); ok {
				var grown [][]Expr
				for _, t := range terms {
					for _, at := range a.terms {
						row := make([]Expr, len(t), len(t)+1)
						copy(row, t)
						grown = append(grown, append(row, at))
					}
				}
				terms = grown
				continue
			}
			for i := range terms {
				terms[i] = append(terms[i], f)
			}
		}
		if len(terms) == 1 {
			return MulOf(terms[0]...)
		}
		sum := make([]Expr, len(terms))
		for i, t := range terms {
			sum[i] = expandExpr(MulOf(t...))
		}
		return AddOf(sum...)
	case *Add:
		out := make([]Expr, len(v.terms))
		for i, t := range v.terms {
			out[i] = expandExpr(t)
		}
		return AddOf(out...)
	case *Pow:
		if n, ok := v.exp.(*Num); ok && n.IsInteger() {
			e := n.val.Num().Int64()
			if e >= 2 && e <= 10 {
				base := expandExpr(v.base)
				result := base
				for i := int64(1); i < e; i++ {
					result = expandExpr(MulOf(result, base))
				}
				return result
			}
		}
		return PowOf(expandExpr(v.base), expandExpr(v.exp))
	case *Dagger:
		return DaggerOf(expandExpr(v.op))
	case *Func:
		args := make([]Expr, len(v.args))
		for i, a := range v.args {
			args[i] = expandExpr(a)
		}
		return (&Func{name: v.name, args: args, commuting: v.commuting}).Simplify()
	}
	return e
}

// Neg returns -e.
func Neg(e Expr) Expr { return MulOf(N(-1), e) }

// SubtractOf returns a - b, simplified.
func SubtractOf(a, b Expr) Expr { return AddOf(a, Neg(b)) }
