// Package symbols parses parameter and function declaration strings into a
// symbol table. The shared grammar supports plain names, (name, NC) markers
// for non-commuting symbols, and (letter, v1, v2, ...) index domains that
// expand templated names over the Cartesian product of their domains.
package symbols

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/c360studio/mathcheck/normalize"
)

// Error reports a malformed declaration string.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func errorf(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// Role distinguishes plain value symbols from applied functions.
type Role int

const (
	RoleParameter Role = iota
	RoleFunction
)

func (r Role) String() string {
	if r == RoleFunction {
		return "function"
	}
	return "parameter"
}

// Spec describes one declared symbol.
type Spec struct {
	Name      string
	Commuting bool
	Role      Role
}

// Table maps symbol names to specs. Built once per request, read-only after.
type Table struct {
	specs map[string]Spec
	order []string
}

// NewTable returns an empty symbol table.
func NewTable() *Table {
	return &Table{specs: map[string]Spec{}}
}

// add records a spec unless the name is already present (first wins).
func (t *Table) add(s Spec) {
	if _, ok := t.specs[s.Name]; ok {
		return
	}
	t.specs[s.Name] = s
	t.order = append(t.order, s.Name)
}

// Lookup returns the spec for name.
func (t *Table) Lookup(name string) (Spec, bool) {
	s, ok := t.specs[name]
	return s, ok
}

// Names returns all symbol names sorted lexicographically.
func (t *Table) Names() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	sort.Strings(out)
	return out
}

// Parameters returns the names of parameter-role symbols, sorted.
func (t *Table) Parameters() []string {
	var out []string
	for _, n := range t.order {
		if t.specs[n].Role == RoleParameter {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Functions returns the names of function-role symbols, sorted.
func (t *Table) Functions() []string {
	var out []string
	for _, n := range t.order {
		if t.specs[n].Role == RoleFunction {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Len reports the number of declared symbols.
func (t *Table) Len() int { return len(t.specs) }

// Build parses the two declaration strings into one table. Either string may
// be empty. Within a string, index domains apply only to that string's own
// templated names.
func Build(paramDecl, funcDecl string) (*Table, error) {
	t := NewTable()
	if err := parseDecl(paramDecl, RoleParameter, t); err != nil {
		return nil, err
	}
	if err := parseDecl(funcDecl, RoleFunction, t); err != nil {
		return nil, err
	}
	return t, nil
}

var (
	// (name, NC): name may carry braces and commas but no nested parens.
	ncMarkerRe = regexp.MustCompile(`\(([^()]*?),\s*NC\s*\)`)
	// (letter, v1, v2, ...): a single index letter and its domain values.
	indexDomainRe = regexp.MustCompile(`\(\s*\\?([A-Za-z])\s*,([^()]*)\)`)
)

func parseDecl(decl string, role Role, t *Table) error {
	decl = strings.ReplaceAll(decl, "$", "")
	if strings.TrimSpace(decl) == "" {
		return nil
	}

	// Non-commuting markers come out first; their payloads are declarations
	// in their own right.
	var ncNames []string
	decl = ncMarkerRe.ReplaceAllStringFunc(decl, func(m string) string {
		sub := ncMarkerRe.FindStringSubmatch(m)
		ncNames = append(ncNames, canonicalName(sub[1]))
		return ""
	})

	// Index domains next. Anything still parenthesized after this point is a
	// grammar error.
	domains := map[string][]string{}
	decl = indexDomainRe.ReplaceAllStringFunc(decl, func(m string) string {
		sub := indexDomainRe.FindStringSubmatch(m)
		letter := sub[1]
		var values []string
		for _, v := range strings.Split(sub[2], ",") {
			v = canonicalName(v)
			if v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			// Recorded as malformed below by leaving the text in place.
			return m
		}
		if _, dup := domains[letter]; dup {
			return m
		}
		domains[letter] = values
		return ""
	})
	if strings.ContainsAny(decl, "()") {
		return errorf("malformed declaration %q: unparsed parenthesized group", decl)
	}

	var tokens []string
	for _, part := range strings.Split(decl, ";") {
		for _, tok := range strings.Split(part, ",") {
			name := canonicalName(tok)
			if name != "" {
				tokens = append(tokens, name)
			}
		}
	}
	tokens = append(tokens, ncNames...)

	ncSet := map[string]bool{}
	for _, name := range ncNames {
		for _, expanded := range expandName(name, domains) {
			ncSet[expanded] = true
		}
	}

	for _, name := range tokens {
		for _, expanded := range expandName(name, domains) {
			t.add(Spec{
				Name:      expanded,
				Commuting: !ncSet[expanded],
				Role:      role,
			})
		}
	}
	return nil
}

// canonicalName folds scripts and strips markup from a declaration token.
func canonicalName(tok string) string {
	tok = normalize.CanonicalizeScripts(strings.TrimSpace(tok))
	r := strings.NewReplacer("\\", "", "{", "", "}", "", " ", "")
	return r.Replace(tok)
}

// expandName substitutes declared index letters appearing as whole subscript
// segments of name, one expansion per element of the Cartesian product of the
// matching domains. A letter matching only part of a segment never expands.
func expandName(name string, domains map[string][]string) []string {
	segs := strings.Split(name, "_")

	// Collect the positions of templated segments, in order of appearance.
	// The base segment is not a subscript and never expands.
	type slot struct {
		pos    int
		values []string
	}
	var slots []slot
	for i := 1; i < len(segs); i++ {
		if vals, ok := domains[segs[i]]; ok {
			slots = append(slots, slot{pos: i, values: vals})
		}
	}
	if len(slots) == 0 {
		return []string{name}
	}

	var out []string
	idx := make([]int, len(slots))
	for {
		gen := make([]string, len(segs))
		copy(gen, segs)
		for k, s := range slots {
			gen[s.pos] = s.values[idx[k]]
		}
		out = append(out, strings.Join(gen, "_"))

		// Odometer advance, last slot fastest.
		k := len(slots) - 1
		for k >= 0 {
			idx[k]++
			if idx[k] < len(slots[k].values) {
				break
			}
			idx[k] = 0
			k--
		}
		if k < 0 {
			break
		}
	}

	// First occurrence wins if substitution produced duplicates.
	seen := map[string]bool{}
	uniq := out[:0]
	for _, n := range out {
		if !seen[n] {
			seen[n] = true
			uniq = append(uniq, n)
		}
	}
	return uniq
}
