package normalize

import "strings"

// CanonicalizeScripts rewrites decorated identifiers into a single
// disambiguated token before the rewrite cascade runs. Subscripts and the
// allow-listed superscript annotations (dagger, prime) are folded into the
// identifier name itself, so c^\dagger_i and c_i^\dagger both become c_i_dag.
// Any other superscript is a genuine exponent and is re-attached as ^{...}
// after the canonical base. The function is idempotent.
func CanonicalizeScripts(s string) string {
	var out strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if isIdentStart(s, i) {
			tok, next := scanDecorated(s, i)
			out.WriteString(tok)
			i = next
			continue
		}
		out.WriteByte(c)
		i++
	}
	return out.String()
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// isIdentStart reports whether position i begins an identifier base: a letter
// or a backslash command followed by letters.
func isIdentStart(s string, i int) bool {
	if isLetter(s[i]) {
		return true
	}
	return s[i] == '\\' && i+1 < len(s) && isLetter(s[i+1])
}

// scanBase consumes a backslash command or a maximal letter run.
func scanBase(s string, i int) (string, int) {
	start := i
	if s[i] == '\\' {
		i++
	}
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	return s[start:i], i
}

// scanGroup consumes either a balanced {...} group (returning its contents),
// a balanced (...) group (returned with its parentheses, since those already
// delimit the group in canonical text), or a single modifier token: a
// backslash command, a letter run, a digit run, or one non-space character.
func scanGroup(s string, i int) (string, int) {
	if i >= len(s) {
		return "", i
	}
	if s[i] == '(' {
		depth := 1
		j := i + 1
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
			return s[i:], len(s)
		}
		return s[i:j], j
	}
	if s[i] == '{' {
		depth := 1
		j := i + 1
		for j < len(s) && depth > 0 {
			switch s[j] {
			case '{':
				depth++
			case '}':
				depth--
			}
			j++
		}
		if depth != 0 {
			// Unbalanced group; take the rest verbatim.
			return s[i+1:], len(s)
		}
		return s[i+1 : j-1], j
	}
	if s[i] == '\\' && i+1 < len(s) && isLetter(s[i+1]) {
		tok, j := scanBase(s, i)
		return tok, j
	}
	if isLetter(s[i]) || isDigit(s[i]) {
		j := i
		for j < len(s) && (isLetter(s[j]) || isDigit(s[j])) {
			// Single-token modifiers without braces: x_ab means base x with
			// subscript "ab" in practice, so take the full run.
			j++
		}
		return s[i:j], j
	}
	return string(s[i]), i + 1
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// cleanSegment flattens a subscript or annotation segment: braces, escapes,
// and spaces are dropped; commas separate multiple subscript parts upstream.
func cleanSegment(seg string) string {
	r := strings.NewReplacer("{", "", "}", "", "(", "", ")", "", "\\", "", " ", "")
	return r.Replace(seg)
}

// annotationKind classifies a superscript group. Dagger and prime marks fold
// into the identifier; anything else is a real exponent.
func annotationKind(content string) string {
	c := cleanSegment(content)
	switch c {
	case "dagger", "dag":
		return "dag"
	case "prime":
		return "prime"
	}
	if c != "" && strings.Trim(c, "'") == "" {
		return "prime"
	}
	return ""
}

// scanDecorated reads one decorated identifier starting at i and returns its
// canonical spelling plus the index after the consumed text.
func scanDecorated(s string, i int) (string, int) {
	base, j := scanBase(s, i)

	var subs []string
	var annots []string
	var exps []string
	seen := map[string]bool{}
	modified := false

	addSub := func(seg string) {
		seg = cleanSegment(seg)
		if seg == "" {
			return
		}
		// Repeated primes are meaningful (f'' vs f'); everything else
		// de-duplicates by first occurrence.
		if seg != "prime" && seen[seg] {
			return
		}
		seen[seg] = true
		subs = append(subs, seg)
	}

	for j < len(s) {
		switch {
		case s[j] == '\'':
			annots = append(annots, "prime")
			modified = true
			j++
		case s[j] == '_':
			group, next := scanGroup(s, j+1)
			for _, part := range splitTopLevel(group, ',') {
				addSub(part)
			}
			modified = true
			j = next
		case s[j] == '^':
			group, next := scanGroup(s, j+1)
			if kind := annotationKind(group); kind != "" {
				annots = append(annots, kind)
			} else {
				// Genuine exponent; canonicalize its interior too.
				exps = append(exps, CanonicalizeScripts(group))
			}
			modified = true
			j = next
		default:
			goto done
		}
	}
done:
	if !modified {
		return base, j
	}

	var b strings.Builder
	b.WriteString(base)
	for _, sub := range subs {
		b.WriteByte('_')
		b.WriteString(sub)
	}
	for _, a := range annots {
		b.WriteByte('_')
		b.WriteString(a)
	}
	for _, e := range exps {
		// Parenthesized exponents are already delimited; rewrapping them
		// in braces would double up once the cascade turns braces back
		// into parentheses.
		if strings.HasPrefix(e, "(") {
			b.WriteByte('^')
			b.WriteString(e)
			continue
		}
		b.WriteString("^{")
		b.WriteString(e)
		b.WriteString("}")
	}
	return b.String(), j
}

// splitTopLevel splits s on sep, ignoring separators nested inside braces or
// parentheses.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{', '(', '[':
			depth++
		case '}', ')', ']':
			depth--
		default:
			if s[i] == sep && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
