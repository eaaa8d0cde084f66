// Package extract locates the boxed answer payload in a raw model response
// and splits it into sub-answers. An answer is either a singleton, an ordered
// list ([a;b]) or an unordered set ({a;b}).
package extract

import (
	"fmt"
	"strings"
)

// Error reports a failure to extract an answer payload.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func errorf(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// Kind distinguishes how sub-answers are compared.
type Kind int

const (
	// KindSet compares members without regard to order.
	KindSet Kind = iota
	// KindList compares members positionally.
	KindList
)

func (k Kind) String() string {
	if k == KindList {
		return "list"
	}
	return "set"
}

// Collection is an extracted answer payload typed by bracket style.
type Collection struct {
	Kind  Kind
	Items []string

	// Explicit is set when the payload was literally braced or bracketed,
	// as opposed to a bare expression typed as a singleton set.
	Explicit bool
}

// boxMarkers are the recognized answer-box commands. The payload follows
// immediately as a balanced-brace group.
var boxMarkers = []string{"boxed{", "fbox{"}

// findBox returns the index just after the opening brace of the next box
// marker at or after start, or -1.
func findBox(s string, start int) int {
	best := -1
	for _, m := range boxMarkers {
		if i := strings.Index(s[start:], m); i >= 0 {
			pos := start + i + len(m)
			if best == -1 || pos < best {
				best = pos
			}
		}
	}
	return best
}

// Payload returns the contents of the single boxed environment in raw.
// Zero boxes, more than one box, unbalanced braces, and an empty payload are
// all extraction errors.
func Payload(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errorf("empty answer text")
	}

	open := findBox(raw, 0)
	if open < 0 {
		return "", errorf("no boxed answer found in response")
	}

	depth := 1
	i := open
	for i < len(raw) && depth > 0 {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
		}
		i++
	}
	if depth != 0 {
		return "", errorf("unbalanced braces in boxed answer")
	}

	payload := raw[open : i-1]
	if strings.TrimSpace(payload) == "" {
		return "", errorf("empty boxed answer")
	}

	if next := findBox(raw, i); next >= 0 {
		return "", errorf("multiple boxed answers found in response")
	}

	return payload, nil
}

// splitParts splits a payload on ';', trims each part, and rejects empties.
func splitParts(payload string) ([]string, error) {
	parts := strings.Split(payload, ";")
	out := make([]string, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, errorf("empty answer part at index %d", i)
		}
		out[i] = p
	}
	return out, nil
}

// Answer extracts the boxed payload and splits it into trimmed sub-answers.
func Answer(raw string) ([]string, error) {
	payload, err := Payload(raw)
	if err != nil {
		return nil, err
	}
	return splitParts(payload)
}

// Answers extracts sub-answers from an already-unboxed payload string. Used
// when the reference answer is supplied bare rather than inside a box.
func Answers(payload string) ([]string, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, errorf("empty answer payload")
	}
	return splitParts(payload)
}

// ParseCollection types an extracted payload by its enclosing brackets:
// {a;b} is a set, [a;b] is a list, anything else is a singleton set.
func ParseCollection(payload string) (Collection, error) {
	payload = strings.TrimSpace(payload)
	switch {
	case strings.HasPrefix(payload, "{") && strings.HasSuffix(payload, "}"):
		items, err := splitParts(payload[1 : len(payload)-1])
		if err != nil {
			return Collection{}, err
		}
		return Collection{Kind: KindSet, Items: items, Explicit: true}, nil
	case strings.HasPrefix(payload, "[") && strings.HasSuffix(payload, "]"):
		items, err := splitParts(payload[1 : len(payload)-1])
		if err != nil {
			return Collection{}, err
		}
		return Collection{Kind: KindList, Items: items, Explicit: true}, nil
	default:
		if payload == "" {
			return Collection{}, errorf("empty answer payload")
		}
		return Collection{Kind: KindSet, Items: []string{payload}}, nil
	}
}

// BoxedCollection extracts the boxed payload and types it as a collection.
func BoxedCollection(raw string) (Collection, error) {
	payload, err := Payload(raw)
	if err != nil {
		return Collection{}, err
	}
	return ParseCollection(strings.TrimSpace(payload))
}
