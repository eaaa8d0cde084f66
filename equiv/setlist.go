package equiv

import (
	"github.com/c360studio/mathcheck/extract"
)

// Predicate decides pairwise equivalence of two collection elements.
type Predicate func(a, b string) (bool, error)

// Collections compares two extracted collections under a pairwise predicate.
// Kinds and sizes must match. Lists compare positionally; sets use greedy
// first-match pairing, which assumes the predicate is consistent — under a
// floating-point tolerance it is not strictly transitive, so set verdicts can
// in principle depend on iteration order.
func Collections(left, right extract.Collection, pred Predicate) (Verdict, error) {
	if left.Kind != right.Kind {
		return unequal("collection kinds differ: %s vs %s", left.Kind, right.Kind), nil
	}
	if len(left.Items) != len(right.Items) {
		return unequal("collection sizes differ: %d vs %d", len(left.Items), len(right.Items)), nil
	}

	if left.Kind == extract.KindList {
		for i := range left.Items {
			ok, err := pred(left.Items[i], right.Items[i])
			if err != nil {
				return Verdict{}, err
			}
			if !ok {
				return unequal("list elements differ at position %d: %q vs %q",
					i, left.Items[i], right.Items[i]), nil
			}
		}
		return equal(), nil
	}

	remaining := append([]string(nil), right.Items...)
	for _, item := range left.Items {
		matched := -1
		for i, cand := range remaining {
			ok, err := pred(item, cand)
			if err != nil {
				return Verdict{}, err
			}
			if ok {
				matched = i
				break
			}
		}
		if matched < 0 {
			return unequal("no set element matches %q", item), nil
		}
		remaining = append(remaining[:matched], remaining[matched+1:]...)
	}
	return equal(), nil
}
