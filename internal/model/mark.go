package model

import "sort"

// Mark is an inline annotation (emphasis, link) attached to text.
type Mark struct {
	Type  *MarkType
	Attrs Attrs
}

// Eq reports whether two marks have the same type and attributes.
func (m Mark) Eq(o Mark) bool {
	return m.Type == o.Type && m.Attrs.Eq(o.Attrs)
}

// IsInSet reports whether m appears in set.
func (m Mark) IsInSet(set []Mark) bool {
	for _, o := range set {
		if m.Eq(o) {
			return true
		}
	}
	return false
}

// SameMarks reports whether two mark sets are equal.
func SameMarks(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Eq(b[i]) {
			return false
		}
	}
	return true
}

// sortMarks returns marks ordered by schema rank, the canonical order used
// for equality.
func sortMarks(marks []Mark) []Mark {
	if len(marks) == 0 {
		return nil
	}
	out := append([]Mark(nil), marks...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Type.rank < out[j].Type.rank })
	return out
}
