package diff

import "github.com/eykd/prosemark-elements/internal/model"

// Widen expands r so that both versions of the range start and end inside
// the same parent node, which is what a flat replace step requires. The
// range grows to whole children of the deepest ancestor shared by all three
// endpoints. Positions are relative to the content of oldDoc and newDoc.
//
// The prefix before r.Start is identical in both documents, as is the
// suffix after the ends, so growing the start moves it identically in both
// and growing the old end by k grows the new end by the same k.
func Widen(oldDoc, newDoc *model.Node, r Range) (Range, error) {
	rs, err := oldDoc.Resolve(r.Start)
	if err != nil {
		return r, err
	}
	re, err := oldDoc.Resolve(r.OldEnd)
	if err != nil {
		return r, err
	}
	ne, err := newDoc.Resolve(r.NewEnd)
	if err != nil {
		return r, err
	}
	if flat(rs, re) && flat(rs, ne) {
		return r, nil
	}
	depth := min(rs.SharedDepth(r.OldEnd), re.Depth(), ne.Depth())
	for ; depth >= 0; depth-- {
		w := Range{Start: r.Start, OldEnd: r.OldEnd, NewEnd: r.NewEnd}
		if rs.Depth() > depth {
			w.Start = rs.Before(depth + 1)
		}
		if re.Depth() > depth {
			grow := re.After(depth+1) - r.OldEnd
			w.OldEnd += grow
			w.NewEnd += grow
		}
		if ok, err := sameParent(oldDoc, newDoc, w); err != nil {
			return r, err
		} else if ok {
			return w, nil
		}
	}
	return Range{Start: 0, OldEnd: oldDoc.Content.Size(), NewEnd: newDoc.Content.Size()}, nil
}

func flat(a, b *model.ResolvedPos) bool {
	d := a.Depth()
	return b.Depth() == d && a.Start(d) == b.Start(d)
}

func sameParent(oldDoc, newDoc *model.Node, r Range) (bool, error) {
	rs, err := oldDoc.Resolve(r.Start)
	if err != nil {
		return false, err
	}
	re, err := oldDoc.Resolve(r.OldEnd)
	if err != nil {
		return false, err
	}
	ns, err := newDoc.Resolve(r.Start)
	if err != nil {
		return false, err
	}
	ne, err := newDoc.Resolve(r.NewEnd)
	if err != nil {
		return false, err
	}
	return flat(rs, re) && flat(ns, ne) && rs.Depth() == ns.Depth(), nil
}
