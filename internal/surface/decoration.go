package surface

import (
	"fmt"
	"sort"
)

// Decoration annotates [From, To) of a surface's content without changing
// it. From == To is a point (widget) decoration.
type Decoration struct {
	From int
	To   int
	Data any
}

func (d Decoration) String() string { return fmt.Sprintf("deco(%d-%d, %v)", d.From, d.To, d.Data) }

// DecorationSource is anything that yields a flat list of decorations.
// Both a DecorationSet and a DecorationGroup are sources.
type DecorationSource interface {
	Flatten() []Decoration
}

// DecorationSet is a flat, ordered list of decorations.
type DecorationSet []Decoration

// NewDecorationSet builds an ordered set.
func NewDecorationSet(decos ...Decoration) DecorationSet {
	out := append(DecorationSet(nil), decos...)
	sortDecorations(out)
	return out
}

// Flatten implements DecorationSource.
func (s DecorationSet) Flatten() []Decoration { return append([]Decoration(nil), s...) }

// DecorationGroup aggregates several sources.
type DecorationGroup []DecorationSource

// Flatten implements DecorationSource.
func (g DecorationGroup) Flatten() []Decoration {
	var out []Decoration
	for _, src := range g {
		if src != nil {
			out = append(out, src.Flatten()...)
		}
	}
	sortDecorations(out)
	return out
}

func sortDecorations(d []Decoration) {
	sort.SliceStable(d, func(i, j int) bool {
		if d[i].From != d[j].From {
			return d[i].From < d[j].From
		}
		return d[i].To < d[j].To
	})
}

// ProjectInward re-expresses src, given in the parent's coordinates, in the
// local space of an inner surface whose anchored node starts at
// ownerOffset. Decorations are shifted by -(ownerOffset + ContentOffset);
// those entirely outside [0, limit] are dropped and partial ones clipped.
func ProjectInward(src DecorationSource, ownerOffset, limit int) DecorationSet {
	if src == nil {
		return nil
	}
	shift := ownerOffset + ContentOffset
	var out DecorationSet
	for _, d := range src.Flatten() {
		from, to := d.From-shift, d.To-shift
		if from == to {
			if from < 0 || from > limit {
				continue
			}
		} else if to <= 0 || from >= limit {
			continue
		}
		out = append(out, Decoration{From: max(0, from), To: min(limit, to), Data: d.Data})
	}
	sortDecorations(out)
	return out
}

// ProjectOutward is the inverse of ProjectInward.
func ProjectOutward(src DecorationSource, ownerOffset int) DecorationSet {
	if src == nil {
		return nil
	}
	shift := ownerOffset + ContentOffset
	var out DecorationSet
	for _, d := range src.Flatten() {
		out = append(out, Decoration{From: d.From + shift, To: d.To + shift, Data: d.Data})
	}
	sortDecorations(out)
	return out
}
