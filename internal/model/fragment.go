package model

import "strings"

// Fragment is an immutable, normalized sequence of nodes: adjacent text
// nodes with equal marks are merged and empty text nodes are dropped.
// A nil *Fragment behaves as the empty fragment.
type Fragment struct {
	nodes []*Node
	size  int
}

var emptyFragment = &Fragment{}

// Empty returns the empty fragment.
func Empty() *Fragment { return emptyFragment }

// NewFragment builds a normalized fragment from nodes. Nil nodes are skipped.
func NewFragment(nodes ...*Node) *Fragment {
	var out []*Node
	size := 0
	for _, n := range nodes {
		if n == nil || (n.IsText() && n.Text == "") {
			continue
		}
		if last := len(out) - 1; last >= 0 && n.IsText() && out[last].IsText() && SameMarks(out[last].Marks, n.Marks) {
			out[last] = out[last].withText(out[last].Text + n.Text)
			size += n.Size()
			continue
		}
		out = append(out, n)
		size += n.Size()
	}
	if len(out) == 0 {
		return emptyFragment
	}
	return &Fragment{nodes: out, size: size}
}

// Size returns the total size of the fragment's nodes.
func (f *Fragment) Size() int {
	if f == nil {
		return 0
	}
	return f.size
}

// ChildCount returns the number of top-level nodes.
func (f *Fragment) ChildCount() int {
	if f == nil {
		return 0
	}
	return len(f.nodes)
}

// Child returns the node at index i. It panics when i is out of range.
func (f *Fragment) Child(i int) *Node { return f.nodes[i] }

// MaybeChild returns the node at index i, or nil.
func (f *Fragment) MaybeChild(i int) *Node {
	if f == nil || i < 0 || i >= len(f.nodes) {
		return nil
	}
	return f.nodes[i]
}

// Children returns a copy of the fragment's node slice.
func (f *Fragment) Children() []*Node {
	if f == nil {
		return nil
	}
	return append([]*Node(nil), f.nodes...)
}

// ForEach calls fn for every child with its offset and index.
func (f *Fragment) ForEach(fn func(n *Node, offset, index int)) {
	if f == nil {
		return
	}
	pos := 0
	for i, n := range f.nodes {
		fn(n, pos, i)
		pos += n.Size()
	}
}

// Offset returns the offset of child index i.
func (f *Fragment) Offset(i int) int {
	pos := 0
	for j := 0; j < i && j < f.ChildCount(); j++ {
		pos += f.nodes[j].Size()
	}
	return pos
}

// Append concatenates two fragments, merging text at the seam.
func (f *Fragment) Append(other *Fragment) *Fragment {
	if other.Size() == 0 {
		return f
	}
	if f.Size() == 0 {
		return other
	}
	nodes := make([]*Node, 0, f.ChildCount()+other.ChildCount())
	nodes = append(nodes, f.nodes...)
	nodes = append(nodes, other.nodes...)
	return NewFragment(nodes...)
}

// Cut returns the part of the fragment between from and to.
func (f *Fragment) Cut(from, to int) *Fragment {
	if from <= 0 && to >= f.Size() {
		return f
	}
	var out []*Node
	if to > from {
		pos := 0
		for _, child := range f.nodes {
			if pos >= to {
				break
			}
			end := pos + child.Size()
			if end > from {
				if pos < from || end > to {
					if child.IsText() {
						child = child.Cut(max(0, from-pos), min(child.Size(), to-pos))
					} else {
						child = child.Cut(max(0, from-pos-1), min(child.Content.Size(), to-pos-1))
					}
				}
				out = append(out, child)
			}
			pos = end
		}
	}
	return NewFragment(out...)
}

// ReplaceChild returns a fragment with the child at index i replaced by n.
func (f *Fragment) ReplaceChild(i int, n *Node) *Fragment {
	nodes := f.Children()
	nodes[i] = n
	return NewFragment(nodes...)
}

// Eq reports structural equality.
func (f *Fragment) Eq(other *Fragment) bool {
	if f.ChildCount() != other.ChildCount() {
		return false
	}
	for i := 0; i < f.ChildCount(); i++ {
		if !f.nodes[i].Eq(other.nodes[i]) {
			return false
		}
	}
	return true
}

// FindIndex returns the index of the child that contains pos together with
// the offset of that child. A position on a child boundary resolves to the
// child after the boundary.
func (f *Fragment) FindIndex(pos int) (index, offset int) {
	if pos == 0 {
		return 0, 0
	}
	if pos == f.Size() {
		return f.ChildCount(), pos
	}
	cur := 0
	for i, child := range f.nodes {
		end := cur + child.Size()
		if end >= pos {
			if end == pos {
				return i + 1, end
			}
			return i, cur
		}
		cur = end
	}
	return f.ChildCount(), f.Size()
}

// TextContent concatenates the text of every descendant text node.
func (f *Fragment) TextContent() string {
	var b strings.Builder
	for _, n := range f.Children() {
		b.WriteString(n.TextContent())
	}
	return b.String()
}

// String returns a debugging representation.
func (f *Fragment) String() string {
	parts := make([]string, 0, f.ChildCount())
	for _, n := range f.Children() {
		parts = append(parts, n.String())
	}
	return "<" + strings.Join(parts, ", ") + ">"
}
