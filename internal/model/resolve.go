package model

import "fmt"

type resolvedStep struct {
	node   *Node
	index  int
	before int // absolute position before child index
}

// ResolvedPos is a position annotated with the path of ancestors that
// contain it. Depth 0 is the node Resolve was called on.
type ResolvedPos struct {
	Pos          int
	ParentOffset int
	path         []resolvedStep
}

// Resolve annotates pos, which must lie within n's content.
func (n *Node) Resolve(pos int) (*ResolvedPos, error) {
	if pos < 0 || pos > n.Content.Size() {
		return nil, fmt.Errorf("%w: %d not in [0, %d]", ErrPositionOutOfRange, pos, n.Content.Size())
	}
	var path []resolvedStep
	start := 0
	parentOffset := pos
	for node := n; ; {
		index, offset := node.Content.FindIndex(parentOffset)
		rem := parentOffset - offset
		path = append(path, resolvedStep{node: node, index: index, before: start + offset})
		if rem == 0 {
			break
		}
		node = node.Child(index)
		if node.IsText() {
			break
		}
		parentOffset = rem - 1
		start += offset + 1
	}
	return &ResolvedPos{Pos: pos, ParentOffset: parentOffset, path: path}, nil
}

// Depth returns the depth of the innermost node containing the position.
func (r *ResolvedPos) Depth() int { return len(r.path) - 1 }

// Node returns the ancestor at depth d.
func (r *ResolvedPos) Node(d int) *Node { return r.path[d].node }

// Parent returns the innermost node containing the position.
func (r *ResolvedPos) Parent() *Node { return r.Node(r.Depth()) }

// Index returns the child index into the ancestor at depth d.
func (r *ResolvedPos) Index(d int) int { return r.path[d].index }

// Start returns the absolute position where the content of the ancestor at
// depth d begins.
func (r *ResolvedPos) Start(d int) int {
	if d == 0 {
		return 0
	}
	return r.path[d-1].before + 1
}

// End returns the absolute position where the content of the ancestor at
// depth d ends.
func (r *ResolvedPos) End(d int) int {
	return r.Start(d) + r.Node(d).Content.Size()
}

// Before returns the absolute position directly before the ancestor at depth d (d > 0).
func (r *ResolvedPos) Before(d int) int { return r.path[d-1].before }

// After returns the absolute position directly after the ancestor at depth d (d > 0).
func (r *ResolvedPos) After(d int) int { return r.Before(d) + r.Node(d).Size() }

// SharedDepth returns the depth of the deepest ancestor that contains both
// this position and pos.
func (r *ResolvedPos) SharedDepth(pos int) int {
	for d := r.Depth(); d > 0; d-- {
		if r.Start(d) <= pos && r.End(d) >= pos {
			return d
		}
	}
	return 0
}

// TextOffset returns the offset into the text node the position points
// into, or 0 when it sits between nodes.
func (r *ResolvedPos) TextOffset() int {
	last := r.path[len(r.path)-1]
	return r.Pos - last.before
}

// NodeAfter returns the node directly after the position, or nil.
func (r *ResolvedPos) NodeAfter() *Node {
	parent := r.Parent()
	index := r.Index(r.Depth())
	if index == parent.ChildCount() {
		return nil
	}
	child := parent.Child(index)
	if off := r.TextOffset(); off > 0 {
		return child.Cut(off, child.Size())
	}
	return child
}
