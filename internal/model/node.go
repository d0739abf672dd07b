package model

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Node is an immutable document node. Text nodes carry Text and Marks and
// have an empty Content; every other node carries Content.
type Node struct {
	Type    *NodeType
	Attrs   Attrs
	Content *Fragment
	Text    string
	Marks   []Mark
}

// IsText reports whether n is a text node.
func (n *Node) IsText() bool { return n.Type.IsText() }

// IsLeaf reports whether n admits no content.
func (n *Node) IsLeaf() bool { return n.Type.IsLeaf() }

// Size returns the number of positions the node occupies in its parent.
func (n *Node) Size() int {
	switch {
	case n.IsText():
		return utf8.RuneCountInString(n.Text)
	case n.IsLeaf():
		return 1
	default:
		return n.Content.Size() + 2
	}
}

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int { return n.Content.ChildCount() }

// Child returns the direct child at index i.
func (n *Node) Child(i int) *Node { return n.Content.Child(i) }

// MaybeChild returns the direct child at index i, or nil.
func (n *Node) MaybeChild(i int) *Node { return n.Content.MaybeChild(i) }

// Attr returns the named attribute value.
func (n *Node) Attr(name string) any { return n.Attrs[name] }

// TextContent concatenates all text in the subtree.
func (n *Node) TextContent() string {
	if n.IsText() {
		return n.Text
	}
	return n.Content.TextContent()
}

// SameMarkup reports whether two nodes share type, attributes and marks.
func (n *Node) SameMarkup(o *Node) bool {
	return n.Type == o.Type && n.Attrs.Eq(o.Attrs) && SameMarks(n.Marks, o.Marks)
}

// Eq reports structural equality: same markup and equal content.
func (n *Node) Eq(o *Node) bool {
	if n == o {
		return true
	}
	if n == nil || o == nil || !n.SameMarkup(o) {
		return false
	}
	if n.IsText() {
		return n.Text == o.Text
	}
	return n.Content.Eq(o.Content)
}

// Copy returns a node with the same markup and the given content.
func (n *Node) Copy(content *Fragment) *Node {
	if content == n.Content {
		return n
	}
	return &Node{Type: n.Type, Attrs: n.Attrs, Content: content, Marks: n.Marks}
}

// WithAttrs returns a node with the same content and new attributes.
func (n *Node) WithAttrs(attrs Attrs) *Node {
	return &Node{Type: n.Type, Attrs: attrs, Content: n.Content, Text: n.Text, Marks: n.Marks}
}

// WithMarks returns a node with the given marks.
func (n *Node) WithMarks(marks []Mark) *Node {
	return &Node{Type: n.Type, Attrs: n.Attrs, Content: n.Content, Text: n.Text, Marks: sortMarks(marks)}
}

func (n *Node) withText(text string) *Node {
	return &Node{Type: n.Type, Attrs: n.Attrs, Text: text, Marks: n.Marks}
}

// Cut returns the part of the node between from and to. For text nodes the
// bounds are rune offsets; otherwise they are content positions.
func (n *Node) Cut(from, to int) *Node {
	if n.IsText() {
		runes := []rune(n.Text)
		if from <= 0 && to >= len(runes) {
			return n
		}
		return n.withText(string(runes[max(0, from):min(len(runes), to)]))
	}
	if from <= 0 && to >= n.Content.Size() {
		return n
	}
	return n.Copy(n.Content.Cut(from, to))
}

// Slice returns the content between two positions of n, cut from the
// deepest node that contains both. For positions that share a parent this
// is exactly the content a flat replace needs. Out of range positions
// yield the empty fragment.
func (n *Node) Slice(from, to int) *Fragment {
	r, err := n.Resolve(from)
	if err != nil || to < from || to > n.Content.Size() {
		return Empty()
	}
	d := r.SharedDepth(to)
	start := r.Start(d)
	return r.Node(d).Content.Cut(from-start, to-start)
}

// NodeAt returns the node that starts directly after pos, or nil.
func (n *Node) NodeAt(pos int) *Node {
	node := n
	for {
		index, offset := node.Content.FindIndex(pos)
		node = node.MaybeChild(index)
		if node == nil {
			return nil
		}
		if offset == pos || node.IsText() {
			return node
		}
		pos -= offset + 1
	}
}

// Descendants walks every descendant in document order. fn receives the
// node, its absolute position, its parent and its index; returning false
// skips the node's children.
func (n *Node) Descendants(fn func(child *Node, pos int, parent *Node, index int) bool) {
	n.descend(0, fn)
}

func (n *Node) descend(base int, fn func(*Node, int, *Node, int) bool) {
	n.Content.ForEach(func(child *Node, offset, index int) {
		pos := base + offset
		if fn(child, pos, n, index) && child.Content.Size() > 0 {
			child.descend(pos+1, fn)
		}
	})
}

// Check verifies the node and its descendants against their types.
func (n *Node) Check() error {
	if n.IsText() {
		return nil
	}
	if !n.Type.ValidContent(n.Content) {
		return fmt.Errorf("%w: %s cannot hold %s", ErrInvalidContent, n.Type.Name, n.Content)
	}
	for _, child := range n.Content.Children() {
		if err := child.Check(); err != nil {
			return err
		}
	}
	return nil
}

// String returns a debugging representation.
func (n *Node) String() string {
	if n.IsText() {
		s := fmt.Sprintf("%q", n.Text)
		for i := len(n.Marks) - 1; i >= 0; i-- {
			s = n.Marks[i].Type.Name + "(" + s + ")"
		}
		return s
	}
	if n.Content.Size() == 0 && n.ChildCount() == 0 {
		return n.Type.Name
	}
	parts := make([]string, 0, n.ChildCount())
	for _, c := range n.Content.Children() {
		parts = append(parts, c.String())
	}
	return n.Type.Name + "(" + strings.Join(parts, ", ") + ")"
}
