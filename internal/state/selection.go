// Package state holds the editing session state for one surface: its
// document, selection, stored marks and plugin states, advanced only by
// applying transactions.
package state

import (
	"fmt"

	"github.com/eykd/prosemark-elements/internal/model"
	"github.com/eykd/prosemark-elements/internal/transform"
)

// Selection is a text selection between Anchor (the fixed side) and Head
// (the side that moves).
type Selection struct {
	Anchor int
	Head   int
}

// Cursor returns an empty selection at pos.
func Cursor(pos int) Selection { return Selection{Anchor: pos, Head: pos} }

// From returns the lower bound of the selection.
func (s Selection) From() int { return min(s.Anchor, s.Head) }

// To returns the upper bound of the selection.
func (s Selection) To() int { return max(s.Anchor, s.Head) }

// Empty reports whether the selection is a cursor.
func (s Selection) Empty() bool { return s.Anchor == s.Head }

// Eq reports whether two selections cover the same anchor and head.
func (s Selection) Eq(o Selection) bool { return s == o }

// Map translates the selection through m and clamps it to doc.
func (s Selection) Map(doc *model.Node, m transform.Mappable) Selection {
	limit := doc.Content.Size()
	clamp := func(pos int) int { return max(0, min(limit, pos)) }
	return Selection{Anchor: clamp(m.Map(s.Anchor, 1)), Head: clamp(m.Map(s.Head, 1))}
}

// String returns a debugging representation.
func (s Selection) String() string {
	if s.Empty() {
		return fmt.Sprintf("cursor(%d)", s.Head)
	}
	return fmt.Sprintf("text(%d-%d)", s.Anchor, s.Head)
}

// AtStart returns a cursor at the first position in doc that can hold text,
// or at 0 when there is none.
func AtStart(doc *model.Node) Selection {
	if doc.Type.ContentExpr().CanContain(model.TextTypeName) {
		return Cursor(0)
	}
	pos := -1
	doc.Descendants(func(n *model.Node, p int, _ *model.Node, _ int) bool {
		if pos >= 0 {
			return false
		}
		if !n.IsText() && n.Type.ContentExpr().CanContain(model.TextTypeName) {
			pos = p + 1
			return false
		}
		return true
	})
	if pos < 0 {
		return Cursor(0)
	}
	return Cursor(pos)
}

// AtEnd returns a cursor at the end of doc's content.
func AtEnd(doc *model.Node) Selection {
	return Cursor(doc.Content.Size())
}
