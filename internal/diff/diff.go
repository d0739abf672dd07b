// Package diff finds the smallest range that differs between two versions of
// a document's content, so a nested surface can be patched in place instead
// of being replaced wholesale.
package diff

import (
	"fmt"

	"github.com/eykd/prosemark-elements/internal/model"
)

// Range is a differing region. [Start, OldEnd) in the old content is
// replaced by [Start, NewEnd) of the new content.
type Range struct {
	Start  int
	OldEnd int
	NewEnd int
}

// String returns a debugging representation.
func (r Range) String() string {
	return fmt.Sprintf("diff(%d, %d→%d)", r.Start, r.OldEnd, r.NewEnd)
}

// Diff compares old and new and returns the differing range, or nil when
// they are structurally identical.
//
// When the content around the change is repetitive the prefix and suffix
// scans can claim the same characters, which would leave the range
// inverted. Both ends are then pushed forward by the overlap so that
// Start <= OldEnd and Start <= NewEnd always hold.
func Diff(old, new *model.Fragment) *Range {
	start, ok := FindDiffStart(old, new, 0)
	if !ok {
		return nil
	}
	oldEnd, newEnd, ok := FindDiffEnd(old, new, old.Size(), new.Size())
	if !ok {
		// Unreachable for differing fragments; treat as a full replace.
		oldEnd, newEnd = old.Size(), new.Size()
	}
	if overlap := start - min(oldEnd, newEnd); overlap > 0 {
		oldEnd += overlap
		newEnd += overlap
	}
	return &Range{Start: start, OldEnd: oldEnd, NewEnd: newEnd}
}

// FindDiffStart returns the first position, counting from pos, at which a
// and b differ. ok is false when they are identical.
func FindDiffStart(a, b *model.Fragment, pos int) (int, bool) {
	for i := 0; ; i++ {
		if i == a.ChildCount() || i == b.ChildCount() {
			if a.ChildCount() == b.ChildCount() {
				return 0, false
			}
			return pos, true
		}
		childA, childB := a.Child(i), b.Child(i)
		if childA == childB {
			pos += childA.Size()
			continue
		}
		if !childA.SameMarkup(childB) {
			return pos, true
		}
		if childA.IsText() {
			if childA.Text != childB.Text {
				ra, rb := []rune(childA.Text), []rune(childB.Text)
				for j := 0; j < len(ra) && j < len(rb) && ra[j] == rb[j]; j++ {
					pos++
				}
				return pos, true
			}
		} else if childA.Content.Size() > 0 || childB.Content.Size() > 0 {
			if inner, ok := FindDiffStart(childA.Content, childB.Content, pos+1); ok {
				return inner, true
			}
		}
		pos += childA.Size()
	}
}

// FindDiffEnd scans a and b backwards from posA and posB (their sizes, for
// a top-level call) and returns the positions in each where they start to
// differ. ok is false when they are identical.
func FindDiffEnd(a, b *model.Fragment, posA, posB int) (endA, endB int, ok bool) {
	iA, iB := a.ChildCount(), b.ChildCount()
	for {
		if iA == 0 || iB == 0 {
			if iA == iB {
				return 0, 0, false
			}
			return posA, posB, true
		}
		iA--
		iB--
		childA, childB := a.Child(iA), b.Child(iB)
		size := childA.Size()
		if childA == childB {
			posA -= size
			posB -= size
			continue
		}
		if !childA.SameMarkup(childB) {
			return posA, posB, true
		}
		if childA.IsText() {
			if childA.Text != childB.Text {
				ra, rb := []rune(childA.Text), []rune(childB.Text)
				same, minSize := 0, min(len(ra), len(rb))
				for same < minSize && ra[len(ra)-same-1] == rb[len(rb)-same-1] {
					same++
					posA--
					posB--
				}
				return posA, posB, true
			}
		} else if childA.Content.Size() > 0 || childB.Content.Size() > 0 {
			if ia, ib, ok := FindDiffEnd(childA.Content, childB.Content, posA-1, posB-1); ok {
				return ia, ib, true
			}
		}
		posA -= size
		posB -= childB.Size()
	}
}
