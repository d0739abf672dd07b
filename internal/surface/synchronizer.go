package surface

import (
	"fmt"
	"log/slog"

	"github.com/eykd/prosemark-elements/internal/diff"
	"github.com/eykd/prosemark-elements/internal/model"
	"github.com/eykd/prosemark-elements/internal/state"
)

// Dispatcher is the outer surface as seen by a Synchronizer.
type Dispatcher interface {
	State() *state.EditorState
	Dispatch(tr *state.Transaction) error
}

// Anchor binds an inner surface to its place in the outer document.
// GetPosition returns the position before the owning node, or false once
// the node is detached. Offset is the fixed distance from that position to
// the anchored node.
type Anchor struct {
	GetPosition func() (int, bool)
	Offset      int
}

// Synchronizer owns one inner surface and keeps it consistent with the
// node that anchors it in the outer surface. It is Active until Destroy,
// after which it is Closed for good.
type Synchronizer struct {
	node   *model.Node
	anchor Anchor
	outer  Dispatcher
	inner  *Surface
	closed bool
	log    *slog.Logger
}

// NewSynchronizer creates an inner surface whose document is node.
func NewSynchronizer(node *model.Node, anchor Anchor, outer Dispatcher, opts ...Option) *Synchronizer {
	c := newConfig(opts)
	s := &Synchronizer{node: node, anchor: anchor, outer: outer, log: c.logger}
	s.inner = New(state.Create(state.Config{Doc: node}),
		WithLogger(c.logger),
		WithDispatch(s.DispatchInner))
	return s
}

// Node returns the anchored node the synchronizer was last updated with.
func (s *Synchronizer) Node() *model.Node { return s.node }

// Inner returns the inner surface.
func (s *Synchronizer) Inner() *Surface { return s.inner }

// Offset returns the current anchor offset.
func (s *Synchronizer) Offset() int { return s.anchor.Offset }

// Closed reports whether Destroy was called.
func (s *Synchronizer) Closed() bool { return s.closed }

// Mapper returns the position mapper for the current anchor position, or
// false when the anchor is detached.
func (s *Synchronizer) Mapper() (OffsetMapper, bool) {
	pos, ok := s.anchor.GetPosition()
	if !ok {
		return OffsetMapper{}, false
	}
	return NewOffsetMapper(pos, s.anchor.Offset, s.inner.State().Doc.Content.Size()), true
}

// Update brings the inner surface in line with node, the new version of the
// anchored node, at offset. decos are in outer document coordinates.
//
// It returns false when node cannot be patched into the current inner
// surface (a different type or attributes) or the synchronizer is closed;
// the caller must then destroy it and build a new one.
func (s *Synchronizer) Update(node *model.Node, offset int, decos DecorationSource) bool {
	if s.closed {
		s.log.Warn("update on closed synchronizer", "type", node.Type.Name)
		return false
	}
	if !node.SameMarkup(s.node) {
		return false
	}
	s.node = node
	s.anchor.Offset = offset

	cur := s.inner.State()
	if pos, ok := s.anchor.GetPosition(); ok {
		s.inner.SetDecorations(ProjectInward(decos, pos+offset, node.Content.Size()))
	}

	r := diff.Diff(cur.Doc.Content, node.Content)
	if r == nil {
		return true
	}
	tr := cur.Tr()
	if err := s.patch(tr, cur.Doc, node, *r); err != nil {
		s.log.Error("structural update could not be patched", "type", node.Type.Name, "range", r.String(), "err", err)
		return false
	}
	tr.SetMeta(state.MetaFromOutside, true)
	tr.SetMeta(state.MetaAddToHistory, false)
	if cur.StoredMarks != nil {
		tr.SetStoredMarks(cur.StoredMarks)
	}
	if err := s.inner.Dispatch(tr); err != nil {
		s.log.Error("structural update failed", "type", node.Type.Name, "err", err)
		return false
	}
	return true
}

// patch replaces the differing range, widened to a flat replace, falling
// back to a full content replace when that is not applicable.
func (s *Synchronizer) patch(tr *state.Transaction, oldDoc, newDoc *model.Node, r diff.Range) error {
	w, err := diff.Widen(oldDoc, newDoc, r)
	if err == nil {
		if err = tr.Replace(w.Start, w.OldEnd, newDoc.Slice(w.Start, w.NewEnd)); err == nil {
			return nil
		}
	}
	s.log.Debug("falling back to full replace", "range", r.String(), "err", err)
	return tr.Replace(0, oldDoc.Content.Size(), newDoc.Content)
}

// DispatchInner is the inner surface's dispatch. The transaction is applied
// locally first. Unless it came from a structural update, its steps and
// selection are then projected into one outer transaction, which is
// dispatched only when it changes the outer document or selection.
func (s *Synchronizer) DispatchInner(tr *state.Transaction) error {
	if s.closed {
		s.log.Warn("dispatch on closed synchronizer")
		return ErrClosed
	}
	if _, err := s.inner.Apply(tr); err != nil {
		return fmt.Errorf("apply inner transaction: %w", err)
	}
	if tr.IsFromOutside() {
		return nil
	}
	pos, ok := s.anchor.GetPosition()
	if !ok {
		s.log.Debug("anchor detached, not projecting inner transaction")
		return nil
	}

	outerTr := s.outer.State().Tr()
	for i, step := range tr.Steps {
		m := NewOffsetMapper(pos, s.anchor.Offset, tr.Docs[i].Content.Size())
		mapped, ok := step.Map(m)
		if !ok {
			continue
		}
		if err := outerTr.Step(mapped); err != nil {
			return fmt.Errorf("project inner step: %w", err)
		}
	}
	inner := s.inner.State()
	m := NewOffsetMapper(pos, s.anchor.Offset, inner.Doc.Content.Size())
	sel := state.Selection{Anchor: m.Forward(inner.Selection.Anchor), Head: m.Forward(inner.Selection.Head)}
	if !outerTr.Selection().Eq(sel) {
		outerTr.SetSelection(sel)
	}
	if !outerTr.DocChanged() && !outerTr.SelectionSet() {
		return nil
	}
	if err := s.outer.Dispatch(outerTr); err != nil {
		return fmt.Errorf("dispatch outer transaction: %w", err)
	}
	return nil
}

// Destroy tears down the inner surface. It is idempotent and safe to call
// at any point, including from within an update.
func (s *Synchronizer) Destroy() {
	if s.closed {
		return
	}
	s.closed = true
	s.inner.Destroy()
}
