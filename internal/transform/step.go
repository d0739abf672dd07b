package transform

import (
	"errors"
	"fmt"

	"github.com/eykd/prosemark-elements/internal/model"
)

// ErrStepFailed is wrapped by every step application failure.
var ErrStepFailed = errors.New("transform: step failed")

// Step is an atomic document change. It applies only to the document it was
// created for, since its positions are relative to that document.
type Step interface {
	// Apply returns the transformed document or an error wrapping ErrStepFailed.
	Apply(doc *model.Node) (*model.Node, error)

	// GetMap returns the position map describing the change.
	GetMap() *StepMap

	// Invert returns the step that undoes this one. doc is the document
	// before the step.
	Invert(doc *model.Node) Step

	// Map returns the step with positions translated through m, or false
	// when the step's range no longer corresponds to anything.
	Map(m Mappable) (Step, bool)
}

// ReplaceStep replaces the range [From, To) with Content. Both ends must lie
// in the same parent node; Content is a closed fragment of that parent's
// children.
type ReplaceStep struct {
	From, To int
	Content  *model.Fragment
}

// NewReplaceStep builds a replace step.
func NewReplaceStep(from, to int, content *model.Fragment) *ReplaceStep {
	if content == nil {
		content = model.Empty()
	}
	return &ReplaceStep{From: from, To: to, Content: content}
}

// Apply implements Step.
func (s *ReplaceStep) Apply(doc *model.Node) (*model.Node, error) {
	return replaceFlat(doc, s.From, s.To, s.Content)
}

// GetMap implements Step.
func (s *ReplaceStep) GetMap() *StepMap {
	return NewStepMap(s.From, s.To-s.From, s.Content.Size())
}

// Invert implements Step.
func (s *ReplaceStep) Invert(doc *model.Node) Step {
	return NewReplaceStep(s.From, s.From+s.Content.Size(), doc.Slice(s.From, s.To))
}

// Map implements Step.
func (s *ReplaceStep) Map(m Mappable) (Step, bool) {
	from := m.MapResult(s.From, 1)
	to := m.MapResult(s.To, -1)
	if from.Deleted && to.Deleted {
		return nil, false
	}
	return NewReplaceStep(from.Pos, max(from.Pos, to.Pos), s.Content), true
}

// String returns a debugging representation.
func (s *ReplaceStep) String() string {
	return fmt.Sprintf("replace(%d, %d, %s)", s.From, s.To, s.Content)
}

// AttrStep replaces the attributes (and optionally the type) of the node
// that starts at Pos, keeping its content.
type AttrStep struct {
	Pos   int
	Type  *model.NodeType // nil keeps the current type
	Attrs model.Attrs
}

// Apply implements Step.
func (s *AttrStep) Apply(doc *model.Node) (*model.Node, error) {
	node := doc.NodeAt(s.Pos)
	if node == nil || node.IsText() {
		return nil, fmt.Errorf("%w: no node at %d to set markup on", ErrStepFailed, s.Pos)
	}
	nt := s.Type
	if nt == nil {
		nt = node.Type
	}
	updated, err := nt.Create(s.Attrs, node.Content, node.Marks)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStepFailed, err)
	}
	return replaceFlat(doc, s.Pos, s.Pos+node.Size(), model.NewFragment(updated))
}

// GetMap implements Step. Markup changes keep every position in place.
func (s *AttrStep) GetMap() *StepMap { return EmptyStepMap }

// Invert implements Step.
func (s *AttrStep) Invert(doc *model.Node) Step {
	node := doc.NodeAt(s.Pos)
	if node == nil {
		return s
	}
	return &AttrStep{Pos: s.Pos, Type: node.Type, Attrs: node.Attrs}
}

// Map implements Step.
func (s *AttrStep) Map(m Mappable) (Step, bool) {
	r := m.MapResult(s.Pos, 1)
	if r.Deleted {
		return nil, false
	}
	return &AttrStep{Pos: r.Pos, Type: s.Type, Attrs: s.Attrs}, true
}

// String returns a debugging representation.
func (s *AttrStep) String() string {
	return fmt.Sprintf("attrs(%d, %v)", s.Pos, s.Attrs)
}

// replaceFlat replaces [from, to) in doc with content when both positions
// share a parent, rebuilding the ancestor chain.
func replaceFlat(doc *model.Node, from, to int, content *model.Fragment) (*model.Node, error) {
	if from > to {
		return nil, fmt.Errorf("%w: inverted range %d > %d", ErrStepFailed, from, to)
	}
	rFrom, err := doc.Resolve(from)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStepFailed, err)
	}
	rTo, err := doc.Resolve(to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStepFailed, err)
	}
	depth := rFrom.Depth()
	if rTo.Depth() != depth || rFrom.Start(depth) != rTo.Start(depth) {
		return nil, fmt.Errorf("%w: range %d-%d crosses node boundaries", ErrStepFailed, from, to)
	}
	parent := rFrom.Parent()
	inner := parent.Content.Cut(0, rFrom.ParentOffset).
		Append(content).
		Append(parent.Content.Cut(rTo.ParentOffset, parent.Content.Size()))
	if !parent.Type.ValidContent(inner) {
		return nil, fmt.Errorf("%w: %w: %s cannot hold %s", ErrStepFailed, model.ErrInvalidContent, parent.Type.Name, inner)
	}
	node := parent.Copy(inner)
	for d := depth - 1; d >= 0; d-- {
		anc := rFrom.Node(d)
		node = anc.Copy(anc.Content.ReplaceChild(rFrom.Index(d), node))
	}
	return node, nil
}
