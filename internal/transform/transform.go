package transform

import (
	"fmt"

	"github.com/eykd/prosemark-elements/internal/model"
)

// Transform accumulates steps against a starting document.
type Transform struct {
	Before  *model.Node
	Doc     *model.Node
	Steps   []Step
	Docs    []*model.Node // document before each step
	Mapping *Mapping
}

// New starts a transform on doc.
func New(doc *model.Node) *Transform {
	return &Transform{Before: doc, Doc: doc, Mapping: NewMapping()}
}

// DocChanged reports whether any step has been applied.
func (t *Transform) DocChanged() bool { return len(t.Steps) > 0 }

// Step applies step and records it. The transform is unchanged on error.
func (t *Transform) Step(step Step) error {
	doc, err := step.Apply(t.Doc)
	if err != nil {
		return err
	}
	t.Docs = append(t.Docs, t.Doc)
	t.Steps = append(t.Steps, step)
	t.Mapping.AppendMap(step.GetMap())
	t.Doc = doc
	return nil
}

// Replace replaces [from, to) with content.
func (t *Transform) Replace(from, to int, content *model.Fragment) error {
	if from == to && content.Size() == 0 {
		return nil
	}
	return t.Step(NewReplaceStep(from, to, content))
}

// Delete removes [from, to).
func (t *Transform) Delete(from, to int) error {
	return t.Replace(from, to, model.Empty())
}

// Insert inserts nodes at pos.
func (t *Transform) Insert(pos int, nodes ...*model.Node) error {
	return t.Replace(pos, pos, model.NewFragment(nodes...))
}

// InsertText inserts text with the given marks over [from, to).
func (t *Transform) InsertText(text string, from, to int, marks ...model.Mark) error {
	schema := t.Doc.Type.Schema
	return t.Replace(from, to, model.NewFragment(schema.Text(text, marks...)))
}

// SetNodeMarkup changes the type (nil keeps it) and attributes of the node at pos.
func (t *Transform) SetNodeMarkup(pos int, nt *model.NodeType, attrs model.Attrs) error {
	if t.Doc.NodeAt(pos) == nil {
		return fmt.Errorf("%w: no node at %d", ErrStepFailed, pos)
	}
	return t.Step(&AttrStep{Pos: pos, Type: nt, Attrs: attrs})
}
