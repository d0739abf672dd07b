package element

import (
	"log/slog"

	"github.com/eykd/prosemark-elements/internal/field"
	"github.com/eykd/prosemark-elements/internal/model"
	"github.com/eykd/prosemark-elements/internal/state"
)

// Repeater manages the children of one repeater node in a document. Every
// operation either returns a transaction holding a single replace step or
// reports false and leaves the document alone.
type Repeater struct {
	builder *Builder
	getPos  func() (int, bool)
	log     *slog.Logger
}

// NewRepeater returns a manager for the repeater node that getPos locates.
// getPos reports the position before the repeater node and is asked
// again on every operation.
func NewRepeater(b *Builder, getPos func() (int, bool), log *slog.Logger) *Repeater {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Repeater{builder: b, getPos: getPos, log: log}
}

// RepeaterAt returns a manager for the repeater node at the fixed position pos.
func RepeaterAt(b *Builder, pos int) *Repeater {
	return NewRepeater(b, func() (int, bool) { return pos, true }, nil)
}

type located struct {
	pos  int
	node *model.Node
	desc field.Description
}

func (r *Repeater) locate(doc *model.Node) (located, bool) {
	pos, ok := r.getPos()
	if !ok {
		return located{}, false
	}
	n := doc.NodeAt(pos)
	if n == nil {
		return located{}, false
	}
	res, err := doc.Resolve(pos)
	if err != nil {
		return located{}, false
	}
	holder := res.Parent().Type.Name
	fs, ok := r.builder.reg.sets[holder]
	if !ok {
		return located{}, false
	}
	for i, name := range fs.nodeNames {
		if name == n.Type.Name && fs.fields[i].Kind == field.KindRepeater {
			return located{pos: pos, node: n, desc: fs.fields[i].Description}, true
		}
	}
	r.log.Debug("no repeater at position", "pos", pos, "type", n.Type.Name)
	return located{}, false
}

// Len returns the number of children, or 0 when no repeater is found.
func (r *Repeater) Len(st *state.EditorState) int {
	l, ok := r.locate(st.Doc)
	if !ok {
		return 0
	}
	return l.node.ChildCount()
}

// IDs returns the children's identity tokens in order.
func (r *Repeater) IDs(st *state.EditorState) []string {
	l, ok := r.locate(st.Doc)
	if !ok {
		return nil
	}
	ids := make([]string, 0, l.node.ChildCount())
	for _, c := range l.node.Content.Children() {
		id, _ := c.Attr(AttrID).(string)
		ids = append(ids, id)
	}
	return ids
}

// RemoveDisabled reports whether removing a child would break the floor.
func (r *Repeater) RemoveDisabled(st *state.EditorState) bool {
	l, ok := r.locate(st.Doc)
	if !ok {
		return true
	}
	return l.node.ChildCount() <= l.desc.Min()
}

// childStart returns the position before child i of the located repeater.
func (l located) childStart(i int) int {
	return l.pos + 1 + l.node.Content.Offset(i)
}

// AddChildAfter inserts a child populated with default values after child
// index. An index of -1 inserts at the front.
func (r *Repeater) AddChildAfter(st *state.EditorState, index int) (*state.Transaction, bool) {
	l, ok := r.locate(st.Doc)
	if !ok || index < -1 || index >= l.node.ChildCount() {
		return nil, false
	}
	child, err := r.builder.Child(l.node.Type.Name, field.DefaultValues(l.desc.Fields), UsedIDs(st.Doc))
	if err != nil {
		r.log.Error("build repeater child", "err", err)
		return nil, false
	}
	tr := st.Tr()
	if err := tr.Insert(l.childStart(index+1), child); err != nil {
		r.log.Error("insert repeater child", "err", err)
		return nil, false
	}
	return tr, true
}

// RemoveChildAt removes child index unless that would leave fewer children
// than the floor.
func (r *Repeater) RemoveChildAt(st *state.EditorState, index int) (*state.Transaction, bool) {
	l, ok := r.locate(st.Doc)
	if !ok || index < 0 || index >= l.node.ChildCount() {
		return nil, false
	}
	if l.node.ChildCount()-1 < l.desc.Min() {
		return nil, false
	}
	tr := st.Tr()
	if err := tr.Delete(l.childStart(index), l.childStart(index+1)); err != nil {
		r.log.Error("remove repeater child", "err", err)
		return nil, false
	}
	return tr, true
}

// MoveChildUp swaps child index with the one before it.
func (r *Repeater) MoveChildUp(st *state.EditorState, index int) (*state.Transaction, bool) {
	return r.swap(st, index-1)
}

// MoveChildDown swaps child index with the one after it.
func (r *Repeater) MoveChildDown(st *state.EditorState, index int) (*state.Transaction, bool) {
	return r.swap(st, index)
}

// swap exchanges children i and i+1 with one replace over both.
func (r *Repeater) swap(st *state.EditorState, i int) (*state.Transaction, bool) {
	l, ok := r.locate(st.Doc)
	if !ok || i < 0 || i+1 >= l.node.ChildCount() {
		return nil, false
	}
	a, b := l.node.Child(i), l.node.Child(i+1)
	tr := st.Tr()
	if err := tr.Replace(l.childStart(i), l.childStart(i+2), model.NewFragment(b, a)); err != nil {
		r.log.Error("move repeater child", "err", err)
		return nil, false
	}
	return tr, true
}
