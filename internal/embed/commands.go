package embed

import (
	"github.com/eykd/prosemark-elements/internal/model"
	"github.com/eykd/prosemark-elements/internal/state"
	"github.com/eykd/prosemark-elements/internal/surface"
)

// Command is an operation offered on an element. With run false it only
// reports whether the operation is possible; with run true it performs it
// and reports whether it succeeded.
type Command func(run bool) bool

// Commands are the operations a host UI offers on one element.
type Commands struct {
	MoveUp     Command
	MoveDown   Command
	MoveTop    Command
	MoveBottom Command
	Remove     Command
}

// Commands returns the commands for the element that getPos locates in
// d's document. Positions are read fresh on every call.
func (e *Embed) Commands(d surface.Dispatcher, getPos func() (int, bool)) Commands {
	cmd := func(build func(*state.EditorState, sibling) (*state.Transaction, bool)) Command {
		return func(run bool) bool {
			st := d.State()
			sib, ok := e.siblingAt(st.Doc, getPos)
			if !ok {
				return false
			}
			tr, ok := build(st, sib)
			if !ok || !run {
				return ok
			}
			if err := d.Dispatch(tr); err != nil {
				e.log.Error("element command", "pos", sib.pos, "err", err)
				return false
			}
			return true
		}
	}
	return Commands{
		MoveUp:     cmd(func(st *state.EditorState, s sibling) (*state.Transaction, bool) { return e.move(st, s, s.index-1) }),
		MoveDown:   cmd(func(st *state.EditorState, s sibling) (*state.Transaction, bool) { return e.move(st, s, s.index+1) }),
		MoveTop:    cmd(func(st *state.EditorState, s sibling) (*state.Transaction, bool) { return e.move(st, s, 0) }),
		MoveBottom: cmd(func(st *state.EditorState, s sibling) (*state.Transaction, bool) { return e.move(st, s, s.parent.ChildCount()-1) }),
		Remove:     cmd(e.remove),
	}
}

// CommandsAt returns the commands for the element at the fixed position pos.
func (e *Embed) CommandsAt(d surface.Dispatcher, pos int) Commands {
	return e.Commands(d, func() (int, bool) { return pos, true })
}

// sibling is an element node located within its parent.
type sibling struct {
	pos    int
	node   *model.Node
	parent *model.Node
	start  int // position of the parent's content start
	index  int
}

func (e *Embed) siblingAt(doc *model.Node, getPos func() (int, bool)) (sibling, bool) {
	pos, ok := getPos()
	if !ok {
		return sibling{}, false
	}
	n := doc.NodeAt(pos)
	if n == nil || !e.reg.IsElement(n.Type.Name) {
		return sibling{}, false
	}
	r, err := doc.Resolve(pos)
	if err != nil {
		return sibling{}, false
	}
	d := r.Depth()
	return sibling{pos: pos, node: n, parent: r.Parent(), start: r.Start(d), index: r.Index(d)}, true
}

// move rebuilds the run of siblings between the element and index target
// with the element at target, as one replace step.
func (e *Embed) move(st *state.EditorState, s sibling, target int) (*state.Transaction, bool) {
	if target < 0 || target >= s.parent.ChildCount() || target == s.index {
		return nil, false
	}
	lo, hi := min(s.index, target), max(s.index, target)
	var nodes []*model.Node
	for i := lo; i <= hi; i++ {
		if i != s.index {
			nodes = append(nodes, s.parent.Child(i))
		}
	}
	if target < s.index {
		nodes = append([]*model.Node{s.node}, nodes...)
	} else {
		nodes = append(nodes, s.node)
	}
	from := s.start + s.parent.Content.Offset(lo)
	to := s.start + s.parent.Content.Offset(hi+1)
	tr := st.Tr()
	if err := tr.Replace(from, to, model.NewFragment(nodes...)); err != nil {
		e.log.Debug("move element", "from", s.index, "to", target, "err", err)
		return nil, false
	}
	return tr, true
}

func (e *Embed) remove(st *state.EditorState, s sibling) (*state.Transaction, bool) {
	tr := st.Tr()
	if err := tr.Delete(s.pos, s.pos+s.node.Size()); err != nil {
		e.log.Debug("remove element", "pos", s.pos, "err", err)
		return nil, false
	}
	return tr, true
}
