package embed

import (
	"github.com/eykd/prosemark-elements/internal/element"
	"github.com/eykd/prosemark-elements/internal/model"
	"github.com/eykd/prosemark-elements/internal/state"
	"github.com/eykd/prosemark-elements/internal/surface"
)

// Host mounts one element view per element node of an outer surface and
// keeps the set in step with the surface's document.
type Host struct {
	e      *Embed
	outer  *surface.Surface
	mounts []*hostMount
	stop   func()
	closed bool
}

// hostMount is a mounted element view. pos is refreshed after every state
// change; detached is set once the element leaves the document.
type hostMount struct {
	pos      int
	detached bool
	view     *element.View
}

func (m *hostMount) getPos() (int, bool) {
	if m.detached {
		return 0, false
	}
	return m.pos, true
}

// NewHost mounts views for every element in outer's document and follows
// its state from then on.
func (e *Embed) NewHost(outer *surface.Surface) *Host {
	h := &Host{e: e, outer: outer}
	h.sync(outer.State(), nil)
	h.stop = outer.Subscribe(h.sync)
	return h
}

// Surface returns the outer surface.
func (h *Host) Surface() *surface.Surface { return h.outer }

// Views returns the mounted element views in document order.
func (h *Host) Views() []*element.View {
	out := make([]*element.View, 0, len(h.mounts))
	for _, m := range h.mounts {
		out = append(out, m.view)
	}
	return out
}

// ViewAt returns the view of the element at pos, or nil.
func (h *Host) ViewAt(pos int) *element.View {
	for _, m := range h.mounts {
		if m.pos == pos {
			return m.view
		}
	}
	return nil
}

// CommandsFor returns the commands of a mounted view's element.
func (h *Host) CommandsFor(v *element.View) (Commands, bool) {
	for _, m := range h.mounts {
		if m.view == v {
			return h.e.Commands(h.outer, m.getPos), true
		}
	}
	return Commands{}, false
}

// Insert inserts a new element at pos on the outer surface.
func (h *Host) Insert(pos int, name string, values map[string]any) error {
	tr, err := h.e.InsertElement(h.outer.State(), pos, name, values)
	if err != nil {
		return err
	}
	return h.outer.Dispatch(tr)
}

// sync matches the element nodes of st against the mounted views. A view
// is kept when its old position maps onto an element of the same type;
// without transactions to map through, views are matched by node.
func (h *Host) sync(st *state.EditorState, applied []*state.Transaction) {
	if h.closed {
		return
	}
	byPos := make(map[int]*hostMount)
	byNode := make(map[*model.Node]*hostMount)
	for _, m := range h.mounts {
		if applied == nil {
			byNode[m.view.Node()] = m
			continue
		}
		pos, deleted := m.pos, false
		for _, tr := range applied {
			r := tr.Mapping.MapResult(pos, 1)
			pos, deleted = r.Pos, deleted || r.Deleted
		}
		if !deleted {
			if _, taken := byPos[pos]; !taken {
				byPos[pos] = m
			}
		}
	}

	var next []*hostMount
	kept := make(map[*hostMount]bool)
	decos := h.outer.Decorations()
	for _, l := range h.e.elements(st.Doc) {
		m := byPos[l.pos]
		if m == nil {
			m = byNode[l.node]
		}
		if m != nil && !kept[m] && m.view.Node().Type == l.node.Type {
			m.pos = l.pos
			if m.view.Update(l.node, decos) {
				kept[m] = true
				next = append(next, m)
				continue
			}
		}
		nm := &hostMount{pos: l.pos}
		v, err := element.NewView(h.e.builder, h.e.agg, l.node, nm.getPos, h.outer, element.WithViewLogger(h.e.log))
		if err != nil {
			h.e.log.Error("mount element view", "pos", l.pos, "type", l.node.Type.Name, "err", err)
			continue
		}
		nm.view = v
		next = append(next, nm)
	}
	for _, m := range h.mounts {
		if !kept[m] {
			m.detached = true
			m.view.Destroy()
		}
	}
	h.mounts = next
}

// Destroy unmounts every view and stops following the surface. It is
// idempotent.
func (h *Host) Destroy() {
	if h.closed {
		return
	}
	h.closed = true
	h.stop()
	for _, m := range h.mounts {
		m.detached = true
		m.view.Destroy()
	}
	h.mounts = nil
}
