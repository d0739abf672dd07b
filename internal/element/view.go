package element

import (
	"fmt"
	"log/slog"

	"github.com/eykd/prosemark-elements/internal/field"
	"github.com/eykd/prosemark-elements/internal/model"
	"github.com/eykd/prosemark-elements/internal/surface"
)

// ViewOption configures a View.
type ViewOption func(*View)

// WithViewLogger sets the view's logger.
func WithViewLogger(l *slog.Logger) ViewOption {
	return func(v *View) {
		if l != nil {
			v.log = l
		}
	}
}

// View is the runtime face of one element node: it mounts a field view for
// every leaf field, including the fields of repeater children, and keeps
// them and the element's field map current as the outer document changes.
type View struct {
	builder  *Builder
	agg      *Aggregator
	node     *model.Node
	getPos   func() (int, bool)
	outer    surface.Dispatcher
	fields   *FieldMap
	mounts   map[string]*mount
	order    []string
	notifier *field.Notifier
	closed   bool
	log      *slog.Logger
}

type mount struct {
	kind field.Kind
	view field.View
}

// point is a mountable field: its key, declaration, node and offset from
// the position before the element node.
type point struct {
	key    string
	desc   field.Description
	node   *model.Node
	offset int
}

// NewView mounts views for node. getPos reports the position before the
// element node in the outer document.
func NewView(b *Builder, agg *Aggregator, node *model.Node, getPos func() (int, bool), outer surface.Dispatcher, opts ...ViewOption) (*View, error) {
	v := &View{
		builder: b,
		agg:     agg,
		node:    node,
		getPos:  getPos,
		outer:   outer,
		mounts:  make(map[string]*mount),
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.notifier = field.NewNotifier(v.log)
	fields, err := agg.GetFields(node)
	if err != nil {
		return nil, err
	}
	v.fields = fields
	for _, pt := range v.points(node) {
		fv, err := v.mountPoint(pt)
		if err != nil {
			v.Destroy()
			return nil, err
		}
		v.mounts[pt.key] = &mount{kind: pt.desc.Kind, view: fv}
		v.order = append(v.order, pt.key)
	}
	return v, nil
}

// ChildKey returns the key of a field inside a repeater child.
func ChildKey(repeater, id, name string) string {
	return fmt.Sprintf("%s[%s].%s", repeater, id, name)
}

func (v *View) points(node *model.Node) []point {
	fs := v.builder.reg.sets[node.Type.Name]
	var out []point
	var walk func(fs *fieldSet, n *model.Node, prefix string, base int)
	walk = func(fs *fieldSet, n *model.Node, prefix string, base int) {
		for i, f := range fs.fields {
			if i >= n.ChildCount() {
				return
			}
			child := n.Child(i)
			off := base + n.Content.Offset(i)
			key := prefix + f.Name
			if f.Kind != field.KindRepeater {
				out = append(out, point{key: key, desc: f.Description, node: child, offset: 1 + off})
				continue
			}
			cs := fs.children[f.Name]
			for j, item := range child.Content.Children() {
				id, _ := item.Attr(AttrID).(string)
				if id == "" {
					id = fmt.Sprintf("#%d", j)
				}
				walk(cs, item, fmt.Sprintf("%s[%s].", key, id), off+1+child.Content.Offset(j)+1)
			}
		}
	}
	walk(fs, node, "", 0)
	return out
}

func (v *View) mountPoint(pt point) (field.View, error) {
	anchor := surface.Anchor{GetPosition: v.getPos, Offset: pt.offset}
	return field.NewView(pt.desc, pt.node, anchor, v.outer, field.WithLogger(v.log))
}

// Node returns the element node the view last saw.
func (v *View) Node() *model.Node { return v.node }

// Fields returns the current field map.
func (v *View) Fields() *FieldMap { return v.fields }

// Keys returns the keys of the mounted field views in document order.
func (v *View) Keys() []string { return append([]string(nil), v.order...) }

// FieldView returns the mounted view for key, a field name or a ChildKey.
func (v *View) FieldView(key string) field.View {
	if m, ok := v.mounts[key]; ok {
		return m.view
	}
	return nil
}

// Repeater returns a manager for the top-level repeater field name.
func (v *View) Repeater(name string) (*Repeater, bool) {
	fs := v.builder.reg.sets[v.node.Type.Name]
	i := fs.index(name)
	if i < 0 || fs.fields[i].Kind != field.KindRepeater {
		return nil, false
	}
	getPos := func() (int, bool) {
		pos, ok := v.getPos()
		if !ok || i >= v.node.ChildCount() {
			return 0, false
		}
		return pos + 1 + v.node.Content.Offset(i), true
	}
	return NewRepeater(v.builder, getPos, v.log), true
}

// Subscribe registers fn for field map changes.
func (v *View) Subscribe(fn func(*FieldMap)) *field.Subscription {
	return v.notifier.Subscribe(func(value any) {
		if m, ok := value.(*FieldMap); ok {
			fn(m)
		}
	})
}

// Update brings the view in line with node. It returns false when node is
// not a version of the same element, or its fields cannot be read; the
// caller must then destroy the view and build a new one.
func (v *View) Update(node *model.Node, decos surface.DecorationSource) bool {
	if v.closed {
		v.log.Warn("update on destroyed element view", "type", node.Type.Name)
		return false
	}
	if node.Type != v.node.Type {
		return false
	}
	fields, err := v.agg.UpdateFields(node, v.fields)
	if err != nil {
		v.log.Error("element fields", "type", node.Type.Name, "err", err)
		return false
	}
	v.node = node

	seen := make(map[string]bool)
	var order []string
	for _, pt := range v.points(node) {
		seen[pt.key] = true
		if m, ok := v.mounts[pt.key]; ok {
			if m.kind == pt.desc.Kind && m.view.Update(pt.node, pt.offset, decos) {
				order = append(order, pt.key)
				continue
			}
			m.view.Destroy()
		}
		fv, err := v.mountPoint(pt)
		if err != nil {
			v.log.Error("mount field view", "key", pt.key, "err", err)
			delete(v.mounts, pt.key)
			continue
		}
		v.mounts[pt.key] = &mount{kind: pt.desc.Kind, view: fv}
		order = append(order, pt.key)
	}
	for key, m := range v.mounts {
		if !seen[key] {
			m.view.Destroy()
			delete(v.mounts, key)
		}
	}
	v.order = order

	if fields != v.fields {
		v.fields = fields
		v.notifier.Notify(fields)
	}
	return true
}

// Destroy tears down every field view. It is idempotent.
func (v *View) Destroy() {
	if v.closed {
		return
	}
	v.closed = true
	for _, m := range v.mounts {
		m.view.Destroy()
	}
	v.mounts = nil
	v.notifier.Close()
}

// Destroyed reports whether Destroy was called.
func (v *View) Destroyed() bool { return v.closed }
