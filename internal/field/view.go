package field

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/eykd/prosemark-elements/internal/model"
	"github.com/eykd/prosemark-elements/internal/state"
	"github.com/eykd/prosemark-elements/internal/surface"
)

// ErrDetached is returned when writing a value through a view whose anchor
// is no longer attached to the outer document.
var ErrDetached = errors.New("field: view is detached")

// View is the runtime face of one field. Update receives structural
// updates from the hosting surface and returns false when the view must be
// rebuilt; SetValue writes a new value back to the outer document.
type View interface {
	Value() any
	SetValue(value any) error
	Subscribe(fn Observer) *Subscription
	Update(node *model.Node, offset int, decos surface.DecorationSource) bool
	Destroy()
}

// Option configures a view.
type Option func(*viewConfig)

type viewConfig struct {
	log *slog.Logger
}

// WithLogger sets the view's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *viewConfig) {
		if l != nil {
			c.log = l
		}
	}
}

func newViewConfig(opts []Option) viewConfig {
	c := viewConfig{log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NewView builds the view variant for desc's kind.
func NewView(desc Description, node *model.Node, anchor surface.Anchor, outer surface.Dispatcher, opts ...Option) (View, error) {
	switch desc.Kind {
	case KindText, KindRichText:
		return NewEditorView(desc, node, anchor, outer, opts...)
	case KindCheckbox, KindDropdown:
		return NewAttributeView(desc, node, anchor, outer, opts...)
	case KindCustom:
		return NewCustomView(desc, node, anchor, outer, opts...)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoCodec, desc.Kind)
}

// EditorView is a field edited through its own nested surface. Its value is
// the serialized content of the inner document.
type EditorView struct {
	codec     Codec
	sync      *surface.Synchronizer
	notifier  *Notifier
	value     any
	stopInner func()
	log       *slog.Logger
}

// NewEditorView starts a nested surface on node.
func NewEditorView(desc Description, node *model.Node, anchor surface.Anchor, outer surface.Dispatcher, opts ...Option) (*EditorView, error) {
	c := newViewConfig(opts)
	codec, err := CodecFor(desc.Kind)
	if err != nil {
		return nil, err
	}
	value, err := codec.ValueFromNode(node)
	if err != nil {
		return nil, err
	}
	v := &EditorView{
		codec:    codec,
		sync:     surface.NewSynchronizer(node, anchor, outer, surface.WithLogger(c.log)),
		notifier: NewNotifier(c.log),
		value:    value,
		log:      c.log,
	}
	v.stopInner = v.sync.Inner().Subscribe(func(st *state.EditorState, _ []*state.Transaction) {
		v.refresh(st.Doc)
	})
	return v, nil
}

func (v *EditorView) refresh(doc *model.Node) {
	value, err := v.codec.ValueFromNode(doc)
	if err != nil {
		v.log.Error("read field value", "err", err)
		return
	}
	if reflect.DeepEqual(value, v.value) {
		return
	}
	v.value = value
	v.notifier.Notify(value)
}

// Synchronizer returns the view's synchronizer.
func (v *EditorView) Synchronizer() *surface.Synchronizer { return v.sync }

// Value returns the serialized inner document.
func (v *EditorView) Value() any { return v.value }

// SetValue replaces the inner document's content with value's. The change
// is a local edit, so it is projected to the outer document.
func (v *EditorView) SetValue(value any) error {
	if v.sync.Closed() {
		v.log.Warn("set value on destroyed field view")
		return surface.ErrClosed
	}
	cur := v.sync.Inner().State()
	next, err := v.codec.NodeFromValue(cur.Doc.Type, value)
	if err != nil {
		return err
	}
	tr := cur.Tr()
	if err := tr.Replace(0, cur.Doc.Content.Size(), next.Content); err != nil {
		return err
	}
	if !tr.DocChanged() {
		return nil
	}
	return v.sync.Inner().Dispatch(tr)
}

// Subscribe registers fn for value changes.
func (v *EditorView) Subscribe(fn Observer) *Subscription { return v.notifier.Subscribe(fn) }

// Update forwards a structural update to the synchronizer.
func (v *EditorView) Update(node *model.Node, offset int, decos surface.DecorationSource) bool {
	return v.sync.Update(node, offset, decos)
}

// Destroy tears down the nested surface and drops subscribers. It is
// idempotent.
func (v *EditorView) Destroy() {
	if v.sync.Closed() {
		return
	}
	v.stopInner()
	v.sync.Destroy()
	v.notifier.Close()
}

// AttributeView is a field whose value lives in the node's fields
// attribute. Writing a value issues one set-markup transaction on the outer
// document.
type AttributeView struct {
	codec     Codec
	node      *model.Node
	anchor    surface.Anchor
	outer     surface.Dispatcher
	notifier  *Notifier
	value     any
	destroyed bool
	log       *slog.Logger
}

// NewAttributeView reads the value from node's attributes.
func NewAttributeView(desc Description, node *model.Node, anchor surface.Anchor, outer surface.Dispatcher, opts ...Option) (*AttributeView, error) {
	c := newViewConfig(opts)
	codec, err := CodecFor(desc.Kind)
	if err != nil {
		return nil, err
	}
	value, err := codec.ValueFromNode(node)
	if err != nil {
		return nil, err
	}
	return &AttributeView{
		codec:    codec,
		node:     node,
		anchor:   anchor,
		outer:    outer,
		notifier: NewNotifier(c.log),
		value:    value,
		log:      c.log,
	}, nil
}

// Value returns the current value.
func (v *AttributeView) Value() any { return v.value }

// SetValue writes value into the node's attributes on the outer document.
func (v *AttributeView) SetValue(value any) error {
	if v.destroyed {
		v.log.Warn("set value on destroyed field view")
		return surface.ErrClosed
	}
	pos, ok := v.anchor.GetPosition()
	if !ok {
		return ErrDetached
	}
	next, err := v.codec.NodeFromValue(v.node.Type, value)
	if err != nil {
		return err
	}
	if next.Attrs.Eq(v.node.Attrs) {
		return nil
	}
	tr := v.outer.State().Tr()
	if err := tr.SetNodeMarkup(pos+v.anchor.Offset, nil, next.Attrs); err != nil {
		return err
	}
	if err := v.outer.Dispatch(tr); err != nil {
		return err
	}
	// A host normally pushes the new node back through Update during
	// dispatch; without one, adopt the written node directly.
	if !v.node.Attrs.Eq(next.Attrs) {
		v.set(v.node.WithAttrs(next.Attrs))
	}
	return nil
}

// Subscribe registers fn for value changes.
func (v *AttributeView) Subscribe(fn Observer) *Subscription { return v.notifier.Subscribe(fn) }

// Update adopts node when it has the same type.
func (v *AttributeView) Update(node *model.Node, offset int, _ surface.DecorationSource) bool {
	if v.destroyed || node.Type != v.node.Type {
		return false
	}
	v.anchor.Offset = offset
	v.set(node)
	return true
}

func (v *AttributeView) set(node *model.Node) {
	v.node = node
	value, err := v.codec.ValueFromNode(node)
	if err != nil {
		v.log.Error("read field value", "err", err)
		return
	}
	if reflect.DeepEqual(value, v.value) {
		return
	}
	v.value = value
	v.notifier.Notify(value)
}

// Destroy drops subscribers. It is idempotent.
func (v *AttributeView) Destroy() {
	if v.destroyed {
		return
	}
	v.destroyed = true
	v.notifier.Close()
}

// CustomView is a field with no built-in presentation. External consumers
// subscribe, receive the current value immediately and on every change, and
// push values back with SetValue.
type CustomView struct {
	*AttributeView
}

// NewCustomView builds a custom view over node's fields attribute.
func NewCustomView(desc Description, node *model.Node, anchor surface.Anchor, outer surface.Dispatcher, opts ...Option) (*CustomView, error) {
	av, err := NewAttributeView(desc, node, anchor, outer, opts...)
	if err != nil {
		return nil, err
	}
	return &CustomView{AttributeView: av}, nil
}

// Subscribe registers fn and calls it with the current value.
func (v *CustomView) Subscribe(fn Observer) *Subscription {
	sub := v.notifier.Subscribe(fn)
	fn(v.value)
	return sub
}

var (
	_ View = (*EditorView)(nil)
	_ View = (*AttributeView)(nil)
	_ View = (*CustomView)(nil)
)
