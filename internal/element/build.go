package element

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/eykd/prosemark-elements/internal/field"
	"github.com/eykd/prosemark-elements/internal/model"
)

// ErrIDExhausted is returned when the identity generator keeps producing
// tokens that are already in use.
var ErrIDExhausted = errors.New("element: could not generate a fresh child id")

// IDFunc generates repeater child identity tokens.
type IDFunc func() (string, error)

// NewUUID generates a time-ordered UUID token.
func NewUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate child id: %w", err)
	}
	return id.String(), nil
}

const maxIDAttempts = 8

// Builder creates element and repeater child nodes from field values.
type Builder struct {
	schema *model.Schema
	reg    *Registry
	newID  IDFunc
}

// NewBuilder returns a builder over schema, which must contain reg's node
// specs. A nil newID uses NewUUID.
func NewBuilder(schema *model.Schema, reg *Registry, newID IDFunc) *Builder {
	if newID == nil {
		newID = NewUUID
	}
	return &Builder{schema: schema, reg: reg, newID: newID}
}

// Schema returns the builder's schema.
func (b *Builder) Schema() *model.Schema { return b.schema }

// Registry returns the builder's registry.
func (b *Builder) Registry() *Registry { return b.reg }

// Element builds an element node. Missing values take the field default.
// attrs are extra element attributes such as AttrAddedAt. used holds the
// child ids already present in the target document; new ids are added to
// it. A nil used skips the check against the document.
func (b *Builder) Element(name string, values map[string]any, attrs model.Attrs, used map[string]bool) (*model.Node, error) {
	fs, ok := b.reg.sets[name]
	if !ok || !b.reg.IsElement(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownElement, name)
	}
	nt, err := b.schema.NodeType(name)
	if err != nil {
		return nil, err
	}
	if used == nil {
		used = make(map[string]bool)
	}
	content, err := b.fields(fs, values, used)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}
	a := model.Attrs{AttrType: name}
	for k, v := range attrs {
		a[k] = v
	}
	return nt.CreateChecked(a, content, nil)
}

// Child builds one repeater child of the repeater node type repeaterType.
func (b *Builder) Child(repeaterType string, values map[string]any, used map[string]bool) (*model.Node, error) {
	fs, ok := b.reg.sets[ChildNodeName(repeaterType)]
	if !ok {
		return nil, fmt.Errorf("%w: repeater %q", ErrUnknownElement, repeaterType)
	}
	if used == nil {
		used = make(map[string]bool)
	}
	return b.child(fs, values, used)
}

func (b *Builder) child(fs *fieldSet, values map[string]any, used map[string]bool) (*model.Node, error) {
	nt, err := b.schema.NodeType(fs.typeName)
	if err != nil {
		return nil, err
	}
	id, _ := values[AttrID].(string)
	if id == "" || used[id] {
		if id, err = b.freshID(used); err != nil {
			return nil, err
		}
	}
	used[id] = true
	content, err := b.fields(fs, values, used)
	if err != nil {
		return nil, err
	}
	return nt.CreateChecked(model.Attrs{AttrID: id}, content, nil)
}

func (b *Builder) freshID(used map[string]bool) (string, error) {
	for range maxIDAttempts {
		id, err := b.newID()
		if err != nil {
			return "", err
		}
		if id != "" && !used[id] {
			return id, nil
		}
	}
	return "", ErrIDExhausted
}

func (b *Builder) fields(fs *fieldSet, values map[string]any, used map[string]bool) (*model.Fragment, error) {
	nodes := make([]*model.Node, 0, len(fs.fields))
	for i, f := range fs.fields {
		nt, err := b.schema.NodeType(fs.nodeNames[i])
		if err != nil {
			return nil, err
		}
		v, ok := values[f.Name]
		if !ok {
			v = f.DefaultValue()
		}
		var n *model.Node
		if f.Kind == field.KindRepeater {
			n, err = b.repeater(nt, fs.children[f.Name], f.Description, v, used)
		} else {
			n, err = b.value(nt, f.Kind, v)
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		nodes = append(nodes, n)
	}
	return model.NewFragment(nodes...), nil
}

func (b *Builder) value(nt *model.NodeType, kind field.Kind, v any) (*model.Node, error) {
	codec, err := field.CodecFor(kind)
	if err != nil {
		return nil, err
	}
	return codec.NodeFromValue(nt, v)
}

func (b *Builder) repeater(nt *model.NodeType, child *fieldSet, desc field.Description, v any, used map[string]bool) (*model.Node, error) {
	items := childValues(v)
	for len(items) < desc.Min() {
		items = append(items, field.DefaultValues(desc.Fields))
	}
	nodes := make([]*model.Node, 0, len(items))
	for _, item := range items {
		n, err := b.child(child, item, used)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nt.CreateChecked(nil, model.NewFragment(nodes...), nil)
}

// childValues accepts the repeater value shapes that arrive from Go code
// and from decoded JSON or YAML.
func childValues(v any) []map[string]any {
	switch items := v.(type) {
	case []map[string]any:
		return items
	case []any:
		out := make([]map[string]any, 0, len(items))
		for _, item := range items {
			m, _ := item.(map[string]any)
			out = append(out, m)
		}
		return out
	}
	return nil
}

// UsedIDs collects every repeater child id in doc.
func UsedIDs(doc *model.Node) map[string]bool {
	used := make(map[string]bool)
	doc.Descendants(func(n *model.Node, _ int, _ *model.Node, _ int) bool {
		if id, ok := n.Attr(AttrID).(string); ok && id != "" {
			used[id] = true
		}
		return !n.IsText()
	})
	return used
}
