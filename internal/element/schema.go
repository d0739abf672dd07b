package element

import (
	"encoding/json"
	"strings"

	"github.com/eykd/prosemark-elements/internal/field"
	"github.com/eykd/prosemark-elements/internal/model"
)

// Node and mark names of the base schema the element nodes live in.
const (
	DocNode    = "doc"
	BlockGroup = "block"

	MarkStrong = "strong"
	MarkEm     = "em"
	MarkCode   = "code"
	MarkLink   = "link"
)

// Markup attribute names.
const (
	domElement   = "pme-element"
	domField     = "pme-field"
	domChild     = "pme-child"
	domID        = "pme-id"
	domHasErrors = "has-errors"
	domAddedAt   = "added-at"
	domFields    = field.AttrFields
)

// BaseNodeSpecs returns the document and paragraph node specs rich text
// fields and element nodes are placed in.
func BaseNodeSpecs() []model.NodeSpec {
	return []model.NodeSpec{
		{Name: DocNode, Content: BlockGroup + "+"},
		{
			Name:     field.ParagraphNode,
			Content:  "text*",
			Group:    BlockGroup,
			Marks:    model.MarksAll,
			ToDOM:    func(*model.Node) model.DOMSpec { return model.DOMSpec{Tag: "p", Hole: true} },
			ParseDOM: []model.ParseRule{{Tag: "p"}},
		},
	}
}

// MarkSpecs returns the marks rich text fields may carry.
func MarkSpecs() []model.MarkSpec {
	simple := func(name, tag string, aliases ...string) model.MarkSpec {
		rules := []model.ParseRule{{Tag: tag}}
		for _, a := range aliases {
			rules = append(rules, model.ParseRule{Tag: a})
		}
		return model.MarkSpec{
			Name:     name,
			ToDOM:    func(model.Mark) model.DOMSpec { return model.DOMSpec{Tag: tag} },
			ParseDOM: rules,
		}
	}
	return []model.MarkSpec{
		simple(MarkStrong, "strong", "b"),
		simple(MarkEm, "em", "i"),
		simple(MarkCode, "code"),
		{
			Name:  MarkLink,
			Attrs: map[string]model.AttrSpec{"href": {}},
			ToDOM: func(m model.Mark) model.DOMSpec {
				href, _ := m.Attrs["href"].(string)
				return model.DOMSpec{Tag: "a", Attrs: map[string]string{"href": href}}
			},
			ParseDOM: []model.ParseRule{{Tag: "a", Attr: "href", GetAttrs: func(a map[string]string) (model.Attrs, bool) {
				return model.Attrs{"href": a["href"]}, true
			}}},
		},
	}
}

// NodeSpecs returns the node specs the registry contributes to a schema:
// one element node per spec, one node per field, and a child node per
// repeater. The result is meant to be merged with BaseNodeSpecs.
func (r *Registry) NodeSpecs() []model.NodeSpec {
	var out []model.NodeSpec
	for _, s := range r.specs {
		fs := r.sets[s.Name]
		out = append(out, elementSpec(s.Name, fs.nodeNames))
		out = r.fieldSpecs(out, fs)
	}
	return out
}

func (r *Registry) fieldSpecs(out []model.NodeSpec, fs *fieldSet) []model.NodeSpec {
	for i, f := range fs.fields {
		name := fs.nodeNames[i]
		switch f.Kind {
		case field.KindText:
			out = append(out, holeSpec(name, domField, "text*"))
		case field.KindRichText:
			out = append(out, holeSpec(name, domField, field.ParagraphNode+"+"))
		case field.KindRepeater:
			child := fs.children[f.Name]
			out = append(out, holeSpec(name, domField, child.typeName+"+"))
			out = append(out, childSpec(child.typeName, child.nodeNames))
			out = r.fieldSpecs(out, child)
		default:
			out = append(out, atomSpec(name, f.Description))
		}
	}
	return out
}

func elementSpec(name string, fields []string) model.NodeSpec {
	return model.NodeSpec{
		Name:    name,
		Content: strings.Join(fields, " "),
		Group:   BlockGroup,
		Attrs: map[string]model.AttrSpec{
			AttrType:      model.DefaultAttr(name),
			AttrHasErrors: model.DefaultAttr(false),
			AttrAddedAt:   model.DefaultAttr(nil),
		},
		ToDOM: func(n *model.Node) model.DOMSpec {
			attrs := map[string]string{
				domElement:   name,
				domHasErrors: FormatFlag(n.Attr(AttrHasErrors)),
			}
			if at, ok := n.Attr(AttrAddedAt).(string); ok && at != "" {
				attrs[domAddedAt] = at
			}
			return model.DOMSpec{Tag: "div", Attrs: attrs, Hole: true}
		},
		ParseDOM: []model.ParseRule{{Tag: "div", Attr: domElement, GetAttrs: func(a map[string]string) (model.Attrs, bool) {
			if a[domElement] != name {
				return nil, false
			}
			out := model.Attrs{AttrType: name, AttrHasErrors: ParseFlag(a[domHasErrors], false)}
			if at, ok := a[domAddedAt]; ok {
				out[AttrAddedAt] = at
			}
			return out, true
		}}},
	}
}

func holeSpec(name, marker, content string) model.NodeSpec {
	return model.NodeSpec{
		Name:    name,
		Content: content,
		Marks:   "",
		ToDOM: func(*model.Node) model.DOMSpec {
			return model.DOMSpec{Tag: "div", Attrs: map[string]string{marker: name}, Hole: true}
		},
		ParseDOM: []model.ParseRule{{Tag: "div", Attr: marker, GetAttrs: func(a map[string]string) (model.Attrs, bool) {
			return nil, a[marker] == name
		}}},
	}
}

func childSpec(name string, fields []string) model.NodeSpec {
	return model.NodeSpec{
		Name:    name,
		Content: strings.Join(fields, " "),
		Attrs:   map[string]model.AttrSpec{AttrID: model.DefaultAttr(nil)},
		ToDOM: func(n *model.Node) model.DOMSpec {
			attrs := map[string]string{domChild: name}
			if id, ok := n.Attr(AttrID).(string); ok && id != "" {
				attrs[domID] = id
			}
			return model.DOMSpec{Tag: "div", Attrs: attrs, Hole: true}
		},
		ParseDOM: []model.ParseRule{{Tag: "div", Attr: domChild, GetAttrs: func(a map[string]string) (model.Attrs, bool) {
			if a[domChild] != name {
				return nil, false
			}
			if id := a[domID]; id != "" {
				return model.Attrs{AttrID: id}, true
			}
			return nil, true
		}}},
	}
}

func atomSpec(name string, desc field.Description) model.NodeSpec {
	def := desc.DefaultValue()
	return model.NodeSpec{
		Name:  name,
		Atom:  true,
		Attrs: map[string]model.AttrSpec{field.AttrFields: model.DefaultAttr(def)},
		ToDOM: func(n *model.Node) model.DOMSpec {
			return model.DOMSpec{Tag: "div", Attrs: map[string]string{
				domField:  name,
				domFields: EncodeFields(n.Attr(field.AttrFields)),
			}}
		},
		ParseDOM: []model.ParseRule{{Tag: "div", Attr: domField, GetAttrs: func(a map[string]string) (model.Attrs, bool) {
			if a[domField] != name {
				return nil, false
			}
			return model.Attrs{field.AttrFields: DecodeFields(a[domFields], def)}, true
		}}},
	}
}

// FormatFlag renders a boolean attribute as the literal "true" or "false".
func FormatFlag(v any) string {
	if b, ok := v.(bool); ok && b {
		return "true"
	}
	return "false"
}

// ParseFlag reads a boolean markup attribute. Only the literals "true" and
// "false" are honoured; anything else, including an absent attribute,
// yields def.
func ParseFlag(s string, def bool) bool {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return def
}

// EncodeFields serializes a fields attribute value as JSON. Values that
// cannot be encoded render as null.
func EncodeFields(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

// DecodeFields parses a fields attribute, falling back to def when src is
// empty or not valid JSON.
func DecodeFields(src string, def any) any {
	if src == "" {
		return def
	}
	var v any
	if err := json.Unmarshal([]byte(src), &v); err != nil {
		return def
	}
	return v
}

// NewSchema assembles a complete schema from the base specs, the marks and
// the registry's contribution.
func NewSchema(r *Registry) (*model.Schema, error) {
	nodes := append(BaseNodeSpecs(), r.NodeSpecs()...)
	return model.NewSchema(model.SchemaSpec{Nodes: nodes, Marks: MarkSpecs(), TopNode: DocNode})
}
