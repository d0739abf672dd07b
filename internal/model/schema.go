// Package model provides the immutable document tree shared by the outer
// surface and every nested field surface: node types, schemas, nodes,
// fragments, marks and resolved positions.
//
// Positions follow a token model: entering or leaving a non-text node costs
// one position, each rune of text costs one position, and a leaf node
// occupies exactly one position.
package model

import (
	"fmt"
	"reflect"
	"strings"
)

// Attrs holds node or mark attributes. Values are compared structurally.
type Attrs map[string]any

// Eq reports whether two attribute maps are structurally equal.
// A nil map equals an empty map.
func (a Attrs) Eq(b Attrs) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || !reflect.DeepEqual(v, w) {
			return false
		}
	}
	return true
}

// With returns a copy of a with key set to value.
func (a Attrs) With(key string, value any) Attrs {
	out := make(Attrs, len(a)+1)
	for k, v := range a {
		out[k] = v
	}
	out[key] = value
	return out
}

// AttrSpec declares one attribute. Attributes without a default are required.
type AttrSpec struct {
	Default    any
	HasDefault bool
}

// DefaultAttr builds an AttrSpec with the given default value.
func DefaultAttr(v any) AttrSpec {
	return AttrSpec{Default: v, HasDefault: true}
}

// DOMSpec describes how a node or mark renders to markup. A node whose
// content should be rendered inside the element sets Hole.
type DOMSpec struct {
	Tag   string
	Attrs map[string]string
	Hole  bool
}

// ParseRule describes how markup maps back to a node or mark.
// Attr, when set, must be present on the element for the rule to apply.
// GetAttrs returns false to decline the element.
type ParseRule struct {
	Tag      string
	Attr     string
	GetAttrs func(attrs map[string]string) (Attrs, bool)
}

// MarksAll admits every mark in the schema.
const MarksAll = "_"

// NodeSpec declares a node type.
type NodeSpec struct {
	Name    string
	Content string // content expression; empty for leaf nodes
	Group   string // space-separated group names
	Marks   string // "_" for all marks, "" for none, else space-separated mark names
	Inline  bool
	Atom    bool
	Attrs   map[string]AttrSpec

	ToDOM    func(n *Node) DOMSpec
	ParseDOM []ParseRule
}

// MarkSpec declares a mark type.
type MarkSpec struct {
	Name     string
	Attrs    map[string]AttrSpec
	ToDOM    func(m Mark) DOMSpec
	ParseDOM []ParseRule
}

// SchemaSpec is the input to NewSchema. TopNode defaults to "doc".
type SchemaSpec struct {
	Nodes   []NodeSpec
	Marks   []MarkSpec
	TopNode string
}

// Schema is a compiled set of node and mark types.
type Schema struct {
	Spec    SchemaSpec
	Nodes   map[string]*NodeType
	Marks   map[string]*MarkType
	TopNode *NodeType

	nodeOrder []string
	markOrder []string
}

// NodeType is a compiled node type belonging to a schema.
type NodeType struct {
	Name   string
	Spec   NodeSpec
	Schema *Schema

	content *ContentExpr
	groups  []string
	marks   map[string]bool // nil admits every mark
}

// MarkType is a compiled mark type belonging to a schema.
type MarkType struct {
	Name   string
	Spec   MarkSpec
	Schema *Schema
	rank   int
}

// TextTypeName is the name of the built-in text node type.
const TextTypeName = "text"

// NewSchema compiles spec. A "text" node type is added when spec does not
// declare one.
func NewSchema(spec SchemaSpec) (*Schema, error) {
	s := &Schema{
		Spec:  spec,
		Nodes: make(map[string]*NodeType),
		Marks: make(map[string]*MarkType),
	}
	nodes := spec.Nodes
	hasText := false
	for _, n := range nodes {
		if n.Name == TextTypeName {
			hasText = true
		}
	}
	if !hasText {
		nodes = append(append([]NodeSpec(nil), nodes...), NodeSpec{Name: TextTypeName, Group: "inline", Inline: true})
	}

	known := make(map[string]bool)
	groups := make(map[string][]string)
	for _, n := range nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("%w: node spec with empty name", ErrUnknownType)
		}
		if _, dup := s.Nodes[n.Name]; dup {
			return nil, fmt.Errorf("duplicate node type %q", n.Name)
		}
		nt := &NodeType{Name: n.Name, Spec: n, Schema: s, groups: strings.Fields(n.Group)}
		s.Nodes[n.Name] = nt
		s.nodeOrder = append(s.nodeOrder, n.Name)
		known[n.Name] = true
		for _, g := range nt.groups {
			groups[g] = append(groups[g], n.Name)
		}
	}
	for i, m := range spec.Marks {
		if _, dup := s.Marks[m.Name]; dup {
			return nil, fmt.Errorf("duplicate mark type %q", m.Name)
		}
		s.Marks[m.Name] = &MarkType{Name: m.Name, Spec: m, Schema: s, rank: i}
		s.markOrder = append(s.markOrder, m.Name)
	}

	for _, name := range s.nodeOrder {
		nt := s.Nodes[name]
		expr, err := parseContentExpr(nt.Spec.Content, known, groups)
		if err != nil {
			return nil, fmt.Errorf("node type %q: %w", name, err)
		}
		nt.content = expr
		switch nt.Spec.Marks {
		case MarksAll:
			nt.marks = nil
		default:
			nt.marks = make(map[string]bool)
			for _, m := range strings.Fields(nt.Spec.Marks) {
				if _, ok := s.Marks[m]; !ok {
					return nil, fmt.Errorf("node type %q: %w: mark %q", name, ErrUnknownType, m)
				}
				nt.marks[m] = true
			}
		}
	}

	top := spec.TopNode
	if top == "" {
		top = "doc"
	}
	nt, ok := s.Nodes[top]
	if !ok {
		return nil, fmt.Errorf("%w: top node %q", ErrUnknownType, top)
	}
	s.TopNode = nt
	return s, nil
}

// NodeType returns the named node type.
func (s *Schema) NodeType(name string) (*NodeType, error) {
	nt, ok := s.Nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: node %q", ErrUnknownType, name)
	}
	return nt, nil
}

// MarkType returns the named mark type.
func (s *Schema) MarkType(name string) (*MarkType, error) {
	mt, ok := s.Marks[name]
	if !ok {
		return nil, fmt.Errorf("%w: mark %q", ErrUnknownType, name)
	}
	return mt, nil
}

// NodeTypes returns the node types in declaration order.
func (s *Schema) NodeTypes() []*NodeType {
	out := make([]*NodeType, 0, len(s.nodeOrder))
	for _, name := range s.nodeOrder {
		out = append(out, s.Nodes[name])
	}
	return out
}

// MarkTypes returns the mark types in declaration order.
func (s *Schema) MarkTypes() []*MarkType {
	out := make([]*MarkType, 0, len(s.markOrder))
	for _, name := range s.markOrder {
		out = append(out, s.Marks[name])
	}
	return out
}

// Text creates a text node. It returns nil for empty text, which fragments drop.
func (s *Schema) Text(text string, marks ...Mark) *Node {
	if text == "" {
		return nil
	}
	return &Node{Type: s.Nodes[TextTypeName], Text: text, Marks: sortMarks(marks)}
}

// Node creates a node of the named type with checked content.
func (s *Schema) Node(name string, attrs Attrs, children ...*Node) (*Node, error) {
	nt, err := s.NodeType(name)
	if err != nil {
		return nil, err
	}
	return nt.CreateChecked(attrs, NewFragment(children...), nil)
}

// IsText reports whether the type is the text type.
func (t *NodeType) IsText() bool { return t.Name == TextTypeName }

// IsInline reports whether nodes of the type are inline.
func (t *NodeType) IsInline() bool { return t.Spec.Inline || t.IsText() }

// IsLeaf reports whether the type admits no content.
func (t *NodeType) IsLeaf() bool { return t.content.IsEmpty() }

// IsAtom reports whether the type is a leaf or declared atomic.
func (t *NodeType) IsAtom() bool { return t.IsLeaf() || t.Spec.Atom }

// InGroup reports whether the type belongs to group.
func (t *NodeType) InGroup(group string) bool {
	for _, g := range t.groups {
		if g == group {
			return true
		}
	}
	return false
}

// ContentExpr returns the compiled content expression.
func (t *NodeType) ContentExpr() *ContentExpr { return t.content }

// ValidContent reports whether f satisfies the type's content expression and
// every text child carries only marks the type admits.
func (t *NodeType) ValidContent(f *Fragment) bool {
	if !t.content.Matches(f) {
		return false
	}
	for _, child := range f.Children() {
		for _, m := range child.Marks {
			if !t.AllowsMark(m.Type.Name) {
				return false
			}
		}
	}
	return true
}

// AllowsMark reports whether marks of the named type may appear in this
// type's content.
func (t *NodeType) AllowsMark(name string) bool {
	return t.marks == nil || t.marks[name]
}

// ComputeAttrs fills defaults into attrs and fails on missing required attributes.
func (t *NodeType) ComputeAttrs(attrs Attrs) (Attrs, error) {
	return computeAttrs(t.Spec.Attrs, attrs, t.Name)
}

// Create builds a node without checking content.
func (t *NodeType) Create(attrs Attrs, content *Fragment, marks []Mark) (*Node, error) {
	if t.IsText() {
		return nil, fmt.Errorf("node type %q: use Schema.Text for text nodes", t.Name)
	}
	computed, err := t.ComputeAttrs(attrs)
	if err != nil {
		return nil, err
	}
	if content == nil {
		content = Empty()
	}
	return &Node{Type: t, Attrs: computed, Content: content, Marks: sortMarks(marks)}, nil
}

// CreateChecked builds a node and verifies its content against the type.
func (t *NodeType) CreateChecked(attrs Attrs, content *Fragment, marks []Mark) (*Node, error) {
	n, err := t.Create(attrs, content, marks)
	if err != nil {
		return nil, err
	}
	if !t.ValidContent(n.Content) {
		return nil, fmt.Errorf("%w: %s cannot hold %s", ErrInvalidContent, t.Name, n.Content)
	}
	return n, nil
}

// Create builds a mark of this type.
func (m *MarkType) Create(attrs Attrs) (Mark, error) {
	computed, err := computeAttrs(m.Spec.Attrs, attrs, m.Name)
	if err != nil {
		return Mark{}, err
	}
	return Mark{Type: m, Attrs: computed}, nil
}

func computeAttrs(specs map[string]AttrSpec, given Attrs, owner string) (Attrs, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(Attrs, len(specs))
	for name, spec := range specs {
		if v, ok := given[name]; ok {
			out[name] = v
			continue
		}
		if !spec.HasDefault {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingAttr, owner, name)
		}
		out[name] = spec.Default
	}
	return out, nil
}
