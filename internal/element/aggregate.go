package element

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/eykd/prosemark-elements/internal/field"
	"github.com/eykd/prosemark-elements/internal/model"
)

// Validation codes produced by the aggregator itself.
const (
	CodeMarkNotAllowed = "markNotAllowed"
	CodeTooFewChildren = "tooFewChildren"
)

// Field is one aggregated field: its declaration, current value and
// validation findings. Fields are immutable once returned; an unchanged
// field is handed back as the same pointer by UpdateFields.
type Field struct {
	// Name is the declared field name.
	Name string
	// Description is the field's static declaration.
	Description field.Description
	// Value is the field's decoded value. Repeaters hold []map[string]any,
	// one map per child with the child id under AttrID.
	Value any
	// Errors combines the field's own validator findings with those of the
	// element validators.
	Errors []field.ValidationError
	// Children holds one field map per repeater child, in document order.
	Children []*FieldMap

	own  []field.ValidationError
	node *model.Node
}

// HasErrors reports whether the field or any repeater child carries an
// ERROR-level finding.
func (f *Field) HasErrors() bool {
	if hasErrorLevel(f.Errors) {
		return true
	}
	for _, c := range f.Children {
		if c.HasErrors() {
			return true
		}
	}
	return false
}

// Node returns the field node the field was computed from.
func (f *Field) Node() *model.Node { return f.node }

// FieldMap is the ordered set of fields of one element or repeater child.
type FieldMap struct {
	// Type is the node type name the map was computed from.
	Type string
	// ID is the identity token of a repeater child; empty for elements.
	ID string
	// Fields are in declaration order.
	Fields []*Field

	node *model.Node
}

// Node returns the node the map was computed from.
func (m *FieldMap) Node() *model.Node { return m.node }

// Len returns the number of fields.
func (m *FieldMap) Len() int { return len(m.Fields) }

// Get returns the named field, or nil.
func (m *FieldMap) Get(name string) *Field {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Values returns every field value keyed by field name.
func (m *FieldMap) Values() map[string]any {
	out := make(map[string]any, len(m.Fields))
	for _, f := range m.Fields {
		out[f.Name] = f.Value
	}
	return out
}

// Errors returns the findings of every field that has any, keyed by field
// name. Repeater children are not included; see AllErrors.
func (m *FieldMap) Errors() map[string][]field.ValidationError {
	out := make(map[string][]field.ValidationError)
	for _, f := range m.Fields {
		if len(f.Errors) > 0 {
			out[f.Name] = f.Errors
		}
	}
	return out
}

// AllErrors returns Errors plus the findings of repeater children under
// keys of the form "items[1].title".
func (m *FieldMap) AllErrors() map[string][]field.ValidationError {
	out := make(map[string][]field.ValidationError)
	m.collect("", out)
	return out
}

func (m *FieldMap) collect(prefix string, out map[string][]field.ValidationError) {
	for _, f := range m.Fields {
		key := prefix + f.Name
		if len(f.Errors) > 0 {
			out[key] = f.Errors
		}
		for i, c := range f.Children {
			c.collect(fmt.Sprintf("%s[%d].", key, i), out)
		}
	}
}

// HasErrors reports whether any field carries an ERROR-level finding.
func (m *FieldMap) HasErrors() bool {
	for _, f := range m.Fields {
		if f.HasErrors() {
			return true
		}
	}
	return false
}

// ErrorKeys returns the AllErrors keys in sorted order.
func (m *FieldMap) ErrorKeys() []string {
	all := m.AllErrors()
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func hasErrorLevel(errs []field.ValidationError) bool {
	for _, e := range errs {
		if e.Level == field.LevelError {
			return true
		}
	}
	return false
}

// Aggregator computes field maps for element nodes.
type Aggregator struct {
	reg *Registry
}

// NewAggregator returns an aggregator over reg.
func NewAggregator(reg *Registry) *Aggregator { return &Aggregator{reg: reg} }

// GetFields computes the field map of an element node from scratch.
func (a *Aggregator) GetFields(node *model.Node) (*FieldMap, error) {
	return a.UpdateFields(node, nil)
}

// UpdateFields recomputes the field map of node against prev, the map of
// an earlier version of the same element. Fields whose nodes are
// structurally unchanged are reused as the same pointer, and when nothing
// changed prev itself is returned.
func (a *Aggregator) UpdateFields(node *model.Node, prev *FieldMap) (*FieldMap, error) {
	fs, ok := a.reg.sets[node.Type.Name]
	if !ok || !a.reg.IsElement(node.Type.Name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownElement, node.Type.Name)
	}
	return a.update(fs, node, prev)
}

func (a *Aggregator) update(fs *fieldSet, node *model.Node, prev *FieldMap) (*FieldMap, error) {
	if prev != nil && prev.Type != fs.typeName {
		prev = nil
	}
	if prev != nil && prev.node == node {
		return prev, nil
	}
	if err := checkShape(fs, node); err != nil {
		return nil, err
	}

	fields := make([]*Field, len(fs.fields))
	changed := prev == nil || len(prev.Fields) != len(fields)
	for i, decl := range fs.fields {
		var old *Field
		if prev != nil && i < len(prev.Fields) {
			old = prev.Fields[i]
		}
		f, err := a.field(fs, decl, node.Child(i), old)
		if err != nil {
			return nil, err
		}
		if f != old {
			changed = true
		}
		fields[i] = f
	}

	if changed && len(fs.validators) > 0 {
		fields = applyElementValidators(fs, fields, prev)
	}

	id, _ := node.Attr(AttrID).(string)
	if !changed && prev.ID == id {
		prev.node = node
		return prev, nil
	}
	return &FieldMap{Type: fs.typeName, ID: id, Fields: fields, node: node}, nil
}

func checkShape(fs *fieldSet, node *model.Node) error {
	if node.ChildCount() != len(fs.nodeNames) {
		return fmt.Errorf("%w: %s has %d field nodes, want %d", ErrStructureMismatch, fs.typeName, node.ChildCount(), len(fs.nodeNames))
	}
	for i, want := range fs.nodeNames {
		if got := node.Child(i).Type.Name; got != want {
			return fmt.Errorf("%w: %s field %d is %s, want %s", ErrStructureMismatch, fs.typeName, i, got, want)
		}
	}
	return nil
}

func (a *Aggregator) field(fs *fieldSet, decl field.Named, node *model.Node, old *Field) (*Field, error) {
	if old != nil && old.Name == decl.Name && (old.node == node || old.node.Eq(node)) {
		old.node = node
		return old, nil
	}
	f := &Field{Name: decl.Name, Description: decl.Description, node: node}
	if decl.Kind == field.KindRepeater {
		if err := a.repeater(fs.children[decl.Name], f, node, old); err != nil {
			return nil, err
		}
	} else {
		codec, err := field.CodecFor(decl.Kind)
		if err != nil {
			return nil, err
		}
		if f.Value, err = codec.ValueFromNode(node); err != nil {
			return nil, fmt.Errorf("field %s: %w", decl.Name, err)
		}
	}
	f.own = decl.Validate(f.Value)
	if decl.Kind == field.KindRichText {
		f.own = append(f.own, checkMarks(decl.Description, node)...)
	}
	if decl.Kind == field.KindRepeater && len(f.Children) < decl.Min() {
		f.own = append(f.own, field.ValidationError{
			Code:    CodeTooFewChildren,
			Message: fmt.Sprintf("Too few items: %d/%d", len(f.Children), decl.Min()),
			Level:   field.LevelError,
		})
	}
	f.Errors = f.own
	return f, nil
}

func (a *Aggregator) repeater(child *fieldSet, f *Field, node *model.Node, old *Field) error {
	prevByID := make(map[string]*FieldMap)
	if old != nil {
		for _, c := range old.Children {
			if c.ID != "" {
				prevByID[c.ID] = c
			}
		}
	}
	values := make([]map[string]any, 0, node.ChildCount())
	for i, cn := range node.Content.Children() {
		var prev *FieldMap
		if id, _ := cn.Attr(AttrID).(string); id != "" {
			prev = prevByID[id]
		} else if old != nil && i < len(old.Children) && old.Children[i].ID == "" {
			prev = old.Children[i]
		}
		m, err := a.update(child, cn, prev)
		if err != nil {
			return err
		}
		f.Children = append(f.Children, m)
		v := m.Values()
		if m.ID != "" {
			v[AttrID] = m.ID
		}
		values = append(values, v)
	}
	f.Value = values
	return nil
}

func checkMarks(desc field.Description, node *model.Node) []field.ValidationError {
	if len(desc.Marks) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(desc.Marks))
	for _, m := range desc.Marks {
		allowed[m] = true
	}
	seen := make(map[string]bool)
	var out []field.ValidationError
	node.Descendants(func(n *model.Node, _ int, _ *model.Node, _ int) bool {
		for _, m := range n.Marks {
			name := m.Type.Name
			if !allowed[name] && !seen[name] {
				seen[name] = true
				out = append(out, field.ValidationError{
					Code:    CodeMarkNotAllowed,
					Message: fmt.Sprintf("Formatting not allowed: %s", name),
					Level:   field.LevelError,
				})
			}
		}
		return true
	})
	return out
}

// applyElementValidators merges element-level findings into fields. A
// field whose combined findings are unchanged keeps its pointer.
func applyElementValidators(fs *fieldSet, fields []*Field, prev *FieldMap) []*Field {
	values := make(map[string]any, len(fields))
	for _, f := range fields {
		values[f.Name] = f.Value
	}
	extra := make(map[string][]field.ValidationError)
	for _, v := range fs.validators {
		for name, errs := range v(values) {
			extra[name] = append(extra[name], errs...)
		}
	}
	out := make([]*Field, len(fields))
	for i, f := range fields {
		combined := f.own
		if more := extra[f.Name]; len(more) > 0 {
			combined = append(append([]field.ValidationError(nil), f.own...), more...)
		}
		reused := prev != nil && i < len(prev.Fields) && prev.Fields[i] == f
		switch {
		case reflect.DeepEqual(combined, f.Errors):
			out[i] = f
		case reused:
			cp := *f
			cp.Errors = combined
			out[i] = &cp
		default:
			f.Errors = combined
			out[i] = f
		}
	}
	return out
}
