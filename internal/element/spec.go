// Package element turns declarative element specs into schema node types,
// aggregates the fields of element nodes into validated field maps, and
// manages repeater children.
package element

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eykd/prosemark-elements/internal/field"
)

// Attribute names on element and repeater child nodes.
const (
	// AttrType holds the element name on the element node.
	AttrType = "type"
	// AttrHasErrors mirrors whether the element's fields carry ERROR-level findings.
	AttrHasErrors = "hasErrors"
	// AttrAddedAt is the RFC3339 time the element was inserted, or nil.
	AttrAddedAt = "addedAt"
	// AttrID is the identity token of a repeater child.
	AttrID = "__ID"
)

// Node name separators.
const (
	sep        = "__"
	childToken = "child"
)

var (
	// ErrStructureMismatch is returned when an element node does not have
	// the field nodes its spec declares.
	ErrStructureMismatch = errors.New("element: node structure does not match spec")
	// ErrUnknownElement is returned for node types no spec defines.
	ErrUnknownElement = errors.New("element: unknown element")
	// ErrInvalidSpec is returned for malformed element specs.
	ErrInvalidSpec = errors.New("element: invalid spec")
)

// Validator checks an element's field values as a whole and returns
// findings keyed by field name.
type Validator func(values map[string]any) map[string][]field.ValidationError

// Spec declares one element type.
type Spec struct {
	// Name is the element's node type name.
	Name string
	// Label is a human-readable name.
	Label string
	// Fields declares the element's fields in document order.
	Fields []field.Named
	// Validators run over all field values after the per-field validators.
	Validators []Validator
}

// FieldNodeName returns the node type name of a field under prefix, which
// is an element name or a repeater child name.
func FieldNodeName(prefix, fieldName string) string { return prefix + sep + fieldName }

// ChildNodeName returns the node type name of a repeater's children.
func ChildNodeName(repeaterNode string) string { return repeaterNode + sep + childToken }

// fieldSet is a compiled field layout: the node type holding the field
// nodes and, for repeaters, the layout of their children.
type fieldSet struct {
	typeName   string
	element    string
	fields     []field.Named
	nodeNames  []string
	children   map[string]*fieldSet
	validators []Validator
}

func (fs *fieldSet) index(name string) int {
	for i, f := range fs.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Registry is the compiled set of element specs, in declaration order.
type Registry struct {
	specs []Spec
	byNam map[string]int
	sets  map[string]*fieldSet // by holding node type name
}

// NewRegistry validates and compiles specs.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{byNam: make(map[string]int), sets: make(map[string]*fieldSet)}
	for _, s := range specs {
		if s.Name == "" || strings.Contains(s.Name, sep) {
			return nil, fmt.Errorf("%w: element name %q", ErrInvalidSpec, s.Name)
		}
		if _, dup := r.byNam[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate element %q", ErrInvalidSpec, s.Name)
		}
		if len(s.Fields) == 0 {
			return nil, fmt.Errorf("%w: element %q has no fields", ErrInvalidSpec, s.Name)
		}
		fs, err := r.compile(s.Name, s.Name, s.Fields)
		if err != nil {
			return nil, err
		}
		fs.validators = s.Validators
		r.byNam[s.Name] = len(r.specs)
		r.specs = append(r.specs, s)
	}
	return r, nil
}

func (r *Registry) compile(element, typeName string, fields []field.Named) (*fieldSet, error) {
	fs := &fieldSet{typeName: typeName, element: element, fields: fields, children: make(map[string]*fieldSet)}
	seen := make(map[string]bool)
	for _, f := range fields {
		if f.Name == "" || f.Name == childToken || strings.Contains(f.Name, sep) {
			return nil, fmt.Errorf("%w: field name %q in %s", ErrInvalidSpec, f.Name, typeName)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("%w: duplicate field %q in %s", ErrInvalidSpec, f.Name, typeName)
		}
		seen[f.Name] = true
		if !f.Kind.Valid() {
			return nil, fmt.Errorf("%w: field %s.%s has unknown kind %q", ErrInvalidSpec, typeName, f.Name, f.Kind)
		}
		nodeName := FieldNodeName(typeName, f.Name)
		fs.nodeNames = append(fs.nodeNames, nodeName)
		if f.Kind == field.KindRepeater {
			if len(f.Fields) == 0 {
				return nil, fmt.Errorf("%w: repeater %s.%s has no fields", ErrInvalidSpec, typeName, f.Name)
			}
			child, err := r.compile(element, ChildNodeName(nodeName), f.Fields)
			if err != nil {
				return nil, err
			}
			fs.children[f.Name] = child
		}
	}
	r.sets[typeName] = fs
	return fs, nil
}

// Specs returns the specs in declaration order.
func (r *Registry) Specs() []Spec { return append([]Spec(nil), r.specs...) }

// Lookup returns the spec for an element name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	i, ok := r.byNam[name]
	if !ok {
		return Spec{}, false
	}
	return r.specs[i], true
}

// IsElement reports whether typeName is an element node type.
func (r *Registry) IsElement(typeName string) bool {
	_, ok := r.byNam[typeName]
	return ok
}

// FieldDescription returns the description of the named field of an
// element or of a repeater child type.
func (r *Registry) FieldDescription(holder, name string) (field.Description, bool) {
	fs, ok := r.sets[holder]
	if !ok {
		return field.Description{}, false
	}
	i := fs.index(name)
	if i < 0 {
		return field.Description{}, false
	}
	return fs.fields[i].Description, true
}
