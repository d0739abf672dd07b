// Package field describes the named value slots of an embedded element and
// the views that read and write them: editor-backed fields with their own
// nested surface, attribute fields stored on the node, and custom fields
// owned by an external subscriber.
package field

import "fmt"

// Kind tags the representation of a field.
type Kind string

// Field kinds.
const (
	KindText     Kind = "text"
	KindRichText Kind = "richText"
	KindCheckbox Kind = "checkbox"
	KindDropdown Kind = "dropdown"
	KindCustom   Kind = "custom"
	KindRepeater Kind = "repeater"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindRichText, KindCheckbox, KindDropdown, KindCustom, KindRepeater:
		return true
	}
	return false
}

// EditorBacked reports whether fields of this kind are edited through a
// nested surface.
func (k Kind) EditorBacked() bool { return k == KindText || k == KindRichText }

// Level is the severity of a ValidationError.
type Level string

// Validation levels. Warnings are informational; errors block.
const (
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ValidationError is a validator's finding, carried as data.
type ValidationError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
	Level   Level  `json:"level"`
}

func (v ValidationError) String() string {
	return fmt.Sprintf("%s %s: %s", v.Level, v.Code, v.Message)
}

// Description is the static declaration of one field. Descriptions are
// values and are never modified after an element is defined.
type Description struct {
	Kind       Kind
	Label      string
	Default    any
	Validators []Validator

	// Marks lists the marks a rich text field admits; empty admits all.
	Marks []string
	// Options lists the values a dropdown may take.
	Options []string
	// Multiline lets a text field hold line breaks.
	Multiline bool

	// Fields declares the field set of each repeater child, in order.
	Fields []Named
	// MinChildren is the repeater floor. Zero means 1.
	MinChildren int
}

// Named pairs a Description with its field name.
type Named struct {
	Name string
	Description
}

// Min returns the effective repeater floor.
func (d Description) Min() int {
	if d.MinChildren <= 0 {
		return 1
	}
	return d.MinChildren
}

// DefaultValue returns the declared default or the kind's zero value.
func (d Description) DefaultValue() any {
	if d.Default != nil {
		return d.Default
	}
	switch d.Kind {
	case KindText, KindRichText:
		return ""
	case KindCheckbox:
		return false
	case KindDropdown:
		if len(d.Options) > 0 {
			return d.Options[0]
		}
		return ""
	case KindRepeater:
		children := make([]map[string]any, d.Min())
		for i := range children {
			children[i] = DefaultValues(d.Fields)
		}
		return children
	}
	return nil
}

// DefaultValues returns the default value of every field in fields.
func DefaultValues(fields []Named) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Name] = f.DefaultValue()
	}
	return out
}

// Validate runs every validator of d against value.
func (d Description) Validate(value any) []ValidationError {
	var out []ValidationError
	for _, v := range d.Validators {
		if e := v(value); e != nil {
			out = append(out, *e)
		}
	}
	return out
}
