package element

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eykd/prosemark-elements/internal/field"
)

// Definitions is the YAML document that declares element types.
type Definitions struct {
	Elements []ElementDef `yaml:"elements"`
}

// ElementDef declares one element type.
type ElementDef struct {
	Name       string         `yaml:"name"`
	Label      string         `yaml:"label"`
	Fields     []FieldDef     `yaml:"fields"`
	Validators []ValidatorDef `yaml:"validators"`
}

// FieldDef declares one field. Fields is only read for repeaters.
type FieldDef struct {
	Name        string         `yaml:"name"`
	Kind        string         `yaml:"kind"`
	Label       string         `yaml:"label"`
	Default     any            `yaml:"default"`
	Options     []string       `yaml:"options"`
	Marks       []string       `yaml:"marks"`
	Multiline   bool           `yaml:"multiline"`
	MinChildren int            `yaml:"minChildren"`
	Fields      []FieldDef     `yaml:"fields"`
	Validators  []ValidatorDef `yaml:"validators"`
}

// ValidatorDef names a built-in validator and its arguments.
//
// Field validators: required, maxLength, maxLengthHTML, minLength, oneOf,
// noControlChars, pattern. Element validators: requireAny, which needs at
// least one of Fields to be non-empty.
type ValidatorDef struct {
	Type    string   `yaml:"type"`
	Value   any      `yaml:"value"`
	Message string   `yaml:"message"`
	Level   string   `yaml:"level"`
	Fields  []string `yaml:"fields"`
}

// ParseDefinitions decodes YAML element definitions into specs.
func ParseDefinitions(data []byte) ([]Spec, error) {
	var defs Definitions
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parse element definitions: %w", err)
	}
	specs := make([]Spec, 0, len(defs.Elements))
	for _, e := range defs.Elements {
		fields, err := fieldsFromDefs(e.Fields)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", e.Name, err)
		}
		spec := Spec{Name: e.Name, Label: e.Label, Fields: fields}
		for _, vd := range e.Validators {
			v, err := elementValidator(vd)
			if err != nil {
				return nil, fmt.Errorf("element %s: %w", e.Name, err)
			}
			spec.Validators = append(spec.Validators, v)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// LoadFile reads element definitions from path and compiles them.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read element definitions: %w", err)
	}
	specs, err := ParseDefinitions(data)
	if err != nil {
		return nil, err
	}
	return NewRegistry(specs...)
}

func fieldsFromDefs(defs []FieldDef) ([]field.Named, error) {
	out := make([]field.Named, 0, len(defs))
	for _, d := range defs {
		desc := field.Description{
			Kind:        field.Kind(d.Kind),
			Label:       d.Label,
			Default:     d.Default,
			Options:     d.Options,
			Marks:       d.Marks,
			Multiline:   d.Multiline,
			MinChildren: d.MinChildren,
		}
		if !desc.Kind.Valid() {
			return nil, fmt.Errorf("%w: field %s has unknown kind %q", ErrInvalidSpec, d.Name, d.Kind)
		}
		if desc.Kind == field.KindRepeater {
			sub, err := fieldsFromDefs(d.Fields)
			if err != nil {
				return nil, fmt.Errorf("repeater %s: %w", d.Name, err)
			}
			desc.Fields = sub
		}
		for _, vd := range d.Validators {
			v, err := fieldValidator(vd, desc)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", d.Name, err)
			}
			desc.Validators = append(desc.Validators, v)
		}
		out = append(out, field.Named{Name: d.Name, Description: desc})
	}
	return out, nil
}

func fieldValidator(vd ValidatorDef, desc field.Description) (field.Validator, error) {
	var v field.Validator
	switch vd.Type {
	case "required":
		if desc.Kind == field.KindRichText {
			v = field.RequiredHTML()
		} else {
			v = field.Required()
		}
	case "maxLength", "maxLengthHTML", "minLength":
		n, ok := vd.Value.(int)
		if !ok || n < 0 {
			return nil, fmt.Errorf("%w: %s needs a non-negative integer value", ErrInvalidSpec, vd.Type)
		}
		switch {
		case vd.Type == "minLength":
			v = field.MinLength(n)
		case vd.Type == "maxLengthHTML" || desc.Kind == field.KindRichText:
			v = field.MaxLengthHTML(n)
		default:
			v = field.MaxLength(n)
		}
	case "oneOf":
		options := desc.Options
		if list, ok := vd.Value.([]any); ok {
			options = nil
			for _, o := range list {
				options = append(options, fmt.Sprint(o))
			}
		}
		v = field.OneOf(options...)
	case "noControlChars":
		v = field.NoControlChars()
	case "pattern":
		src, _ := vd.Value.(string)
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern: %w", ErrInvalidSpec, err)
		}
		msg := vd.Message
		if msg == "" {
			msg = "Must match " + src
		}
		v = field.Pattern(re, msg)
	default:
		return nil, fmt.Errorf("%w: unknown validator %q", ErrInvalidSpec, vd.Type)
	}
	switch strings.ToUpper(vd.Level) {
	case "", string(field.LevelError):
		return v, nil
	case string(field.LevelWarn):
		return field.Warn(v), nil
	}
	return nil, fmt.Errorf("%w: unknown level %q", ErrInvalidSpec, vd.Level)
}

func elementValidator(vd ValidatorDef) (Validator, error) {
	switch vd.Type {
	case "requireAny":
		if len(vd.Fields) == 0 {
			return nil, fmt.Errorf("%w: requireAny needs fields", ErrInvalidSpec)
		}
		return RequireAny(vd.Message, vd.Fields...), nil
	}
	return nil, fmt.Errorf("%w: unknown element validator %q", ErrInvalidSpec, vd.Type)
}

// RequireAny reports every listed field when all of them are empty.
func RequireAny(message string, names ...string) Validator {
	if message == "" {
		message = "One of " + strings.Join(names, ", ") + " is required"
	}
	required := field.Required()
	return func(values map[string]any) map[string][]field.ValidationError {
		for _, name := range names {
			if required(values[name]) == nil {
				return nil
			}
		}
		out := make(map[string][]field.ValidationError, len(names))
		for _, name := range names {
			out[name] = []field.ValidationError{{Code: "requireAny", Message: message, Level: field.LevelError}}
		}
		return out
	}
}
