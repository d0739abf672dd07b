package embed

import (
	"fmt"
	"sort"

	"github.com/eykd/prosemark-elements/internal/element"
	"github.com/eykd/prosemark-elements/internal/field"
	"github.com/eykd/prosemark-elements/internal/model"
	"github.com/eykd/prosemark-elements/internal/state"
)

// CodeStructure marks a finding produced when an element node does not
// match its spec.
const CodeStructure = "structureMismatch"

// ElementError is one validation finding located in the document.
type ElementError struct {
	// Pos is the position before the element node.
	Pos int `json:"pos"`
	// Element is the element type name.
	Element string `json:"element"`
	// Field is the field key, with repeater children as "items[1].label".
	Field string `json:"field"`
	field.ValidationError
}

// State is the plugin's document-wide summary.
type State struct {
	// HasErrors is true when any element carries an ERROR-level finding.
	HasErrors bool
	// Errors lists every finding, errors before warnings, then by position
	// and field.
	Errors []ElementError

	entries []entry
}

// entry is the cached field map of one element node.
type entry struct {
	pos    int
	node   *model.Node
	fields *element.FieldMap
	err    error
}

// FieldsAt returns the field map of the element at pos, or nil.
func (s *State) FieldsAt(pos int) *element.FieldMap {
	for _, en := range s.entries {
		if en.pos == pos {
			return en.fields
		}
	}
	return nil
}

// Count returns the number of element nodes.
func (s *State) Count() int { return len(s.entries) }

// Plugin returns the state plugin that maintains State and keeps every
// element's hasErrors attribute in step with its fields.
func (e *Embed) Plugin() *state.Plugin {
	return &state.Plugin{
		Key: e.key,
		Init: func(st *state.EditorState) any {
			return e.compute(st.Doc, nil)
		},
		Apply: func(tr *state.Transaction, value any, _, next *state.EditorState) any {
			prev, _ := value.(*State)
			if prev != nil && !tr.DocChanged() {
				return prev
			}
			return e.compute(next.Doc, prev)
		},
		AppendTransaction: func(_ []*state.Transaction, _, next *state.EditorState) *state.Transaction {
			return e.syncFlags(next)
		},
	}
}

// PluginState returns the plugin's value in st, or nil when st does not
// carry the plugin.
func (e *Embed) PluginState(st *state.EditorState) *State {
	s, _ := e.key.GetState(st).(*State)
	return s
}

// compute walks doc for element nodes. Field maps are reused when the node
// is unchanged and otherwise updated against the map of the element that
// was in the same place in document order.
func (e *Embed) compute(doc *model.Node, prev *State) *State {
	byNode := make(map[*model.Node]entry)
	var byIndex []entry
	if prev != nil {
		byIndex = prev.entries
		for _, en := range prev.entries {
			byNode[en.node] = en
		}
	}

	s := &State{}
	for i, l := range e.elements(doc) {
		en := entry{pos: l.pos, node: l.node}
		if old, ok := byNode[l.node]; ok {
			en.fields, en.err = old.fields, old.err
		} else {
			var base *element.FieldMap
			if i < len(byIndex) && byIndex[i].node.Type == l.node.Type {
				base = byIndex[i].fields
			}
			en.fields, en.err = e.agg.UpdateFields(l.node, base)
			if en.err != nil {
				e.log.Error("element does not match its spec", "pos", l.pos, "type", l.node.Type.Name, "err", en.err)
			}
		}
		s.entries = append(s.entries, en)
		s.Errors = append(s.Errors, findings(en)...)
	}

	sort.SliceStable(s.Errors, func(i, j int) bool {
		a, b := s.Errors[i], s.Errors[j]
		if ra, rb := levelRank(a.Level), levelRank(b.Level); ra != rb {
			return ra < rb
		}
		if a.Pos != b.Pos {
			return a.Pos < b.Pos
		}
		return a.Field < b.Field
	})
	for _, f := range s.Errors {
		if f.Level == field.LevelError {
			s.HasErrors = true
			break
		}
	}
	return s
}

func findings(en entry) []ElementError {
	name := en.node.Type.Name
	if en.err != nil {
		return []ElementError{{Pos: en.pos, Element: name, ValidationError: field.ValidationError{
			Code:    CodeStructure,
			Message: en.err.Error(),
			Level:   field.LevelError,
		}}}
	}
	var out []ElementError
	all := en.fields.AllErrors()
	for _, key := range en.fields.ErrorKeys() {
		for _, ve := range all[key] {
			out = append(out, ElementError{Pos: en.pos, Element: name, Field: key, ValidationError: ve})
		}
	}
	return out
}

// levelRank sorts errors (0) before warnings (1).
func levelRank(l field.Level) int {
	if l == field.LevelError {
		return 0
	}
	return 1
}

// hasErrors reports whether an entry should carry the hasErrors flag.
func (en entry) hasErrors() bool {
	return en.err != nil || en.fields.HasErrors()
}

// syncFlags returns a transaction setting the hasErrors attribute of every
// element whose flag disagrees with its fields, or nil.
func (e *Embed) syncFlags(st *state.EditorState) *state.Transaction {
	s := e.PluginState(st)
	if s == nil {
		return nil
	}
	var tr *state.Transaction
	for _, en := range s.entries {
		want := en.hasErrors()
		if got, _ := en.node.Attr(element.AttrHasErrors).(bool); got == want {
			continue
		}
		if tr == nil {
			tr = st.Tr()
		}
		if err := tr.SetNodeMarkup(en.pos, nil, en.node.Attrs.With(element.AttrHasErrors, want)); err != nil {
			e.log.Error("sync hasErrors", "pos", en.pos, "err", err)
			return nil
		}
	}
	if tr != nil {
		tr.SetMeta(state.MetaAddToHistory, false)
	}
	return tr
}

// Validate computes the summary of doc without a surface.
func (e *Embed) Validate(doc *model.Node) *State {
	return e.compute(doc, nil)
}

func (f ElementError) String() string {
	if f.Field == "" {
		return fmt.Sprintf("%d %s: %s", f.Pos, f.Element, f.ValidationError)
	}
	return fmt.Sprintf("%d %s.%s: %s", f.Pos, f.Element, f.Field, f.ValidationError)
}
