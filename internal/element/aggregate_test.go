package element_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/eykd/prosemark-elements/internal/element"
	"github.com/eykd/prosemark-elements/internal/field"
	"github.com/eykd/prosemark-elements/internal/model"
	"github.com/eykd/prosemark-elements/internal/state"
)

// figureSpec declares the element most tests use. Built with default
// values, a figure occupies:
//
//	0  figure
//	1  caption  (text, 9 with "caption")
//	10 body     (rich text, one empty paragraph)
//	14 featured (checkbox atom)
//	15 size     (dropdown atom)
//	16 items    (repeater of children holding a label)
func figureSpec() element.Spec {
	return element.Spec{
		Name:  "figure",
		Label: "Figure",
		Fields: []field.Named{
			{Name: "caption", Description: field.Description{Kind: field.KindText, Validators: []field.Validator{field.MaxLength(7)}}},
			{Name: "body", Description: field.Description{Kind: field.KindRichText, Marks: []string{element.MarkEm}}},
			{Name: "featured", Description: field.Description{Kind: field.KindCheckbox}},
			{Name: "size", Description: field.Description{Kind: field.KindDropdown, Options: []string{"s", "m"}}},
			{Name: "items", Description: field.Description{
				Kind:        field.KindRepeater,
				MinChildren: 1,
				Fields:      []field.Named{{Name: "label", Description: field.Description{Kind: field.KindText}}},
			}},
		},
	}
}

type fixture struct {
	reg     *element.Registry
	schema  *model.Schema
	builder *element.Builder
	agg     *element.Aggregator
	ids     int
}

func newFixture(t *testing.T, specs ...element.Spec) *fixture {
	t.Helper()
	if len(specs) == 0 {
		specs = []element.Spec{figureSpec()}
	}
	reg, err := element.NewRegistry(specs...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	schema, err := element.NewSchema(reg)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	f := &fixture{reg: reg, schema: schema, agg: element.NewAggregator(reg)}
	f.builder = element.NewBuilder(schema, reg, func() (string, error) {
		f.ids++
		return fmt.Sprintf("id-%d", f.ids), nil
	})
	return f
}

func (f *fixture) figure(t *testing.T, values map[string]any) *model.Node {
	t.Helper()
	n, err := f.builder.Element("figure", values, nil, nil)
	if err != nil {
		t.Fatalf("Element: %v", err)
	}
	return n
}

func (f *fixture) doc(t *testing.T, nodes ...*model.Node) *model.Node {
	t.Helper()
	d, err := f.schema.Node(element.DocNode, nil, nodes...)
	if err != nil {
		t.Fatalf("doc: %v", err)
	}
	return d
}

func TestGetFields_TextFieldValue(t *testing.T) {
	f := newFixture(t)
	fm, err := f.agg.GetFields(f.figure(t, map[string]any{"caption": "caption"}))
	if err != nil {
		t.Fatalf("GetFields: %v", err)
	}
	caption := fm.Get("caption")
	if caption == nil {
		t.Fatal("caption field missing")
	}
	if caption.Value != "caption" {
		t.Errorf("value = %v, want caption", caption.Value)
	}
	if len(caption.Errors) != 0 {
		t.Errorf("errors = %v, want none", caption.Errors)
	}
	if fm.HasErrors() {
		t.Errorf("HasErrors = true, want false")
	}
	values := fm.Values()
	if values["featured"] != false || values["size"] != "s" || values["body"] != "<p></p>" {
		t.Errorf("values = %v", values)
	}
	items, ok := values["items"].([]map[string]any)
	if !ok || len(items) != 1 || items[0][element.AttrID] != "id-1" || items[0]["label"] != "" {
		t.Errorf("items = %#v", values["items"])
	}
}

func TestUpdateFields_OverLengthText(t *testing.T) {
	f := newFixture(t)
	st := state.Create(state.Config{Doc: f.doc(t, f.figure(t, map[string]any{"caption": "caption"}))})
	prev, err := f.agg.GetFields(st.Doc.Child(0))
	if err != nil {
		t.Fatalf("GetFields: %v", err)
	}

	tr := st.Tr()
	// caption text occupies 2..9.
	if err := tr.InsertText("s", 9, 9); err != nil {
		t.Fatalf("InsertText: %v", err)
	}
	next, err := st.Apply(tr)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	fm, err := f.agg.UpdateFields(next.Doc.Child(0), prev)
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if fm == prev {
		t.Fatal("UpdateFields returned the previous map for a changed element")
	}
	caption := fm.Get("caption")
	if caption == prev.Get("caption") {
		t.Error("changed field reused")
	}
	if len(caption.Errors) != 1 {
		t.Fatalf("errors = %v, want 1", caption.Errors)
	}
	if e := caption.Errors[0]; e.Level != field.LevelError || e.Message != "Too long: 8/7" {
		t.Errorf("error = %+v", e)
	}
	for _, name := range []string{"body", "featured", "size", "items"} {
		if fm.Get(name) != prev.Get(name) {
			t.Errorf("unchanged field %s not reused", name)
		}
	}
	if !fm.HasErrors() {
		t.Error("HasErrors = false, want true")
	}
	if got := fm.Errors(); len(got) != 1 || len(got["caption"]) != 1 {
		t.Errorf("Errors() = %v", got)
	}
}

func TestUpdateFields_NoChurn(t *testing.T) {
	f := newFixture(t)
	values := map[string]any{
		"caption": "a",
		"items":   []map[string]any{{element.AttrID: "x", "label": "one"}, {element.AttrID: "y", "label": "two"}},
	}
	first := f.figure(t, values)
	prev, err := f.agg.GetFields(first)
	if err != nil {
		t.Fatalf("GetFields: %v", err)
	}

	t.Run("same node", func(t *testing.T) {
		got, err := f.agg.UpdateFields(first, prev)
		if err != nil || got != prev {
			t.Errorf("UpdateFields = %p, %v; want %p", got, err, prev)
		}
	})
	t.Run("equal rebuilt node", func(t *testing.T) {
		got, err := f.agg.UpdateFields(f.figure(t, values), prev)
		if err != nil || got != prev {
			t.Errorf("UpdateFields = %p, %v; want %p", got, err, prev)
		}
	})
	t.Run("repeater children reused by id", func(t *testing.T) {
		changed := map[string]any{
			"caption": "a",
			"items":   []map[string]any{{element.AttrID: "y", "label": "two"}, {element.AttrID: "x", "label": "uno"}},
		}
		got, err := f.agg.UpdateFields(f.figure(t, changed), prev)
		if err != nil {
			t.Fatalf("UpdateFields: %v", err)
		}
		old, cur := prev.Get("items").Children, got.Get("items").Children
		if cur[0] != old[1] {
			t.Error("unchanged child y not reused after reorder")
		}
		if cur[1] == old[0] {
			t.Error("changed child x reused")
		}
		if got.Get("caption") != prev.Get("caption") {
			t.Error("caption not reused")
		}
	})
}

func TestUpdateFields_ElementValidators(t *testing.T) {
	spec := element.Spec{
		Name: "quote",
		Fields: []field.Named{
			{Name: "text", Description: field.Description{Kind: field.KindText}},
			{Name: "source", Description: field.Description{Kind: field.KindText}},
		},
		Validators: []element.Validator{element.RequireAny("", "text", "source")},
	}
	f := newFixture(t, spec)
	empty, err := f.builder.Element("quote", nil, nil, nil)
	if err != nil {
		t.Fatalf("Element: %v", err)
	}
	prev, err := f.agg.GetFields(empty)
	if err != nil {
		t.Fatalf("GetFields: %v", err)
	}
	if got := prev.Errors(); len(got["text"]) != 1 || len(got["source"]) != 1 {
		t.Fatalf("Errors() = %v, want requireAny on both", got)
	}

	filled, err := f.builder.Element("quote", map[string]any{"text": "hi"}, nil, nil)
	if err != nil {
		t.Fatalf("Element: %v", err)
	}
	fm, err := f.agg.UpdateFields(filled, prev)
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if len(fm.Errors()) != 0 {
		t.Errorf("Errors() = %v, want none", fm.Errors())
	}
	// source's node is unchanged but its findings are not, so it is a new
	// object and the old one is left intact.
	if fm.Get("source") == prev.Get("source") {
		t.Error("source reused despite changed findings")
	}
	if len(prev.Get("source").Errors) != 1 {
		t.Error("previous field map mutated")
	}
}

func TestGetFields_MarkRestriction(t *testing.T) {
	f := newFixture(t)
	n := f.figure(t, map[string]any{"body": "<p><em>ok</em> <strong>no</strong></p>"})
	fm, err := f.agg.GetFields(n)
	if err != nil {
		t.Fatalf("GetFields: %v", err)
	}
	errs := fm.Get("body").Errors
	if len(errs) != 1 || errs[0].Code != element.CodeMarkNotAllowed {
		t.Errorf("body errors = %v, want one %s", errs, element.CodeMarkNotAllowed)
	}
}

func TestGetFields_Errors(t *testing.T) {
	f := newFixture(t)

	t.Run("unknown element", func(t *testing.T) {
		p, err := f.schema.Node("paragraph", nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.agg.GetFields(p); !errors.Is(err, element.ErrUnknownElement) {
			t.Errorf("err = %v, want ErrUnknownElement", err)
		}
	})
	t.Run("structure mismatch", func(t *testing.T) {
		good := f.figure(t, nil)
		// Unchecked construction drops the last field node.
		bad, err := good.Type.Create(good.Attrs, good.Content.Cut(0, good.Content.Size()-good.Child(4).Size()), nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.agg.GetFields(bad); !errors.Is(err, element.ErrStructureMismatch) {
			t.Errorf("err = %v, want ErrStructureMismatch", err)
		}
	})
}

func TestFieldMap_AllErrors(t *testing.T) {
	spec := figureSpec()
	spec.Fields[4].Fields[0].Validators = []field.Validator{field.Required()}
	f := newFixture(t, spec)
	n := f.figure(t, map[string]any{"items": []map[string]any{{"label": "a"}, {"label": ""}}})
	fm, err := f.agg.GetFields(n)
	if err != nil {
		t.Fatalf("GetFields: %v", err)
	}
	all := fm.AllErrors()
	if len(all) != 1 || len(all["items[1].label"]) != 1 {
		t.Errorf("AllErrors() = %v", all)
	}
	if len(fm.Errors()) != 0 {
		t.Errorf("Errors() = %v, want none at top level", fm.Errors())
	}
	if !fm.HasErrors() {
		t.Error("HasErrors = false, want true")
	}
	if keys := fm.ErrorKeys(); len(keys) != 1 || keys[0] != "items[1].label" {
		t.Errorf("ErrorKeys() = %v", keys)
	}
}
