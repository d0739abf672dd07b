package element_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/eykd/prosemark-elements/internal/element"
	"github.com/eykd/prosemark-elements/internal/field"
	"github.com/eykd/prosemark-elements/internal/markup"
)

func TestNodeSpecs_Names(t *testing.T) {
	f := newFixture(t)
	var names []string
	for _, s := range f.reg.NodeSpecs() {
		names = append(names, s.Name)
	}
	want := []string{
		"figure",
		"figure__caption",
		"figure__body",
		"figure__featured",
		"figure__size",
		"figure__items",
		"figure__items__child",
		"figure__items__child__label",
	}
	if strings.Join(names, " ") != strings.Join(want, " ") {
		t.Errorf("node specs = %v, want %v", names, want)
	}
	fig := f.schema.Nodes["figure"]
	if got := fig.Spec.Content; got != "figure__caption figure__body figure__featured figure__size figure__items" {
		t.Errorf("figure content = %q", got)
	}
	if !fig.InGroup(element.BlockGroup) {
		t.Error("figure not in block group")
	}
	if !f.schema.Nodes["figure__featured"].IsAtom() {
		t.Error("checkbox field is not an atom")
	}
}

func TestNewRegistry_Rejects(t *testing.T) {
	text := field.Description{Kind: field.KindText}
	tests := []struct {
		name string
		spec element.Spec
	}{
		{"empty name", element.Spec{Fields: []field.Named{{Name: "a", Description: text}}}},
		{"separator in name", element.Spec{Name: "a__b", Fields: []field.Named{{Name: "a", Description: text}}}},
		{"no fields", element.Spec{Name: "a"}},
		{"child field name", element.Spec{Name: "a", Fields: []field.Named{{Name: "child", Description: text}}}},
		{"duplicate field", element.Spec{Name: "a", Fields: []field.Named{{Name: "x", Description: text}, {Name: "x", Description: text}}}},
		{"unknown kind", element.Spec{Name: "a", Fields: []field.Named{{Name: "x", Description: field.Description{Kind: "slider"}}}}},
		{"empty repeater", element.Spec{Name: "a", Fields: []field.Named{{Name: "x", Description: field.Description{Kind: field.KindRepeater}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := element.NewRegistry(tt.spec); !errors.Is(err, element.ErrInvalidSpec) {
				t.Errorf("err = %v, want ErrInvalidSpec", err)
			}
		})
	}
	if _, err := element.NewRegistry(figureSpec(), figureSpec()); !errors.Is(err, element.ErrInvalidSpec) {
		t.Errorf("duplicate element err = %v, want ErrInvalidSpec", err)
	}
}

func TestMarkup_RoundTrip(t *testing.T) {
	f := newFixture(t)
	n := f.figure(t, map[string]any{
		"caption":  "Fig. 1",
		"body":     `<p>See <em>this</em> <a href="https://example.com">link</a></p><p>Two</p>`,
		"featured": true,
		"size":     "m",
		"items":    []map[string]any{{element.AttrID: "x", "label": "one"}, {element.AttrID: "y", "label": "two"}},
	})
	n = n.WithAttrs(n.Attrs.With(element.AttrAddedAt, "2026-01-02T03:04:05Z"))

	src, err := markup.RenderNode(n)
	if err != nil {
		t.Fatalf("RenderNode: %v", err)
	}
	for _, want := range []string{
		`pme-element="figure"`,
		`has-errors="false"`,
		`added-at="2026-01-02T03:04:05Z"`,
		`fields="true"`,
		`fields="&#34;m&#34;"`,
		`pme-id="x"`,
	} {
		if !strings.Contains(src, want) {
			t.Errorf("markup %s\nmissing %s", src, want)
		}
	}

	frag, err := markup.Parse(f.schema, f.schema.TopNode, src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if frag.ChildCount() != 1 || !frag.Child(0).Eq(n) {
		t.Errorf("round trip\n got %v\nwant %v", frag, n)
	}
}

func TestMarkup_HasErrorsFlag(t *testing.T) {
	f := newFixture(t)
	n := f.figure(t, nil)
	base, err := markup.RenderNode(n)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		attr string
		want bool
	}{
		{"literal true", `has-errors="true"`, true},
		{"literal false", `has-errors="false"`, false},
		{"other value", `has-errors="yes"`, false},
		{"absent", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := strings.Replace(base, `has-errors="false"`, tt.attr, 1)
			frag, err := markup.Parse(f.schema, f.schema.TopNode, src)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := frag.Child(0).Attr(element.AttrHasErrors); got != tt.want {
				t.Errorf("hasErrors = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFieldsAttr_Codec(t *testing.T) {
	tests := []struct {
		name string
		src  string
		def  any
		want any
	}{
		{"bool", "true", false, true},
		{"string", `"m"`, "", "m"},
		{"empty uses default", "", "s", "s"},
		{"bad json uses default", "{", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := element.DecodeFields(tt.src, tt.def); got != tt.want {
				t.Errorf("DecodeFields(%q) = %v, want %v", tt.src, got, tt.want)
			}
		})
	}
	if got := element.EncodeFields(func() {}); got != "null" {
		t.Errorf("EncodeFields(func) = %q, want null", got)
	}
	if got := element.FormatFlag("true"); got != "false" {
		t.Errorf("FormatFlag(string) = %q, want false", got)
	}
}

func TestBuilder_Element(t *testing.T) {
	f := newFixture(t)
	if _, err := f.builder.Element("nope", nil, nil, nil); !errors.Is(err, element.ErrUnknownElement) {
		t.Errorf("unknown element err = %v", err)
	}
	n := f.figure(t, map[string]any{"items": []any{map[string]any{"label": "from json"}}})
	if err := n.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	items := n.Child(4)
	if items.ChildCount() != 1 || items.Child(0).TextContent() != "from json" {
		t.Errorf("items = %v", items)
	}
	if got := n.Attr(element.AttrType); got != "figure" {
		t.Errorf("type attr = %v", got)
	}

	used := element.UsedIDs(f.doc(t, n))
	if !used["id-1"] || len(used) != 1 {
		t.Errorf("UsedIDs = %v", used)
	}

	var calls int
	stuck := element.NewBuilder(f.schema, f.reg, func() (string, error) {
		calls++
		return "same", nil
	})
	if _, err := stuck.Child("figure__items", nil, map[string]bool{"same": true}); !errors.Is(err, element.ErrIDExhausted) {
		t.Errorf("Child err = %v, want ErrIDExhausted", err)
	}
	if calls == 0 {
		t.Error("id generator never called")
	}
}

func TestNewUUID(t *testing.T) {
	a, err := element.NewUUID()
	if err != nil {
		t.Fatal(err)
	}
	b, err := element.NewUUID()
	if err != nil {
		t.Fatal(err)
	}
	if a == b || len(a) != 36 || a[14] != '7' {
		t.Errorf("NewUUID = %q, %q; want distinct v7 ids", a, b)
	}
}
