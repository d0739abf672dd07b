package embed_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/eykd/prosemark-elements/internal/element"
	"github.com/eykd/prosemark-elements/internal/embed"
	"github.com/eykd/prosemark-elements/internal/field"
	"github.com/eykd/prosemark-elements/internal/model"
	"github.com/eykd/prosemark-elements/internal/state"
)

func noteSpec() element.Spec {
	return element.Spec{
		Name: "note",
		Fields: []field.Named{
			{Name: "title", Description: field.Description{
				Kind:       field.KindText,
				Validators: []field.Validator{field.MaxLength(5), field.Warn(field.Required())},
			}},
			{Name: "items", Description: field.Description{
				Kind:   field.KindRepeater,
				Fields: []field.Named{{Name: "label", Description: field.Description{Kind: field.KindText}}},
			}},
		},
	}
}

func newEmbed(t *testing.T) *embed.Embed {
	t.Helper()
	reg, err := element.NewRegistry(noteSpec())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ids := 0
	e, err := embed.New(embed.Config{
		Registry: reg,
		NewID: func() (string, error) {
			ids++
			return fmt.Sprintf("id-%d", ids), nil
		},
		Now: func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 890, time.FixedZone("x", 3600)) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func note(t *testing.T, e *embed.Embed, title string) *model.Node {
	t.Helper()
	n, err := e.Builder().Element("note", map[string]any{"title": title}, nil, nil)
	if err != nil {
		t.Fatalf("Element: %v", err)
	}
	return n
}

func para(t *testing.T, e *embed.Embed, text string) *model.Node {
	t.Helper()
	p, err := e.Schema().Node("paragraph", nil, e.Schema().Text(text))
	if err != nil {
		t.Fatalf("paragraph: %v", err)
	}
	return p
}

func doc(t *testing.T, e *embed.Embed, nodes ...*model.Node) *model.Node {
	t.Helper()
	d, err := e.Schema().Node(element.DocNode, nil, nodes...)
	if err != nil {
		t.Fatalf("doc: %v", err)
	}
	return d
}

func TestNew_RequiresRegistry(t *testing.T) {
	if _, err := embed.New(embed.Config{}); !errors.Is(err, embed.ErrNoRegistry) {
		t.Errorf("err = %v, want ErrNoRegistry", err)
	}
	reg, err := element.NewRegistry(noteSpec())
	if err != nil {
		t.Fatal(err)
	}
	bare, err := model.NewSchema(model.SchemaSpec{Nodes: element.BaseNodeSpecs(), Marks: element.MarkSpecs()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := embed.New(embed.Config{Registry: reg, Schema: bare}); !errors.Is(err, model.ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType for a schema without elements", err)
	}
}

func TestPlugin_SummaryAndFlags(t *testing.T) {
	e := newEmbed(t)
	// "toolong" (7) breaks maxLength(5); the empty title only warns.
	st, err := e.CreateState(doc(t, e, note(t, e, "toolong"), para(t, e, "x"), note(t, e, "")))
	if err != nil {
		t.Fatalf("CreateState: %v", err)
	}
	s := e.PluginState(st)
	if s == nil {
		t.Fatal("plugin state missing")
	}
	if !s.HasErrors || s.Count() != 2 {
		t.Fatalf("state = %+v", s)
	}
	if len(s.Errors) != 2 {
		t.Fatalf("errors = %v, want 2", s.Errors)
	}
	// Errors sort before warnings regardless of position.
	first, second := s.Errors[0], s.Errors[1]
	if first.Level != field.LevelError || first.Pos != 0 || first.Field != "title" || first.Message != "Too long: 7/5" {
		t.Errorf("first = %v", first)
	}
	if second.Level != field.LevelWarn || second.Pos == 0 {
		t.Errorf("second = %v", second)
	}
	if got := st.Doc.Child(0).Attr(element.AttrHasErrors); got != true {
		t.Errorf("first note hasErrors = %v, want true", got)
	}
	if got := st.Doc.Child(2).Attr(element.AttrHasErrors); got != false {
		t.Errorf("second note hasErrors = %v, want false (warnings only)", got)
	}
}

func TestPlugin_FlagFollowsEdits(t *testing.T) {
	e := newEmbed(t)
	st, err := e.CreateState(doc(t, e, note(t, e, "ok"), para(t, e, "x")))
	if err != nil {
		t.Fatalf("CreateState: %v", err)
	}
	before := e.PluginState(st).FieldsAt(0)

	// Editing the paragraph leaves the note node untouched, so its field
	// map is reused as is. The note is 4+6+2 = 12 wide; "x" sits at 13.
	tr := st.Tr()
	if err := tr.InsertText("y", 14, 14); err != nil {
		t.Fatal(err)
	}
	st, applied, err := st.ApplyTransaction(tr)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 1 {
		t.Errorf("applied = %d transactions, want 1", len(applied))
	}
	if got := e.PluginState(st).FieldsAt(0); got != before {
		t.Error("unchanged element's field map recomputed")
	}

	// Lengthening the title past the limit flips the flag in an appended
	// transaction. Title text occupies 2..4.
	tr = st.Tr()
	if err := tr.InsertText("ayyy", 4, 4); err != nil {
		t.Fatal(err)
	}
	st, applied, err = st.ApplyTransaction(tr)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 2 {
		t.Fatalf("applied = %d transactions, want the edit and the flag update", len(applied))
	}
	if applied[1].Meta(state.MetaAppendedTransaction) != tr {
		t.Error("flag update not tagged as appended to the edit")
	}
	if got := st.Doc.Child(0).Attr(element.AttrHasErrors); got != true {
		t.Errorf("hasErrors = %v, want true", got)
	}
	if !e.PluginState(st).HasErrors {
		t.Error("summary HasErrors = false")
	}

	// Selection-only transactions keep the summary.
	prev := e.PluginState(st)
	tr = st.Tr()
	tr.SetSelection(state.Cursor(3))
	if st, err = st.Apply(tr); err != nil {
		t.Fatal(err)
	}
	if e.PluginState(st) != prev {
		t.Error("summary recomputed for a selection change")
	}
}

func TestPlugin_StructureMismatch(t *testing.T) {
	e := newEmbed(t)
	good := note(t, e, "ok")
	broken, err := good.Type.Create(good.Attrs, good.Content.Cut(0, good.Child(0).Size()), nil)
	if err != nil {
		t.Fatal(err)
	}
	s := e.Validate(doc(t, e, broken))
	if !s.HasErrors || len(s.Errors) != 1 || s.Errors[0].Code != embed.CodeStructure {
		t.Errorf("state = %+v", s)
	}
}

func TestInsertElement_StampsAddedAt(t *testing.T) {
	e := newEmbed(t)
	st, err := e.CreateState(doc(t, e, para(t, e, "x")))
	if err != nil {
		t.Fatal(err)
	}
	tr, err := e.InsertElement(st, 0, "note", map[string]any{"title": "hi"})
	if err != nil {
		t.Fatalf("InsertElement: %v", err)
	}
	st, err = st.Apply(tr)
	if err != nil {
		t.Fatal(err)
	}
	n := st.Doc.Child(0)
	if got := n.Attr(element.AttrAddedAt); got != "2026-03-04T04:06:07Z" {
		t.Errorf("addedAt = %v", got)
	}
	if got := n.Child(1).Child(0).Attr(element.AttrID); got != "id-1" {
		t.Errorf("child id = %v, want id-1", got)
	}
	if _, err := e.InsertElement(st, 0, "missing", nil); !errors.Is(err, element.ErrUnknownElement) {
		t.Errorf("unknown element err = %v", err)
	}
}
