package element_test

import (
	"slices"
	"testing"

	"github.com/eykd/prosemark-elements/internal/element"
	"github.com/eykd/prosemark-elements/internal/state"
)

// itemsPos is the position before the items repeater of a figure at 0:
// one opening token plus the sizes of the four fields before it.
func itemsPos(st *state.EditorState) int {
	return 1 + st.Doc.Child(0).Content.Offset(4)
}

func labels(t *testing.T, f *fixture, st *state.EditorState) []string {
	t.Helper()
	fm, err := f.agg.GetFields(st.Doc.Child(0))
	if err != nil {
		t.Fatalf("GetFields: %v", err)
	}
	var out []string
	for _, c := range fm.Get("items").Children {
		out = append(out, c.Get("label").Value.(string))
	}
	return out
}

func apply(t *testing.T, st *state.EditorState, tr *state.Transaction) *state.EditorState {
	t.Helper()
	if len(tr.Steps) != 1 {
		t.Fatalf("transaction has %d steps, want 1", len(tr.Steps))
	}
	next, err := st.Apply(tr)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := next.Doc.Check(); err != nil {
		t.Fatalf("invalid document: %v", err)
	}
	return next
}

func TestRepeater_RemoveFloor(t *testing.T) {
	f := newFixture(t)
	n := f.figure(t, map[string]any{"items": []map[string]any{{"label": "a"}, {"label": "b"}}})
	st := state.Create(state.Config{Doc: f.doc(t, n)})
	r := element.RepeaterAt(f.builder, itemsPos(st))

	if r.RemoveDisabled(st) {
		t.Fatal("RemoveDisabled with 2 children, want false")
	}
	tr, ok := r.RemoveChildAt(st, 0)
	if !ok {
		t.Fatal("first RemoveChildAt(0) refused")
	}
	st = apply(t, st, tr)
	if got := r.Len(st); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}
	if !slices.Equal(labels(t, f, st), []string{"b"}) {
		t.Errorf("labels = %v, want [b]", labels(t, f, st))
	}

	before := st.Doc
	for i := range 2 {
		if _, ok := r.RemoveChildAt(st, 0); ok {
			t.Fatalf("RemoveChildAt(0) #%d below floor succeeded", i+2)
		}
	}
	if st.Doc != before {
		t.Error("refused removal changed the document")
	}
	if got := r.Len(st); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
	if !r.RemoveDisabled(st) {
		t.Error("RemoveDisabled = false at the floor")
	}
}

func TestRepeater_AddChildAfter(t *testing.T) {
	f := newFixture(t)
	n := f.figure(t, map[string]any{"items": []map[string]any{{element.AttrID: "id-9", "label": "a"}}})
	st := state.Create(state.Config{Doc: f.doc(t, n)})
	r := element.RepeaterAt(f.builder, itemsPos(st))

	tr, ok := r.AddChildAfter(st, 0)
	if !ok {
		t.Fatal("AddChildAfter(0) refused")
	}
	st = apply(t, st, tr)
	tr, ok = r.AddChildAfter(st, -1)
	if !ok {
		t.Fatal("AddChildAfter(-1) refused")
	}
	st = apply(t, st, tr)

	if got, want := r.IDs(st), []string{"id-2", "id-9", "id-1"}; !slices.Equal(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
	if got, want := labels(t, f, st), []string{"", "a", ""}; !slices.Equal(got, want) {
		t.Errorf("labels = %v, want %v", got, want)
	}
	for _, bad := range []int{-2, 3} {
		if _, ok := r.AddChildAfter(st, bad); ok {
			t.Errorf("AddChildAfter(%d) succeeded", bad)
		}
	}
}

func TestRepeater_FreshIDsSkipUsed(t *testing.T) {
	f := newFixture(t)
	// id-1 is already taken by the existing child, so the generator's first
	// token is rejected.
	n := f.figure(t, map[string]any{"items": []map[string]any{{element.AttrID: "id-1"}}})
	st := state.Create(state.Config{Doc: f.doc(t, n)})
	r := element.RepeaterAt(f.builder, itemsPos(st))
	tr, ok := r.AddChildAfter(st, 0)
	if !ok {
		t.Fatal("AddChildAfter refused")
	}
	st = apply(t, st, tr)
	if got, want := r.IDs(st), []string{"id-1", "id-2"}; !slices.Equal(got, want) {
		t.Errorf("IDs = %v, want %v", got, want)
	}
}

func TestRepeater_MoveKeepsIdentity(t *testing.T) {
	f := newFixture(t)
	n := f.figure(t, map[string]any{"items": []map[string]any{
		{element.AttrID: "a", "label": "A"},
		{element.AttrID: "b", "label": "B"},
		{element.AttrID: "c", "label": "C"},
	}})
	st := state.Create(state.Config{Doc: f.doc(t, n)})
	r := element.RepeaterAt(f.builder, itemsPos(st))

	steps := []struct {
		name string
		op   func(*state.EditorState, int) (*state.Transaction, bool)
		idx  int
		ok   bool
		want []string
	}{
		{"up at top", r.MoveChildUp, 0, false, []string{"a", "b", "c"}},
		{"down at bottom", r.MoveChildDown, 2, false, []string{"a", "b", "c"}},
		{"down first", r.MoveChildDown, 0, true, []string{"b", "a", "c"}},
		{"up last", r.MoveChildUp, 2, true, []string{"b", "c", "a"}},
		{"up middle", r.MoveChildUp, 1, true, []string{"c", "b", "a"}},
		{"out of range", r.MoveChildUp, 5, false, []string{"c", "b", "a"}},
	}
	for _, s := range steps {
		tr, ok := s.op(st, s.idx)
		if ok != s.ok {
			t.Fatalf("%s: ok = %v, want %v", s.name, ok, s.ok)
		}
		if ok {
			st = apply(t, st, tr)
		}
		if got := r.IDs(st); !slices.Equal(got, s.want) {
			t.Fatalf("%s: IDs = %v, want %v", s.name, got, s.want)
		}
		fm, err := f.agg.GetFields(st.Doc.Child(0))
		if err != nil {
			t.Fatalf("%s: GetFields: %v", s.name, err)
		}
		for _, c := range fm.Get("items").Children {
			if c.Get("label").Value != string(rune('A'+c.ID[0]-'a')) {
				t.Errorf("%s: child %s carries label %v", s.name, c.ID, c.Get("label").Value)
			}
		}
	}
}

func TestRepeater_NotARepeater(t *testing.T) {
	f := newFixture(t)
	st := state.Create(state.Config{Doc: f.doc(t, f.figure(t, nil))})
	r := element.RepeaterAt(f.builder, 1) // the caption field
	if _, ok := r.AddChildAfter(st, 0); ok {
		t.Error("AddChildAfter on a text field succeeded")
	}
	if r.Len(st) != 0 || !r.RemoveDisabled(st) {
		t.Error("non-repeater reports children")
	}
	detached := element.NewRepeater(f.builder, func() (int, bool) { return 0, false }, nil)
	if _, ok := detached.RemoveChildAt(st, 0); ok {
		t.Error("detached repeater removed a child")
	}
}
