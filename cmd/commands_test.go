package cmd

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/eykd/prosemark-elements/internal/element"
	"github.com/eykd/prosemark-elements/internal/model"
)

func titlesOf(doc *model.Node) []string {
	var out []string
	for _, n := range doc.Content.Children() {
		out = append(out, n.Child(0).TextContent())
	}
	return out
}

func decodeResult(t *testing.T, out string) OpResult {
	t.Helper()
	var res OpResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decoding OpResult %q: %v", out, err)
	}
	return res
}

func TestValidateCmd(t *testing.T) {
	io := newMockIO(map[string][]byte{
		"bad.json":  noteDoc(t, "ok", "toolong"),
		"ok.json":   noteDoc(t, "ok"),
		"junk.json": []byte("{"),
	})

	out, _, err := run(io, "validate", "bad.json", "--elements", "defs.yaml")
	if err == nil {
		t.Fatal("expected validation error")
	}
	// The first note, titled "ok", spans 0..12.
	if want := "maxLength error 12:note.title Too long: 7/5\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	out, _, err = run(io, "validate", "bad.json", "--elements", "defs.yaml", "--json")
	if err == nil {
		t.Fatal("expected validation error")
	}
	res := decodeResult(t, out)
	if res.Changed || len(res.Diagnostics) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if d := res.Diagnostics[0]; d.Severity != SeverityError || d.Code != "maxLength" || d.Path != "12:note.title" {
		t.Errorf("diagnostic = %+v", d)
	}

	out, _, err = run(io, "validate", "ok.json", "--elements", "defs.yaml")
	if err != nil || out != "" {
		t.Errorf("valid document: out %q, err %v", out, err)
	}

	out, _, err = run(io, "validate", "junk.json", "--elements", "defs.yaml", "--json")
	if err == nil {
		t.Fatal("expected parse failure")
	}
	if res := decodeResult(t, out); len(res.Diagnostics) != 1 || res.Diagnostics[0].Code != CodeIOOrParseFailure {
		t.Errorf("result = %+v", res)
	}
	if len(io.written) != 0 {
		t.Error("validate wrote a document")
	}
}

func TestSyncCmd_WritesFlagsOnce(t *testing.T) {
	io := newMockIO(map[string][]byte{"doc.json": noteDoc(t, "toolong")})
	out, _, err := run(io, "sync", "doc.json", "--elements", "defs.yaml", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res := decodeResult(t, out); !res.Changed {
		t.Errorf("result = %+v, want changed", res)
	}
	doc := decodeWritten(t, io.written["doc.json"])
	if got := doc.Child(0).Attr(element.AttrHasErrors); got != true {
		t.Errorf("hasErrors = %v, want true", got)
	}

	io.files["doc.json"] = io.written["doc.json"]
	io.written = map[string][]byte{}
	out, _, err = run(io, "sync", "doc.json", "--elements", "defs.yaml", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res := decodeResult(t, out); res.Changed {
		t.Errorf("second sync changed the document")
	}
	if len(io.written) != 0 {
		t.Error("second sync wrote the document")
	}
}

func TestSyncCmd_KeepsFormattingWhenNothingChanges(t *testing.T) {
	io := newMockIO(map[string][]byte{"doc.json": noteDoc(t, "ok")})
	html, _, err := run(io, "render", "doc.json", "--elements", "defs.yaml")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	io.files["doc.html"] = []byte("\n  " + strings.TrimSpace(html) + "\n\n")
	out, _, err := run(io, "sync", "doc.html", "--elements", "defs.yaml", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res := decodeResult(t, out); res.Changed {
		t.Errorf("result = %+v, want unchanged", res)
	}
	if len(io.written) != 0 {
		t.Errorf("sync rewrote an up-to-date document: %q", io.written["doc.html"])
	}
}

func TestSyncCmd_WriteFailure(t *testing.T) {
	io := newMockIO(map[string][]byte{"doc.json": noteDoc(t, "toolong")})
	io.writeErr = errors.New("disk full")
	_, _, err := run(io, "sync", "doc.json", "--elements", "defs.yaml")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v, want write failure", err)
	}
}

func TestInsertCmd(t *testing.T) {
	io := newMockIO(map[string][]byte{"doc.json": noteDoc(t, "a")})
	out, _, err := run(io, "insert", "doc.json", "--elements", "defs.yaml", "--element", "note", "--at", "0", "--values", `{"title":"hi"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "Inserted note in doc.json") {
		t.Errorf("output = %q", out)
	}
	doc := decodeWritten(t, io.written["doc.json"])
	if got, want := titlesOf(doc), []string{"hi", "a"}; strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("titles = %v, want %v", got, want)
	}
	if addedAt, _ := doc.Child(0).Attr(element.AttrAddedAt).(string); !strings.HasSuffix(addedAt, "Z") {
		t.Errorf("addedAt = %q, want a UTC timestamp", addedAt)
	}

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"unknown element", []string{"--element", "nope"}, CodeElementNotFound},
		{"index out of range", []string{"--element", "note", "--at", "5"}, CodeRefused},
		{"invalid values", []string{"--element", "note", "--values", "{"}, CodeIOOrParseFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			io := newMockIO(map[string][]byte{"doc.json": noteDoc(t, "a")})
			args := append([]string{"insert", "doc.json", "--elements", "defs.yaml", "--json"}, tt.args...)
			out, _, err := run(io, args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if res := decodeResult(t, out); res.Changed || len(res.Diagnostics) != 1 || res.Diagnostics[0].Code != tt.code {
				t.Errorf("result = %+v, want %s", res, tt.code)
			}
			if len(io.written) != 0 {
				t.Error("failed insert wrote the document")
			}
		})
	}
}

func TestElementCmd(t *testing.T) {
	io := newMockIO(map[string][]byte{"doc.json": noteDoc(t, "a", "b", "c")})
	if _, _, err := run(io, "element", "bottom", "doc.json", "--elements", "defs.yaml", "--index", "0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(titlesOf(decodeWritten(t, io.written["doc.json"])), ","); got != "b,c,a" {
		t.Errorf("after bottom = %s, want b,c,a", got)
	}

	io = newMockIO(map[string][]byte{"doc.json": noteDoc(t, "a", "b")})
	if _, _, err := run(io, "element", "remove", "doc.json", "--elements", "defs.yaml", "--index", "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(titlesOf(decodeWritten(t, io.written["doc.json"])), ","); got != "a" {
		t.Errorf("after remove = %s, want a", got)
	}

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"up from the top", []string{"up", "doc.json", "--index", "0"}, CodeRefused},
		{"remove the only block", []string{"remove", "doc.json", "--index", "0"}, CodeRefused},
		{"no such element", []string{"down", "doc.json", "--index", "3"}, CodeElementNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			io := newMockIO(map[string][]byte{"doc.json": noteDoc(t, "a")})
			args := append([]string{"element"}, tt.args...)
			_, stderr, err := run(io, append(args, "--elements", "defs.yaml")...)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(stderr, "("+tt.code+")") {
				t.Errorf("stderr = %q, want %s", stderr, tt.code)
			}
			if len(io.written) != 0 {
				t.Error("refused command wrote the document")
			}
		})
	}
}

func TestRepeaterCmd(t *testing.T) {
	io := newMockIO(map[string][]byte{"doc.json": noteDoc(t, "a")})
	if _, _, err := run(io, "repeater", "add", "doc.json", "--elements", "defs.yaml", "--field", "items"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := decodeWritten(t, io.written["doc.json"])
	items := doc.Child(0).Child(1)
	if items.ChildCount() != 2 {
		t.Fatalf("items = %d, want 2", items.ChildCount())
	}
	first, _ := items.Child(0).Attr(element.AttrID).(string)
	second, _ := items.Child(1).Attr(element.AttrID).(string)
	if first == "" || second == "" || first == second {
		t.Errorf("child ids = %q, %q, want distinct", first, second)
	}

	// Swapping the two children keeps their ids.
	io.files["doc.json"] = io.written["doc.json"]
	if _, _, err := run(io, "repeater", "up", "doc.json", "--elements", "defs.yaml", "--field", "items", "--child", "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items = decodeWritten(t, io.written["doc.json"]).Child(0).Child(1)
	if items.Child(0).Attr(element.AttrID) != second || items.Child(1).Attr(element.AttrID) != first {
		t.Error("children not swapped")
	}

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"remove below the floor", []string{"remove", "doc.json", "--field", "items", "--child", "0"}, CodeRefused},
		{"not a repeater", []string{"add", "doc.json", "--field", "title"}, CodeFieldNotFound},
		{"no such element", []string{"add", "doc.json", "--field", "items", "--index", "1"}, CodeElementNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			io := newMockIO(map[string][]byte{"doc.json": noteDoc(t, "a")})
			args := append([]string{"repeater"}, tt.args...)
			out, _, err := run(io, append(args, "--elements", "defs.yaml", "--json")...)
			if err == nil {
				t.Fatal("expected error")
			}
			if res := decodeResult(t, out); len(res.Diagnostics) != 1 || res.Diagnostics[0].Code != tt.code {
				t.Errorf("result = %+v, want %s", res, tt.code)
			}
		})
	}
}

func TestRenderAndParseCmds(t *testing.T) {
	io := newMockIO(map[string][]byte{"doc.json": noteDoc(t, "a<b")})
	out, _, err := run(io, "render", "doc.json", "--elements", "defs.yaml")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `pme-element="note"`) || !strings.Contains(out, "a&lt;b") {
		t.Errorf("render output = %q", out)
	}

	io.files["doc.html"] = []byte(out)
	out, _, err = run(io, "parse", "doc.html", "--elements", "defs.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	schema := testEmbed(t).Schema()
	want := decodeWith(t, schema, io.files["doc.json"])
	got := decodeWith(t, schema, []byte(out))
	if !got.Eq(want) {
		t.Errorf("round trip = %s, want %s", out, io.files["doc.json"])
	}

	if _, _, err := run(io, "render", "doc.html", "--elements", "defs.yaml"); err == nil {
		t.Error("render accepted markup instead of JSON")
	}
}

func TestSchemaCmd(t *testing.T) {
	io := newMockIO(nil)
	out, _, err := run(io, "schema", "--elements", "defs.yaml", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var types []NodeTypeJSON
	if err := json.Unmarshal([]byte(out), &types); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	byName := map[string]NodeTypeJSON{}
	for _, nt := range types {
		byName[nt.Name] = nt
	}
	if nt := byName["note"]; !nt.Element || nt.Content != "note__title note__items" {
		t.Errorf("note = %+v", nt)
	}
	if nt := byName["note__items"]; nt.Content != "note__items__child+" {
		t.Errorf("note__items = %+v", nt)
	}
	if _, ok := byName["note__items__child__label"]; !ok {
		t.Error("repeater child field missing")
	}

	out, _, err = run(io, "schema", "--elements", "defs.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "note__items__child") {
		t.Errorf("text output = %q", out)
	}
}
