package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileDocumentIO_WriteDocumentAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	content := []byte(`{"type":"doc"}`)

	fio := newDefaultDocumentIO()
	if err := fio.WriteDocumentAtomic(context.Background(), path, content); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := fio.ReadDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error reading written file: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("written content = %q, want %q", got, content)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only the document", len(entries))
	}
}

func TestFileDocumentIO_WriteDocumentAtomic_Failures(t *testing.T) {
	fio := newDefaultDocumentIO()
	missing := filepath.Join(t.TempDir(), "nonexistent-dir", "doc.json")
	if err := fio.WriteDocumentAtomic(context.Background(), missing, []byte("x")); err == nil {
		t.Error("expected error writing to nonexistent directory")
	}

	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte("orig"), 0400); err != nil {
		t.Fatal(err)
	}
	err := fio.WriteDocumentAtomic(context.Background(), path, []byte("new"))
	if err == nil || !strings.Contains(err.Error(), "read-only") {
		t.Errorf("err = %v, want read-only refusal", err)
	}
	if got, _ := os.ReadFile(path); string(got) != "orig" {
		t.Errorf("read-only document changed to %q", got)
	}
}

func TestDocumentFormat(t *testing.T) {
	tests := []struct {
		path string
		json bool
	}{
		{"doc.json", true},
		{"DOC.JSON", true},
		{"doc.html", false},
		{"doc", false},
	}
	for _, tt := range tests {
		if got := isJSON(tt.path); got != tt.json {
			t.Errorf("isJSON(%q) = %v, want %v", tt.path, got, tt.json)
		}
	}
}

func TestDecodeDocument_Markup(t *testing.T) {
	e := testEmbed(t)
	src := `<div pme-element="note" has-errors="true"><div pme-field="note__title">hey</div>` +
		`<div pme-field="note__items"><div pme-child="note__items__child" pme-id="x">` +
		`<div pme-field="note__items__child__label"></div></div></div></div>`
	doc, err := decodeDocument(e.Schema(), "doc.html", []byte(src))
	if err != nil {
		t.Fatalf("decodeDocument: %v", err)
	}
	n := doc.Child(0)
	if n.Type.Name != "note" || n.Child(0).TextContent() != "hey" || n.Attr("hasErrors") != true {
		t.Errorf("decoded %s", n)
	}
	if _, err := decodeDocument(e.Schema(), "doc.html", []byte("loose text")); err == nil {
		t.Error("accepted text at the top level")
	}
}
