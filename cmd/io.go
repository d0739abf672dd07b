package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eykd/prosemark-elements/internal/markup"
	"github.com/eykd/prosemark-elements/internal/model"
)

// maxDocumentSize caps the documents the CLI will load.
const maxDocumentSize = 16 * 1024 * 1024

// DocumentIO handles file I/O for every command.
type DocumentIO interface {
	// ReadDefinitions reads the element definitions file at path.
	ReadDefinitions(ctx context.Context, path string) ([]byte, error)
	// ReadDocument reads the document at path.
	ReadDocument(ctx context.Context, path string) ([]byte, error)
	// WriteDocumentAtomic replaces the document at path via a temp file.
	WriteDocumentAtomic(ctx context.Context, path string, data []byte) error
}

// isJSON reports whether path names a JSON document; anything else is
// treated as HTML markup.
func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// decodeDocument parses data in the format path implies.
func decodeDocument(schema *model.Schema, path string, data []byte) (*model.Node, error) {
	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("document exceeds %d bytes", maxDocumentSize)
	}
	if isJSON(path) {
		return schema.NodeFromJSON(data)
	}
	return markup.ParseDoc(schema, string(data))
}

// encodeDocument serializes doc in the format path implies.
func encodeDocument(path string, doc *model.Node) ([]byte, error) {
	if isJSON(path) {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding document: %w", err)
		}
		return append(data, '\n'), nil
	}
	src, err := markup.Render(doc.Content)
	if err != nil {
		return nil, err
	}
	return []byte(src + "\n"), nil
}

// fileDocumentIO implements DocumentIO using OS file I/O.
// *Impl methods wrap OS calls and are excluded from coverage requirements.
type fileDocumentIO struct{}

func newDefaultDocumentIO() *fileDocumentIO {
	return &fileDocumentIO{}
}

// ReadDefinitions reads the element definitions file at path.
func (f *fileDocumentIO) ReadDefinitions(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ReadDocument reads the document at path.
func (f *fileDocumentIO) ReadDocument(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteDocumentAtomic writes data to path atomically via a temp file.
func (f *fileDocumentIO) WriteDocumentAtomic(ctx context.Context, path string, data []byte) error {
	return f.WriteDocumentAtomicImpl(ctx, path, data)
}

// WriteDocumentAtomicImpl performs the atomic write via OS temp file rename.
func (f *fileDocumentIO) WriteDocumentAtomicImpl(_ context.Context, path string, data []byte) error {
	if fi, statErr := os.Stat(path); statErr == nil {
		if fi.Mode().Perm()&0200 == 0 {
			return fmt.Errorf("document file is read-only")
		}
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pme-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
