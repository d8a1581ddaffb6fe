package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// JSONFile persists the ledger as a single indented JSON document.
type JSONFile struct {
	path string
}

// NewJSONFile returns a persister for the document at path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Path returns the file location.
func (f *JSONFile) Path() string {
	return f.path
}

// Load reads the document. A missing file is an empty ledger.
func (f *JSONFile) Load(ctx context.Context) (*Document, error) {
	const op = "JSONFile.Load"

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(data) == 0 {
		return NewDocument(), nil
	}

	doc, err := UnmarshalDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, f.path, err)
	}
	return doc, nil
}

// Save replaces the file contents. The new document is written to a
// temporary file in the same directory and renamed over the old one.
func (f *JSONFile) Save(ctx context.Context, doc *Document) error {
	const op = "JSONFile.Save"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	data, err := MarshalDocument(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%s: create directory: %w", op, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%s: create temp file: %w", op, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%s: write: %w", op, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%s: sync: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: close: %w", op, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("%s: rename: %w", op, err)
	}
	return nil
}
