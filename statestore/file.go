package statestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/relaykit/deferral/internal/runtime/jsoncodec"
)

// File is a Store backed by a single JSON document on disk. Writes go
// through a temp file and rename, so a crash mid-write leaves the previous
// document intact. Good enough for the single carried message; use Sqlite
// when state grows beyond that.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile creates a file-backed store at path. The file is created on first
// Put; its directory must exist or be creatable.
func NewFile(path string) *File {
	return &File{path: path}
}

type fileDocument map[string]map[string][]byte

func (f *File) load() (fileDocument, error) {
	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return fileDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: read %s: %w", f.path, err)
	}

	var doc fileDocument
	if err := jsoncodec.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("statestore: parse %s: %w", f.path, err)
	}
	if doc == nil {
		doc = fileDocument{}
	}
	return doc, nil
}

func (f *File) save(doc fileDocument) error {
	blob, err := jsoncodec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("statestore: encode: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("statestore: create %s: %w", dir, err)
		}
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("statestore: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("statestore: replace %s: %w", f.path, err)
	}
	return nil
}

func (f *File) Put(_ context.Context, key string, blob []byte, scope string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if doc[scope] == nil {
		doc[scope] = make(map[string][]byte)
	}
	doc[scope][key] = append([]byte(nil), blob...)
	return f.save(doc)
}

func (f *File) Get(_ context.Context, key, scope string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	blob, ok := doc[scope][key]
	if !ok {
		return nil, nil
	}
	return blob, nil
}

func (f *File) Remove(_ context.Context, key, scope string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := doc[scope][key]; !ok {
		return nil
	}
	delete(doc[scope], key)
	if len(doc[scope]) == 0 {
		delete(doc, scope)
	}
	return f.save(doc)
}
