package satellite

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"
)

// Entry is one persisted source. It is stored as a [name, url] pair.
type Entry struct {
	Name string
	URL  string
}

// MarshalJSON encodes the entry as a two-element array.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.Name, e.URL})
}

// UnmarshalJSON decodes a two-element array.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("directory entry must be [name, url], got %d elements", len(pair))
	}
	e.Name, e.URL = pair[0], pair[1]
	return nil
}

// Directory is a local, non-authoritative cache of known sources.
type Directory struct {
	path string
	mu   sync.Mutex
}

// NewDirectory returns a directory backed by the file at path.
func NewDirectory(path string) *Directory {
	return &Directory{path: path}
}

// Path returns the backing file.
func (d *Directory) Path() string { return d.path }

// Load reads the persisted entries. A missing file yields no entries. The file
// may carry // and /* */ comments and trailing commas when edited by hand.
func (d *Directory) Load() ([]Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(jsonc.ToJSON(data), &entries); err != nil {
		return nil, fmt.Errorf("parse directory %s: %w", d.path, err)
	}
	return entries, nil
}

// Save replaces the persisted entries atomically.
func (d *Directory) Save(entries []Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode directory: %w", err)
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".satellites-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write directory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close directory: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("replace directory: %w", err)
	}
	return nil
}
