package satellite

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirectoryLoadAndSave(t *testing.T) {
	dir := NewDirectory(t.TempDir() + "/nested/satellites.json")

	entries, err := dir.Load()
	if err != nil || entries != nil {
		t.Fatalf("Expected empty load for missing file, got %v, %v", entries, err)
	}

	want := []Entry{{Name: "a", URL: "ws://h1"}, {Name: "b", URL: "http://h2"}}
	if err := dir.Save(want); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	got, err := dir.Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	if err := dir.Save(nil); err != nil {
		t.Fatalf("Save(nil) failed: %v", err)
	}
	if got, _ := dir.Load(); len(got) != 0 {
		t.Errorf("Expected empty directory, got %+v", got)
	}
}

func TestEntryRejectsWrongShape(t *testing.T) {
	var e Entry
	if err := e.UnmarshalJSON([]byte(`["only-name"]`)); err == nil {
		t.Error("Expected error for single-element entry")
	}
	if err := e.UnmarshalJSON([]byte(`{"name":"a"}`)); err == nil {
		t.Error("Expected error for object entry")
	}
}

func TestDirectoryHandEditedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "satellites.json")
	data := `[
  // polled from the lab
  ["lab", "http://10.0.0.7"],
  /* pushed */ ["echo", "ws://10.0.0.5"],
]`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write directory: %v", err)
	}

	entries, err := NewDirectory(path).Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %v", entries)
	}
	if entries[0] != (Entry{Name: "lab", URL: "http://10.0.0.7"}) || entries[1] != (Entry{Name: "echo", URL: "ws://10.0.0.5"}) {
		t.Errorf("Unexpected entries %v", entries)
	}
}

func TestDirectorySaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "satellites.json")
	if err := NewDirectory(path).Save(nil); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read directory: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("Expected [], got %s", data)
	}
}
