package storage

import (
	"os"
	"path/filepath"
	"testing"
)

type testDoc struct {
	Name  string         `json:"name"`
	Count int            `json:"count"`
	Items map[string]int `json:"items"`
}

func TestStore_LoadMissingFile(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "doc.json"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	doc := testDoc{Name: "untouched"}
	if err := store.Load(&doc); err != nil {
		t.Fatalf("Load on missing file should succeed, got: %v", err)
	}
	if doc.Name != "untouched" {
		t.Errorf("Load on missing file modified target: %+v", doc)
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	in := testDoc{Name: "acc1", Count: 3, Items: map[string]int{"a": 1, "b": 2}}
	if err := store.Save(in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var out testDoc
	if err := store.Load(&out); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out.Name != in.Name || out.Count != in.Count || len(out.Items) != 2 {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}

	// No temp file may survive a successful save.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after Save")
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "doc.json"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if err := store.Save(testDoc{Name: "first"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(testDoc{Name: "second"}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	var out testDoc
	if err := store.Load(&out); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out.Name != "second" {
		t.Errorf("expected latest state, got %q", out.Name)
	}
}
