package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")

	if err := Save(path, Prefs{SearchQuery: "Gare"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := Load(path).SearchQuery; got != "Gare" {
		t.Fatalf("loaded query %q, want %q", got, "Gare")
	}
}

func TestLoad_MissingFileIsAbsentPreference(t *testing.T) {
	p := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if p.SearchQuery != "" {
		t.Fatalf("missing file should load as empty, got %q", p.SearchQuery)
	}
}

func TestLoad_CorruptFileIsAbsentPreference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("search_query = [not toml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Load(path).SearchQuery; got != "" {
		t.Fatalf("corrupt file should load as empty, got %q", got)
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")

	if err := NewFileStore(path).SaveSearchQuery("Comedie"); err != nil {
		t.Fatalf("save: %v", err)
	}
	// A fresh store simulates a process restart.
	if got := NewFileStore(path).LoadSearchQuery(); got != "Comedie" {
		t.Fatalf("restored query %q, want %q", got, "Comedie")
	}
}
