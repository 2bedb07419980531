// Package prefs persists the user's last search query across sessions.
// Read/write failures are non-fatal and read as an absent preference.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

type Prefs struct {
	SearchQuery string `toml:"search_query"`
}

const defaultPrefsPath = "~/.config/parkingd/prefs.toml"

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from the given path, degrading to the zero value on
// any failure.
func Load(path string) Prefs {
	resolved, err := resolvePath(path)
	if err != nil {
		return Prefs{}
	}

	b, err := os.ReadFile(resolved)
	if err != nil {
		return Prefs{}
	}

	var p Prefs
	if err := toml.Unmarshal(b, &p); err != nil {
		return Prefs{}
	}
	return p
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	b, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, b, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

// FileStore adapts the file-backed preferences to the catalog's store
// interface.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	if strings.TrimSpace(path) == "" {
		path = defaultPrefsPath
	}
	return &FileStore{path: path}
}

func (f *FileStore) LoadSearchQuery() string {
	return Load(f.path).SearchQuery
}

func (f *FileStore) SaveSearchQuery(q string) error {
	p := Load(f.path)
	p.SearchQuery = q
	return Save(f.path, p)
}

func resolvePath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = defaultPrefsPath
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("absolutize %q: %w", trimmed, err)
	}
	return abs, nil
}
