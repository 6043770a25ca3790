// Package loader reads hierarchy documents from disk and builds tree models.
//
// Supported sources are YAML, JSON, Markdown outlines, the original widget's
// HTML markup and SQLite databases. A directory named .peektree is resolved
// to the first tree.* file it contains.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/peektree/pkg/debug"
	"github.com/vanderheijden86/peektree/pkg/model"
	"github.com/vanderheijden86/peektree/pkg/tree"
)

// ErrUnsupported is returned for files with an unknown extension.
var ErrUnsupported = errors.New("unsupported hierarchy format")

// DirName is the per-project hierarchy folder.
const DirName = ".peektree"

// Parser converts raw document bytes into a hierarchy document.
type Parser interface {
	Parse(r io.Reader, filename string) (model.Document, error)
}

// SupportedExtensions lists file extensions that can hold a hierarchy.
var SupportedExtensions = map[string]bool{
	".yaml":     true,
	".yml":      true,
	".json":     true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".db":       true,
	".sqlite":   true,
}

// dirCandidates are tried in order inside a .peektree directory.
var dirCandidates = []string{
	"tree.yaml", "tree.yml", "tree.json", "tree.md", "tree.html", "tree.db",
}

// ForFile returns the parser for a filename. SQLite files have no stream
// parser; use LoadDocument for those.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".yaml", ".yml":
		return &YAMLParser{}, nil
	case ".json":
		return &JSONParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupported checks if a file extension is supported.
func IsSupported(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// IsDirCandidate reports whether name is one of the file names Resolve
// looks for inside a .peektree directory.
func IsDirCandidate(name string) bool {
	for _, c := range dirCandidates {
		if name == c {
			return true
		}
	}
	return false
}

// IsSQLite reports whether filename is read through the SQLite source.
func IsSQLite(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".db" || ext == ".sqlite"
}

// Resolve maps a .peektree directory to the hierarchy file inside it.
// Regular files are returned unchanged.
func Resolve(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return path, nil
	}
	for _, name := range dirCandidates {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no hierarchy file in %s (tried %s)", path, strings.Join(dirCandidates, ", "))
}

// LoadDocument reads the hierarchy document at path.
func LoadDocument(path string) (model.Document, error) {
	defer debug.LogEnterExit("loader.LoadDocument")()

	resolved, err := Resolve(path)
	if err != nil {
		return model.Document{}, err
	}
	debug.Log("loader: %s -> %s", path, resolved)

	if IsSQLite(resolved) {
		return LoadSQLite(resolved)
	}

	p, err := ForFile(resolved)
	if err != nil {
		return model.Document{}, err
	}
	f, err := os.Open(resolved)
	if err != nil {
		return model.Document{}, fmt.Errorf("open hierarchy: %w", err)
	}
	defer f.Close()

	doc, err := p.Parse(f, filepath.Base(resolved))
	if err != nil {
		return model.Document{}, fmt.Errorf("parse %s: %w", resolved, err)
	}
	return doc, nil
}

// Load reads and validates the hierarchy at path.
func Load(path string) (*tree.Model, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	t, err := tree.Build(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// titleFromFilename strips the directory and hierarchy suffixes.
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSuffix(base, ".tree")
}
