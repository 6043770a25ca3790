package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vanderheijden86/peektree/pkg/loader"
)

// DiscoverHierarchies scans directories for hierarchy files and .peektree/
// folders. It merges discovered entries with registered hierarchies,
// preferring the registered name when a path matches.
func DiscoverHierarchies(cfg Config) []Hierarchy {
	seen := make(map[string]bool)
	var result []Hierarchy

	// Start with registered hierarchies
	for _, h := range cfg.Hierarchies {
		resolved := h.ResolvedPath()
		seen[resolved] = true
		result = append(result, h)
	}

	// Scan discovery paths
	for _, scanPath := range cfg.Discovery.ScanPaths {
		maxDepth := cfg.Discovery.MaxDepth
		if maxDepth <= 0 {
			maxDepth = 3
		}
		found := scanForHierarchies(scanPath, maxDepth)
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				result = append(result, Hierarchy{
					Name: hierarchyName(f),
					Path: f,
				})
			}
		}
	}

	return result
}

// IsHierarchyFile reports whether name follows the *.tree.<ext> convention.
func IsHierarchyFile(name string) bool {
	if !loader.IsSupported(name) {
		return false
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(base, ".tree")
}

// hierarchyName derives a display name: the file stem for *.tree.* files,
// the enclosing project directory for .peektree folders.
func hierarchyName(path string) string {
	if filepath.Base(path) == loader.DirName {
		return filepath.Base(filepath.Dir(path))
	}
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSuffix(base, ".tree")
}

// scanForHierarchies walks a directory tree up to maxDepth levels deep,
// collecting *.tree.* files and .peektree/ directories.
func scanForHierarchies(root string, maxDepth int) []string {
	root = expandHome(root)
	var results []string

	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return filepath.SkipDir
		}

		currentDepth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
		name := d.Name()

		if !d.IsDir() {
			if currentDepth <= maxDepth+1 && IsHierarchyFile(name) {
				results = append(results, path)
			}
			return nil
		}

		if currentDepth > maxDepth {
			return filepath.SkipDir
		}

		if name == loader.DirName {
			results = append(results, path)
			return filepath.SkipDir // The loader resolves the file inside
		}

		// Skip hidden directories
		if path != root && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}

		return nil
	})

	sort.Strings(results)
	return results
}

// DetectCurrentHierarchy attempts to find the hierarchy for the current
// directory: a *.tree.* file in the working directory, or a .peektree/
// folder in it or any parent up to the home directory.
func DetectCurrentHierarchy() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	if f, ok := hierarchyFileIn(dir); ok {
		return f, true
	}
	return findPeektreeRoot(dir)
}

func hierarchyFileIn(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() && IsHierarchyFile(e.Name()) {
			return filepath.Join(dir, e.Name()), true
		}
	}
	return "", false
}

// findPeektreeRoot walks up from dir looking for a .peektree/ directory.
func findPeektreeRoot(dir string) (string, bool) {
	home, _ := os.UserHomeDir()

	for {
		candidate := filepath.Join(dir, loader.DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached filesystem root
		}
		// Don't go above home directory
		if home != "" && dir == home {
			break
		}
		dir = parent
	}
	return "", false
}
