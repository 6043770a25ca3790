// Package workspace loads every hierarchy known to the configuration at
// once, for validation runs and hierarchy pickers.
package workspace

import (
	"github.com/vanderheijden86/peektree/pkg/tree"
)

// LoadResult contains the result of loading a single hierarchy
type LoadResult struct {
	// Name is the display name of the hierarchy
	Name string `json:"name"`

	// Path is the file or .peektree directory that was loaded
	Path string `json:"path"`

	// Stats describes the hierarchy shape; zero when loading failed
	Stats tree.Stats `json:"stats"`

	// Tree is the built model, nil when loading failed
	Tree *tree.Model `json:"-"`

	// Error is set if loading failed
	Error error `json:"-"`

	// Message mirrors Error for JSON output
	Message string `json:"error,omitempty"`
}

// OK reports whether the hierarchy loaded cleanly.
func (r LoadResult) OK() bool {
	return r.Error == nil
}

// LoadSummary provides a summary of a multi-hierarchy load operation
type LoadSummary struct {
	Total       int      `json:"total"`
	Loaded      int      `json:"loaded"`
	Failed      int      `json:"failed"`
	TotalNodes  int      `json:"total_nodes"`
	FailedNames []string `json:"failed_names,omitempty"`
}

// Summarize creates a summary from load results
func Summarize(results []LoadResult) LoadSummary {
	summary := LoadSummary{Total: len(results)}
	for _, r := range results {
		if r.Error != nil {
			summary.Failed++
			summary.FailedNames = append(summary.FailedNames, r.Name)
			continue
		}
		summary.Loaded++
		summary.TotalNodes += r.Stats.Nodes
	}
	return summary
}
