package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/vanderheijden86/peektree/pkg/model"
	"github.com/vanderheijden86/peektree/pkg/tree"
)

// OutlineOptions controls markdown outline export.
type OutlineOptions struct {
	Title        string          // Heading; defaults to the tree's root label
	Descriptions bool            // Emit node descriptions under their items
	Snapshot     *model.Snapshot // When set, a "Current path" line is written
}

// GenerateOutline renders the hierarchy as a nested markdown list. The
// output reads back through the markdown loader into the same structure,
// except that branches without a child level come back as leaves.
func GenerateOutline(t *tree.Model, opts OutlineOptions) string {
	var sb strings.Builder

	title := opts.Title
	if title == "" {
		title = t.RootLabel()
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))

	if opts.Snapshot != nil && len(opts.Snapshot.History) > 0 {
		labels := make([]string, len(opts.Snapshot.History))
		for i, h := range opts.Snapshot.History {
			labels[i] = h.Label
		}
		sb.WriteString(fmt.Sprintf("Current path: %s\n\n", strings.Join(labels, model.PathSeparator)))
	}

	writeLevel(&sb, t, 0, 0, opts.Descriptions)
	return sb.String()
}

func writeLevel(sb *strings.Builder, t *tree.Model, index, depth int, descriptions bool) {
	lvl, ok := t.Level(index)
	if !ok {
		return
	}
	indent := strings.Repeat("  ", depth)
	for _, n := range lvl.Nodes {
		sb.WriteString(fmt.Sprintf("%s- %s\n", indent, oneLine(n.Label)))
		if descriptions && n.Description != "" {
			for _, line := range strings.Split(n.Description, "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				sb.WriteString(fmt.Sprintf("%s  %s\n", indent, strings.TrimSpace(line)))
			}
		}
		if child, ok := t.ChildLevelIndex(n.ID); ok {
			writeLevel(sb, t, child, depth+1, descriptions)
		}
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SaveOutlineToFile writes the generated outline to a file.
func SaveOutlineToFile(t *tree.Model, opts OutlineOptions, filename string) error {
	return os.WriteFile(filename, []byte(GenerateOutline(t, opts)), 0o644)
}
