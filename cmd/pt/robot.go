package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/peektree/pkg/model"
	"github.com/vanderheijden86/peektree/pkg/nav"
	"github.com/vanderheijden86/peektree/pkg/tree"

	toon "github.com/Dicklesworthstone/toon-go"
	"github.com/agnivade/levenshtein"
	json "github.com/goccy/go-json"
)

// Output formats for robot commands.
const (
	formatJSON = "json"
	formatTOON = "toon"
)

// snapshotOutput is the --robot-snapshot payload.
type snapshotOutput struct {
	GeneratedAt string               `json:"generated_at"`
	Hierarchy   string               `json:"hierarchy"`
	Path        []string             `json:"path"`
	Snapshot    model.Snapshot       `json:"snapshot"`
	Breadcrumbs []model.Crumb        `json:"breadcrumbs"`
	Active      model.Level          `json:"active_level"`
	PeekLeft    *model.Level         `json:"peek_left,omitempty"`
	PeekRight   *model.Level         `json:"peek_right,omitempty"`
	Leaf        *model.LeafSelection `json:"leaf,omitempty"`
}

// levelsOutput is the --robot-levels payload.
type levelsOutput struct {
	GeneratedAt string        `json:"generated_at"`
	Title       string        `json:"title"`
	RootLabel   string        `json:"root_label"`
	Stats       tree.Stats    `json:"stats"`
	Levels      []model.Level `json:"levels"`
}

// pathError reports a path segment that matched no node on the active level.
type pathError struct {
	Segment     string
	Level       string
	Suggestions []string
}

func (e *pathError) Error() string {
	msg := fmt.Sprintf("no node %q on level %q", e.Segment, e.Level)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(quoteAll(e.Suggestions), ", "))
	}
	return msg
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

// splitPath accepts "A/C" as well as the "A → C" form printed for leaves.
func splitPath(path string) []string {
	sep := "/"
	if strings.Contains(path, strings.TrimSpace(model.PathSeparator)) {
		sep = strings.TrimSpace(model.PathSeparator)
	}
	var segments []string
	for _, s := range strings.Split(path, sep) {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// replayPath starts a fresh engine over t and drives it along path,
// matching each segment against the node ids and labels of the active
// level. Branches are descended; a leaf must be the final segment and is
// selected.
func replayPath(t *tree.Model, path string) (*nav.Engine, *model.LeafSelection, error) {
	var leaf *model.LeafSelection
	e := nav.New(t,
		nav.WithName("robot"),
		nav.WithLeafHandler(func(sel model.LeafSelection) {
			leaf = &sel
		}),
	)

	segments := splitPath(path)
	for i, seg := range segments {
		lvl := e.ActiveLevel()
		node, ok := matchNode(lvl, seg)
		if !ok {
			return e, nil, &pathError{Segment: seg, Level: levelName(lvl), Suggestions: suggest(seg, lvl)}
		}

		if node.Leaf {
			if i != len(segments)-1 {
				return e, nil, fmt.Errorf("%q is a leaf; it must be the last path segment", node.Label)
			}
			e.SelectLeaf(node.ID)
			break
		}

		before := e.Snapshot()
		if after := e.Descend(node.ID); after.Equal(before) {
			return e, nil, fmt.Errorf("%q has no child level", node.Label)
		}
	}
	return e, leaf, nil
}

func matchNode(lvl model.Level, seg string) (model.Node, bool) {
	for _, n := range lvl.Nodes {
		if n.ID == seg {
			return n, true
		}
	}
	for _, n := range lvl.Nodes {
		if strings.EqualFold(n.Label, seg) {
			return n, true
		}
	}
	return model.Node{}, false
}

func levelName(lvl model.Level) string {
	if lvl.Label != "" {
		return lvl.Label
	}
	return lvl.ID
}

// suggest returns up to three node labels close to seg by edit distance.
func suggest(seg string, lvl model.Level) []string {
	type candidate struct {
		label string
		dist  int
	}
	needle := strings.ToLower(seg)
	limit := len([]rune(needle))/3 + 2

	var cands []candidate
	for _, n := range lvl.Nodes {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(n.Label))
		if d <= limit {
			cands = append(cands, candidate{n.Label, d})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })

	var out []string
	for i := 0; i < len(cands) && i < 3; i++ {
		out = append(out, cands[i].label)
	}
	return out
}

// buildSnapshotOutput collects the engine state after a replay.
func buildSnapshotOutput(name string, e *nav.Engine, leaf *model.LeafSelection) snapshotOutput {
	snap := e.Snapshot()
	t := e.Tree()
	out := snapshotOutput{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Hierarchy:   name,
		Path:        e.Path(),
		Snapshot:    snap,
		Breadcrumbs: e.Breadcrumbs(),
		Active:      e.ActiveLevel(),
		Leaf:        leaf,
	}
	if snap.Visible.PeekLeft != nil {
		if lvl, ok := t.Level(*snap.Visible.PeekLeft); ok {
			out.PeekLeft = &lvl
		}
	}
	if snap.Visible.PeekRight != nil {
		if lvl, ok := t.Level(*snap.Visible.PeekRight); ok {
			out.PeekRight = &lvl
		}
	}
	return out
}

func buildLevelsOutput(t *tree.Model) levelsOutput {
	return levelsOutput{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Title:       t.Title(),
		RootLabel:   t.RootLabel(),
		Stats:       t.Stats(),
		Levels:      t.Levels(),
	}
}

// writeRobot encodes v in the requested format. TOON needs the tru binary;
// without it the output falls back to JSON with a warning on stderr.
func writeRobot(w io.Writer, v any, format string) error {
	switch format {
	case "", formatJSON:
	case formatTOON:
		if toon.Available() {
			out, err := toon.Encode(v)
			if err != nil {
				return fmt.Errorf("encode toon: %w", err)
			}
			_, err = io.WriteString(w, strings.TrimRight(out, "\n")+"\n")
			return err
		}
		fmt.Fprintln(os.Stderr, "Warning: tru binary not found, falling back to JSON output")
	default:
		return fmt.Errorf("unknown format %q (want json or toon)", format)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
