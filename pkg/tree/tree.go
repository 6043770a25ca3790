// Package tree indexes a flat list of levels into a read-only hierarchy.
//
// A Model is built once from a model.Document and never changes afterwards,
// so any number of navigation engines may share it.
package tree

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/peektree/pkg/debug"
	"github.com/vanderheijden86/peektree/pkg/model"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// DefaultRootLabel is used for the root breadcrumb when the document names none.
const DefaultRootLabel = "Root"

// Model is the immutable hierarchy index.
type Model struct {
	title     string
	rootLabel string

	levels    []model.Level
	depth     []int          // distance from root per level index
	levelByID map[string]int // level id -> index
	childOf   map[string]int // parent node id -> child level index
	nodeLevel map[string]int // node id -> owning level index
	nodePos   map[string]int // node id -> position within its level
}

// Build validates doc and constructs the index. Any structural defect is
// reported as a *ConfigError; the returned Model is nil in that case.
func Build(doc model.Document) (*Model, error) {
	defer debug.LogEnterExit("tree.Build")()

	cerr := &ConfigError{}
	if len(doc.Levels) == 0 {
		cerr.add(ReasonEmpty, -1, "", "hierarchy has no levels")
		return nil, cerr
	}

	t := &Model{
		title:     doc.Title,
		levels:    make([]model.Level, len(doc.Levels)),
		depth:     make([]int, len(doc.Levels)),
		levelByID: make(map[string]int, len(doc.Levels)),
		childOf:   make(map[string]int, len(doc.Levels)),
		nodeLevel: make(map[string]int, doc.NodeCount()),
		nodePos:   make(map[string]int, doc.NodeCount()),
	}
	leaves := make(map[string]bool)

	// Pass 1: levels and nodes.
	for i, spec := range doc.Levels {
		id := strings.TrimSpace(spec.ID)
		if id == "" {
			id = fmt.Sprintf("level-%d", i)
		}
		if prev, dup := t.levelByID[id]; dup {
			cerr.add(ReasonDuplicateLevel, i, "", "level id %q already used by level %d", id, prev)
		} else {
			t.levelByID[id] = i
		}

		lvl := model.Level{
			Index:        i,
			ID:           id,
			ParentNodeID: strings.TrimSpace(spec.ParentNodeID),
			Label:        spec.Label,
			Nodes:        make([]model.Node, 0, len(spec.Nodes)),
		}
		for _, ns := range spec.Nodes {
			if err := ns.Validate(); err != nil {
				cerr.add(ReasonEmptyNodeID, i, "", "%v (label %q)", err, ns.Label)
				continue
			}
			nodeID := strings.TrimSpace(ns.ID)
			if prev, dup := t.nodeLevel[nodeID]; dup {
				cerr.add(ReasonDuplicateNode, i, nodeID, "node %q already declared on level %d", nodeID, prev)
				continue
			}
			t.nodeLevel[nodeID] = i
			t.nodePos[nodeID] = len(lvl.Nodes)
			if ns.Leaf {
				leaves[nodeID] = true
			}
			lvl.Nodes = append(lvl.Nodes, model.Node{
				ID:          nodeID,
				Label:       ns.DisplayLabel(),
				Description: ns.Description,
				Leaf:        ns.Leaf,
			})
		}
		t.levels[i] = lvl
	}

	// Pass 2: parent bindings.
	g := simple.NewDirectedGraph()
	for i := range t.levels {
		g.AddNode(simple.Node(i))
	}
	for i, lvl := range t.levels {
		parent := lvl.ParentNodeID
		if i == 0 {
			if parent != "" {
				cerr.add(ReasonRootHasParent, i, parent, "root level must not declare a parent (got %q)", parent)
			}
			continue
		}
		if parent == "" {
			cerr.add(ReasonMissingParent, i, "", "only the root level may omit its parent node")
			continue
		}
		if prev, dup := t.childOf[parent]; dup {
			cerr.add(ReasonDuplicateParent, i, parent, "node %q is already the parent of level %d", parent, prev)
			continue
		}
		owner, exists := t.nodeLevel[parent]
		if !exists {
			cerr.add(ReasonDanglingParent, i, parent, "parent node %q does not exist", parent)
			continue
		}
		if leaves[parent] {
			cerr.add(ReasonLeafWithChild, i, parent, "leaf node %q cannot own a child level", parent)
			continue
		}
		if owner == i {
			cerr.add(ReasonSelfParent, i, parent, "parent node %q lives on the level it parents", parent)
			continue
		}
		t.childOf[parent] = i
		g.SetEdge(g.NewEdge(simple.Node(owner), simple.Node(i)))
	}

	// Pass 3: every level must be reachable from the root.
	if len(cerr.Problems) == 0 {
		for i := range t.depth {
			t.depth[i] = -1
		}
		var bfs traverse.BreadthFirst
		bfs.Walk(g, simple.Node(0), func(n graph.Node, d int) bool {
			t.depth[n.ID()] = d
			return false
		})
		for i, d := range t.depth {
			if d < 0 {
				cerr.add(ReasonUnreachable, i, t.levels[i].ParentNodeID,
					"level %q cannot be reached from the root (parent chain forms a cycle)", t.levels[i].ID)
			}
		}
	}

	if len(cerr.Problems) > 0 {
		debug.Log("tree.Build rejected hierarchy: %v", cerr)
		return nil, cerr
	}

	t.rootLabel = firstNonEmpty(doc.RootLabel, t.levels[0].Label, doc.Title, DefaultRootLabel)
	debug.Log("tree.Build: %d levels, %d nodes, max depth %d", len(t.levels), len(t.nodeLevel), t.MaxDepth())
	return t, nil
}

// MustBuild is like Build but panics on error. Intended for tests and
// hierarchies compiled into the binary.
func MustBuild(doc model.Document) *Model {
	t, err := Build(doc)
	if err != nil {
		panic(err)
	}
	return t
}

// ChildLevelOf returns the level whose parent node is nodeID. It returns
// false for leaves, for branches without a modelled child level, and for
// unknown ids.
func (t *Model) ChildLevelOf(nodeID string) (model.Level, bool) {
	idx, ok := t.childOf[nodeID]
	if !ok {
		return model.Level{}, false
	}
	return t.levels[idx], true
}

// ChildLevelIndex is ChildLevelOf without copying the level.
func (t *Model) ChildLevelIndex(nodeID string) (int, bool) {
	idx, ok := t.childOf[nodeID]
	return idx, ok
}

// LevelIndex returns the stable slot position of the level with the given id.
func (t *Model) LevelIndex(levelID string) (int, bool) {
	idx, ok := t.levelByID[levelID]
	return idx, ok
}

// Level returns the level at index i. The returned Nodes slice is shared
// and must not be modified.
func (t *Model) Level(i int) (model.Level, bool) {
	if i < 0 || i >= len(t.levels) {
		return model.Level{}, false
	}
	return t.levels[i], true
}

// Levels returns all levels in canonical order.
func (t *Model) Levels() []model.Level {
	out := make([]model.Level, len(t.levels))
	copy(out, t.levels)
	return out
}

// LevelCount returns the number of levels.
func (t *Model) LevelCount() int {
	return len(t.levels)
}

// Node looks up a node by id.
func (t *Model) Node(id string) (model.Node, bool) {
	lvl, ok := t.nodeLevel[id]
	if !ok {
		return model.Node{}, false
	}
	return t.levels[lvl].Nodes[t.nodePos[id]], true
}

// LevelOfNode returns the index of the level owning node id.
func (t *Model) LevelOfNode(id string) (int, bool) {
	lvl, ok := t.nodeLevel[id]
	return lvl, ok
}

// OnLevel reports whether node id belongs to level index.
func (t *Model) OnLevel(id string, index int) bool {
	lvl, ok := t.nodeLevel[id]
	return ok && lvl == index
}

// IsBranch reports whether id is a branch node that resolves to a child level.
func (t *Model) IsBranch(id string) bool {
	_, ok := t.childOf[id]
	return ok
}

// Depth returns the distance of level index from the root (root = 0).
// Unknown indices report -1.
func (t *Model) Depth(index int) int {
	if index < 0 || index >= len(t.depth) {
		return -1
	}
	return t.depth[index]
}

// MaxDepth returns the depth of the deepest level.
func (t *Model) MaxDepth() int {
	maxDepth := 0
	for _, d := range t.depth {
		if d > maxDepth {
			maxDepth = d
		}
	}
	return maxDepth
}

// Title returns the document title.
func (t *Model) Title() string {
	return t.title
}

// RootLabel returns the label of the implicit root breadcrumb.
func (t *Model) RootLabel() string {
	return t.rootLabel
}

// NodeCount returns the number of nodes across all levels.
func (t *Model) NodeCount() int {
	return len(t.nodeLevel)
}

// Stats summarises the hierarchy shape.
type Stats struct {
	Levels   int `json:"levels"`
	Nodes    int `json:"nodes"`
	Leaves   int `json:"leaves"`
	Branches int `json:"branches"`
	DeadEnds int `json:"dead_ends"` // non-leaf nodes without a child level
	MaxDepth int `json:"max_depth"`
}

// Stats computes shape statistics.
func (t *Model) Stats() Stats {
	s := Stats{Levels: len(t.levels), Nodes: len(t.nodeLevel), MaxDepth: t.MaxDepth()}
	for _, lvl := range t.levels {
		for _, n := range lvl.Nodes {
			switch {
			case n.Leaf:
				s.Leaves++
			case t.IsBranch(n.ID):
				s.Branches++
			default:
				s.DeadEnds++
			}
		}
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
