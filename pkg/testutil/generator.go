// Package testutil provides hierarchy fixtures and generators for tests.
// All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vanderheijden86/peektree/pkg/model"

	"pgregory.net/rapid"
)

// Scenario returns the canonical three-level hierarchy:
//
//	level 0 (root): A [branch -> level 1], B [leaf]
//	level 1 (parent A): C [branch -> level 2]
//	level 2 (parent C): D [leaf]
func Scenario() model.Document {
	return model.Document{
		Title: "Scenario",
		Levels: []model.LevelSpec{
			{ID: "root", Label: "Root", Nodes: []model.NodeSpec{
				{ID: "A", Label: "A-label"},
				{ID: "B", Label: "B-label", Leaf: true},
			}},
			{ID: "level1", ParentNodeID: "A", Nodes: []model.NodeSpec{
				{ID: "C", Label: "C-label"},
			}},
			{ID: "level2", ParentNodeID: "C", Nodes: []model.NodeSpec{
				{ID: "D", Label: "D-label", Leaf: true},
			}},
		},
	}
}

// FeatureTree returns a product-feature hierarchy in the shape of the
// original widget: benefits, then functions, then details.
func FeatureTree() model.Document {
	return model.Document{
		Title:     "Feature Tree",
		RootLabel: "Nutzen",
		Levels: []model.LevelSpec{
			{ID: "benefits", Label: "Nutzen", Nodes: []model.NodeSpec{
				{ID: "save-time", Label: "Zeit sparen", Description: "Automate the boring parts."},
				{ID: "stay-safe", Label: "Sicher bleiben", Description: "Keep data protected."},
				{ID: "about", Label: "Über uns", Leaf: true},
			}},
			{ID: "time-functions", ParentNodeID: "save-time", Label: "Funktionen", Nodes: []model.NodeSpec{
				{ID: "automation", Label: "Automatisierung"},
				{ID: "templates", Label: "Vorlagen", Leaf: true},
			}},
			{ID: "safety-functions", ParentNodeID: "stay-safe", Label: "Funktionen", Nodes: []model.NodeSpec{
				{ID: "backup", Label: "Backup", Leaf: true},
				{ID: "encryption", Label: "Verschlüsselung"},
			}},
			{ID: "automation-details", ParentNodeID: "automation", Label: "Details", Nodes: []model.NodeSpec{
				{ID: "scheduler", Label: "Zeitplaner", Description: "Runs jobs on a **cron** schedule.", Leaf: true},
				{ID: "triggers", Label: "Auslöser", Leaf: true},
			}},
			{ID: "encryption-details", ParentNodeID: "encryption", Label: "Details", Nodes: []model.NodeSpec{
				{ID: "aes", Label: "AES-256", Leaf: true},
			}},
		},
	}
}

// GeneratorConfig controls random hierarchy generation.
type GeneratorConfig struct {
	Seed         int64   // Random seed for determinism (0 = use current time)
	Levels       int     // Number of levels to create (default 6)
	MaxNodes     int     // Maximum nodes per level (default 4)
	LeafRatio    float64 // Probability a node is a leaf (default 0.3)
	IncludeDescr bool    // Attach descriptions to nodes
	IDPrefix     string  // Prefix for node IDs (default "n")
	DeadEndRatio float64 // Probability a branch stays without child level
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:      42,
		Levels:    6,
		MaxNodes:  4,
		LeafRatio: 0.3,
		IDPrefix:  "n",
	}
}

// Generator creates valid hierarchies.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.Levels <= 0 {
		cfg.Levels = 6
	}
	if cfg.MaxNodes <= 0 {
		cfg.MaxNodes = 4
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "n"
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Document generates a valid hierarchy. Fewer levels than requested are
// produced when every node ends up a leaf.
func (g *Generator) Document() model.Document {
	doc := model.Document{Title: "generated"}
	var open []string // branch nodes still without a child level

	addLevel := func(parent string) {
		idx := len(doc.Levels)
		lvl := model.LevelSpec{ID: fmt.Sprintf("L%d", idx), ParentNodeID: parent}
		count := 1 + g.rng.Intn(g.cfg.MaxNodes)
		for j := 0; j < count; j++ {
			id := fmt.Sprintf("%s%d_%d", g.cfg.IDPrefix, idx, j)
			leaf := g.rng.Float64() < g.cfg.LeafRatio
			ns := model.NodeSpec{ID: id, Label: fmt.Sprintf("Node %d.%d", idx, j), Leaf: leaf}
			if g.cfg.IncludeDescr {
				ns.Description = fmt.Sprintf("Description of %s", id)
			}
			lvl.Nodes = append(lvl.Nodes, ns)
			if !leaf {
				open = append(open, id)
			}
		}
		doc.Levels = append(doc.Levels, lvl)
	}

	addLevel("")
	for len(doc.Levels) < g.cfg.Levels && len(open) > 0 {
		pick := g.rng.Intn(len(open))
		parent := open[pick]
		open = append(open[:pick], open[pick+1:]...)
		if g.cfg.DeadEndRatio > 0 && g.rng.Float64() < g.cfg.DeadEndRatio {
			continue
		}
		addLevel(parent)
	}
	return doc
}

// Chain generates a single path of depth levels, each with one branch node
// and one leaf. Useful for deep navigation benchmarks.
func Chain(depth int) model.Document {
	doc := model.Document{Title: "chain"}
	parent := ""
	for i := 0; i < depth; i++ {
		branch := fmt.Sprintf("b%d", i)
		doc.Levels = append(doc.Levels, model.LevelSpec{
			ID:           fmt.Sprintf("L%d", i),
			ParentNodeID: parent,
			Nodes: []model.NodeSpec{
				{ID: branch, Label: fmt.Sprintf("Branch %d", i)},
				{ID: fmt.Sprintf("leaf%d", i), Label: fmt.Sprintf("Leaf %d", i), Leaf: true},
			},
		})
		parent = branch
	}
	return doc
}

// DocumentGen is a rapid generator of valid hierarchies.
func DocumentGen() *rapid.Generator[model.Document] {
	return rapid.Custom(func(t *rapid.T) model.Document {
		cfg := GeneratorConfig{
			Seed:         rapid.Int64Range(1, 1<<40).Draw(t, "seed"),
			Levels:       rapid.IntRange(1, 10).Draw(t, "levels"),
			MaxNodes:     rapid.IntRange(1, 5).Draw(t, "maxNodes"),
			LeafRatio:    rapid.Float64Range(0, 0.6).Draw(t, "leafRatio"),
			DeadEndRatio: rapid.Float64Range(0, 0.3).Draw(t, "deadEndRatio"),
		}
		return New(cfg).Document()
	})
}

// NodeIDs returns every node id in doc, level by level.
func NodeIDs(doc model.Document) []string {
	var ids []string
	for _, l := range doc.Levels {
		for _, n := range l.Nodes {
			ids = append(ids, n.ID)
		}
	}
	return ids
}
