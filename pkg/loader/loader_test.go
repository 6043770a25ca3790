package loader

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/vanderheijden86/peektree/pkg/testutil"
	"github.com/vanderheijden86/peektree/pkg/tree"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const scenarioYAML = `title: Scenario
levels:
  - id: root
    label: Root
    nodes:
      - {id: A, label: A-label}
      - {id: B, label: B-label, leaf: true}
  - id: level1
    parent: A
    nodes:
      - {id: C, label: C-label}
  - id: level2
    parent: C
    nodes:
      - id: D
        label: D-label
        description: The deepest leaf.
        leaf: true
`

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "scenario.tree.yaml", scenarioYAML)
	tr, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tr.LevelCount() != 3 {
		t.Errorf("expected 3 levels, got %d", tr.LevelCount())
	}
	lvl, ok := tr.ChildLevelOf("C")
	if !ok || lvl.Index != 2 {
		t.Errorf("ChildLevelOf(C) = %d,%v", lvl.Index, ok)
	}
	d, _ := tr.Node("D")
	if d.Description != "The deepest leaf." || !d.Leaf {
		t.Errorf("unexpected node D: %+v", d)
	}
}

func TestYAMLRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "levels:\n  - nodes: []\n    colour: red\n")
	if _, err := LoadDocument(path); err == nil {
		t.Error("expected unknown field error")
	}
}

func TestLoadJSON(t *testing.T) {
	const src = `{
  "title": "Scenario",
  "levels": [
    {"id": "root", "nodes": [{"id": "A", "label": "A-label"}, {"id": "B", "label": "B-label", "leaf": true}]},
    {"id": "level1", "parent": "A", "nodes": [{"id": "C", "label": "C-label"}]},
    {"id": "level2", "parent": "C", "nodes": [{"id": "D", "label": "D-label", "leaf": true}]}
  ]
}`
	path := writeFile(t, t.TempDir(), "scenario.tree.json", src)
	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	want := testutil.Scenario()
	want.Levels[0].Label = ""
	if !reflect.DeepEqual(doc, want) {
		t.Errorf("decoded document mismatch:\n got %+v\nwant %+v", doc, want)
	}
}

func TestJSONDefaultsTitleFromFilename(t *testing.T) {
	path := writeFile(t, t.TempDir(), "catalog.tree.json", `{"levels":[{"nodes":[{"id":"x","label":"X"}]}]}`)
	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "catalog" {
		t.Errorf("expected title catalog, got %q", doc.Title)
	}
}

const widgetHTML = `<!DOCTYPE html>
<html>
<head><title>Feature Tree</title></head>
<body>
<nav class="breadcrumb"><span class="crumb">Nutzen</span></nav>
<div class="tree-viewport">
  <div class="tree-level" data-level="2" data-parent="save-time">
    <div class="tree-node" data-id="automation">
      <div class="node-content"><svg><text>icon</text></svg>
        <span class="node-headline">Automatisierung</span>
        <p class="node-description">Jobs run   by themselves.</p>
      </div>
    </div>
    <div class="tree-node leaf" data-id="templates"><span class="node-headline">Vorlagen</span></div>
  </div>
  <div class="tree-level" data-level="1">
    <div class="tree-node" data-id="save-time"><span class="node-headline">Zeit sparen</span></div>
    <div class="tree-node leaf" data-id="about"><span class="node-headline">Über uns</span></div>
  </div>
  <div class="tree-level" data-level="3" data-parent="automation" data-label="Mehr">
    <div class="tree-node leaf" data-id="scheduler"><span class="node-headline">Zeitplaner</span></div>
  </div>
</div>
</body>
</html>`

func TestLoadHTML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "widget.html", widgetHTML)
	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	if doc.Title != "Feature Tree" {
		t.Errorf("expected <title>, got %q", doc.Title)
	}
	if doc.RootLabel != "Nutzen" {
		t.Errorf("expected root label Nutzen, got %q", doc.RootLabel)
	}
	if len(doc.Levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(doc.Levels))
	}
	if doc.Levels[0].ParentNodeID != "" {
		t.Error("root level should be moved first")
	}
	if doc.Levels[1].ID != "level-save-time" || doc.Levels[1].Label != "Funktionen" {
		t.Errorf("unexpected level 1: %+v", doc.Levels[1])
	}
	if doc.Levels[2].Label != "Mehr" {
		t.Errorf("data-label should win, got %q", doc.Levels[2].Label)
	}

	auto := doc.Levels[1].Nodes[0]
	if auto.Label != "Automatisierung" || auto.Description != "Jobs run by themselves." || auto.Leaf {
		t.Errorf("unexpected node: %+v", auto)
	}
	if !doc.Levels[1].Nodes[1].Leaf {
		t.Error("templates should be a leaf")
	}

	if _, err := tree.Build(doc); err != nil {
		t.Errorf("widget markup should build: %v", err)
	}
}

// Leaves in the widget markup often carry no data-id at all.
const widgetNoIDsHTML = `<div class="tree-level" data-level="1">
  <div class="tree-node" data-id="a"><span class="node-headline">A</span></div>
  <div class="tree-node leaf"><span class="node-headline">B</span></div>
  <div class="tree-node leaf"><span class="node-headline">C</span></div>
</div>
<div class="tree-level" data-level="2" data-parent="a">
  <div class="tree-node leaf"><span class="node-headline">C</span></div>
  <div class="tree-node leaf" data-id="c-2"><span class="node-headline">Explicit</span></div>
  <div class="tree-node leaf"><span class="node-headline"></span></div>
</div>`

func TestHTMLWithoutNodeIDs(t *testing.T) {
	path := writeFile(t, t.TempDir(), "widget.html", widgetNoIDsHTML)
	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	tr, err := tree.Build(doc)
	if err != nil {
		t.Fatalf("id-less leaves should build: %v", err)
	}

	var ids []string
	for i := 0; i < tr.LevelCount(); i++ {
		lvl, _ := tr.Level(i)
		for _, n := range lvl.Nodes {
			ids = append(ids, n.ID)
		}
	}
	// c-2 is an explicit data-id, so the second "C" skips it.
	if got := strings.Join(ids, ","); got != "a,b,c,c-3,c-2,node" {
		t.Errorf("unexpected ids %s", got)
	}
	if n, ok := tr.Node("b"); !ok || n.Label != "B" || !n.Leaf {
		t.Errorf("unexpected node b: %+v", n)
	}
}

func TestHTMLWithoutLevels(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.html", "<html><body><p>nothing</p></body></html>")
	if _, err := LoadDocument(path); err == nil {
		t.Error("expected error for markup without levels")
	}
}

const outlineMD = `# Nutzen

Intro text is ignored.

- Save time
  Automate the boring parts.
  - Automation
    - Scheduler
    - Triggers
  - Templates
- Stay safe
  - Backup
- About
`

func TestLoadMarkdown(t *testing.T) {
	path := writeFile(t, t.TempDir(), "features.tree.md", outlineMD)
	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	if doc.RootLabel != "Nutzen" || doc.Title != "Nutzen" {
		t.Errorf("unexpected title/root label %q/%q", doc.Title, doc.RootLabel)
	}

	tr, err := tree.Build(doc)
	if err != nil {
		t.Fatalf("outline should build: %v", err)
	}
	if tr.LevelCount() != 4 {
		t.Errorf("expected 4 levels, got %d", tr.LevelCount())
	}

	root, _ := tr.Level(0)
	var ids []string
	for _, n := range root.Nodes {
		ids = append(ids, n.ID)
	}
	if strings.Join(ids, ",") != "save-time,stay-safe,about" {
		t.Errorf("unexpected root ids %v", ids)
	}

	save, _ := tr.Node("save-time")
	if save.Leaf || save.Description != "Automate the boring parts." {
		t.Errorf("unexpected save-time node %+v", save)
	}
	about, _ := tr.Node("about")
	if !about.Leaf {
		t.Error("about should be a leaf")
	}
	lvl, ok := tr.ChildLevelOf("automation")
	if !ok || len(lvl.Nodes) != 2 {
		t.Errorf("expected automation child level with 2 nodes, got %+v", lvl)
	}
}

func TestMarkdownDuplicateLabels(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dup.md", "- Details\n  - Details\n- Details\n")
	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tree.Build(doc); err != nil {
		t.Errorf("duplicate labels should get unique ids: %v", err)
	}
	if doc.Levels[0].Nodes[1].ID != "details-3" {
		t.Errorf("unexpected id %q", doc.Levels[0].Nodes[1].ID)
	}
}

func TestMarkdownSuffixDoesNotClashWithLabel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "plan.md", "- Plan\n- Plan\n- Plan 2\n")
	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tree.Build(doc); err != nil {
		t.Fatalf("outline should build: %v", err)
	}
	var ids []string
	for _, n := range doc.Levels[0].Nodes {
		ids = append(ids, n.ID)
	}
	if got := strings.Join(ids, ","); got != "plan,plan-2,plan-2-2" {
		t.Errorf("unexpected ids %s", got)
	}
}

func TestMarkdownWithoutList(t *testing.T) {
	path := writeFile(t, t.TempDir(), "plain.md", "# Title\n\nJust prose.\n")
	if _, err := LoadDocument(path); err == nil {
		t.Error("expected error for markdown without a list")
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.tree.db")
	want := testutil.FeatureTree()
	if err := SaveSQLite(path, want); err != nil {
		t.Fatalf("SaveSQLite failed: %v", err)
	}
	got, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	// Saving again replaces the previous content.
	if err := SaveSQLite(path, testutil.Scenario()); err != nil {
		t.Fatal(err)
	}
	tr, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if tr.NodeCount() != 4 {
		t.Errorf("expected 4 nodes after overwrite, got %d", tr.NodeCount())
	}
}

func TestSQLiteMissingFile(t *testing.T) {
	if _, err := LoadSQLite(filepath.Join(t.TempDir(), "missing.db")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestResolveDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join(DirName, "tree.json"), `{"levels":[{"nodes":[{"id":"x"}]}]}`)
	writeFile(t, dir, filepath.Join(DirName, "tree.md"), "- y\n")

	resolved, err := Resolve(filepath.Join(dir, DirName))
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(resolved) != "tree.json" {
		t.Errorf("expected tree.json to win, got %s", resolved)
	}

	if _, err := Resolve(t.TempDir()); err == nil {
		t.Error("expected error for directory without hierarchy")
	}
}

func TestLoadRejectsMalformed(t *testing.T) {
	const src = `levels:
  - nodes: [{id: A}]
  - parent: A
    nodes: [{id: X}]
  - parent: A
    nodes: [{id: Y}]
`
	path := writeFile(t, t.TempDir(), "bad.tree.yaml", src)
	_, err := Load(path)
	if !errors.Is(err, tree.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	var cerr *tree.ConfigError
	if !errors.As(err, &cerr) || !cerr.Has(tree.ReasonDuplicateParent) {
		t.Errorf("expected duplicate-parent problem, got %v", err)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"a.yaml", false},
		{"a.YML", false},
		{"a.json", false},
		{"a.md", false},
		{"a.htm", false},
		{"a.db", true},
		{"a.pdf", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%s) err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if tt.wantErr && !errors.Is(err, ErrUnsupported) {
			t.Errorf("ForFile(%s) should wrap ErrUnsupported", tt.name)
		}
	}
	if !IsSupported("x.tree.db") || IsSupported("x.txt") {
		t.Error("IsSupported mismatch")
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Save time":       "save-time",
		"  Über uns!  ":   "über-uns",
		"AES-256":         "aes-256",
		"***":             "",
		"Zeit / Geld":     "zeit-geld",
	}
	for in, want := range tests {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
