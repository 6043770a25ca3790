package export

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/peektree/pkg/loader"
	"github.com/vanderheijden86/peektree/pkg/model"
	"github.com/vanderheijden86/peektree/pkg/nav"
	"github.com/vanderheijden86/peektree/pkg/testutil"
	"github.com/vanderheijden86/peektree/pkg/tree"
)

func TestGenerateOutline_Scenario(t *testing.T) {
	tr := tree.MustBuild(testutil.Scenario())

	got := GenerateOutline(tr, OutlineOptions{})
	want := "# Root\n\n- A-label\n  - C-label\n    - D-label\n- B-label\n"
	if got != want {
		t.Errorf("outline mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestGenerateOutline_CurrentPath(t *testing.T) {
	tr := tree.MustBuild(testutil.Scenario())
	e := nav.New(tr)
	e.Descend("A")
	snap := e.Descend("C")

	out := GenerateOutline(tr, OutlineOptions{Title: "Where am I", Snapshot: &snap})
	if !strings.HasPrefix(out, "# Where am I\n") {
		t.Errorf("expected custom title, got:\n%s", out)
	}
	if !strings.Contains(out, "Current path: A-label → C-label") {
		t.Errorf("expected current path line, got:\n%s", out)
	}
}

func TestGenerateOutline_Descriptions(t *testing.T) {
	tr := tree.MustBuild(testutil.FeatureTree())

	without := GenerateOutline(tr, OutlineOptions{})
	if strings.Contains(without, "Automate the boring parts.") {
		t.Error("descriptions should be omitted by default")
	}

	with := GenerateOutline(tr, OutlineOptions{Descriptions: true})
	if !strings.Contains(with, "- Zeit sparen\n  Automate the boring parts.\n") {
		t.Errorf("expected description under its item, got:\n%s", with)
	}
	if !strings.Contains(with, "      Runs jobs on a **cron** schedule.\n") {
		t.Errorf("expected nested description indentation, got:\n%s", with)
	}
}

func TestOutlineReadsBack(t *testing.T) {
	orig := tree.MustBuild(testutil.FeatureTree())
	out := GenerateOutline(orig, OutlineOptions{Descriptions: true})

	p := &loader.MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(out), "features.tree.md")
	if err != nil {
		t.Fatalf("parse exported outline: %v", err)
	}
	back, err := tree.Build(doc)
	if err != nil {
		t.Fatalf("build exported outline: %v", err)
	}

	if got, want := back.Stats(), orig.Stats(); got != want {
		t.Errorf("stats after round trip = %+v, want %+v", got, want)
	}
	if back.RootLabel() != "Nutzen" {
		t.Errorf("root label = %q, want Nutzen", back.RootLabel())
	}

	root, _ := back.Level(0)
	var labels []string
	for _, n := range root.Nodes {
		labels = append(labels, n.Label)
	}
	if got := strings.Join(labels, ","); got != "Zeit sparen,Sicher bleiben,Über uns" {
		t.Errorf("root labels = %s", got)
	}
	if root.Nodes[0].Description != "Automate the boring parts." {
		t.Errorf("description lost: %q", root.Nodes[0].Description)
	}
}

func TestSaveOutlineToFile(t *testing.T) {
	tr := tree.MustBuild(testutil.Scenario())
	path := filepath.Join(t.TempDir(), "outline.md")

	if err := SaveOutlineToFile(tr, OutlineOptions{}, path); err != nil {
		t.Fatalf("SaveOutlineToFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != GenerateOutline(tr, OutlineOptions{}) {
		t.Error("file content differs from generated outline")
	}
}

func TestSaveDiagram_SVG(t *testing.T) {
	tr := tree.MustBuild(testutil.FeatureTree())
	e := nav.New(tr)
	snap := e.Descend("save-time")

	path := filepath.Join(t.TempDir(), "nested", "diagram.svg")
	if err := SaveDiagram(tr, DiagramOptions{Path: path, Snapshot: &snap}); err != nil {
		t.Fatalf("SaveDiagram: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	svg := string(data)
	for _, want := range []string{"<svg", "Feature Tree", "Zeit sparen", "AES-256", "</svg>"} {
		if !strings.Contains(svg, want) {
			t.Errorf("svg missing %q", want)
		}
	}
	// One edge per child level.
	if got := strings.Count(svg, "<polygon"); got != 4 {
		t.Errorf("expected 4 edge arrows, got %d", got)
	}
}

func TestSaveDiagram_PNG(t *testing.T) {
	tr := tree.MustBuild(testutil.Scenario())
	path := filepath.Join(t.TempDir(), "diagram.png")

	if err := SaveDiagram(tr, DiagramOptions{Path: path}); err != nil {
		t.Fatalf("SaveDiagram: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() < 480 || img.Bounds().Dy() < 240 {
		t.Errorf("unexpected image size %v", img.Bounds())
	}
}

func TestSaveDiagram_Errors(t *testing.T) {
	tr := tree.MustBuild(testutil.Scenario())

	if err := SaveDiagram(nil, DiagramOptions{Path: "x.svg"}); err == nil {
		t.Error("expected error for nil tree")
	}
	if err := SaveDiagram(tr, DiagramOptions{}); err == nil {
		t.Error("expected error for missing path")
	}
	if err := SaveDiagram(tr, DiagramOptions{Path: "x.gif", Format: "gif"}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestSaveDiagram_AddsExtension(t *testing.T) {
	tr := tree.MustBuild(testutil.Scenario())
	base := filepath.Join(t.TempDir(), "diagram")

	if err := SaveDiagram(tr, DiagramOptions{Path: base}); err != nil {
		t.Fatalf("SaveDiagram: %v", err)
	}
	if _, err := os.Stat(base + ".svg"); err != nil {
		t.Errorf("expected %s.svg to exist: %v", base, err)
	}
}

func TestBuildDiagramRoles(t *testing.T) {
	tr := tree.MustBuild(testutil.Scenario())
	snap := model.Snapshot{
		CurrentLevelIndex: 1,
		Visible:           model.VisibleLevels{Active: 1, PeekLeft: model.IntPtr(0), PeekRight: model.IntPtr(2)},
	}

	l := buildDiagram(tr, DiagramOptions{Snapshot: &snap})
	want := []model.SlotRole{model.SlotPeekLeft, model.SlotActive, model.SlotPeekRight}
	for i, col := range l.Columns {
		if col.Role != want[i] {
			t.Errorf("column %d role = %s, want %s", i, col.Role, want[i])
		}
	}
	if len(l.Edges) != 2 {
		t.Errorf("expected 2 edges, got %d", len(l.Edges))
	}

	plain := buildDiagram(tr, DiagramOptions{})
	for _, col := range plain.Columns {
		if col.Role != model.SlotHidden {
			t.Errorf("column %d should not be highlighted without a snapshot", col.Index)
		}
	}
}
