package ui

import (
	"strings"
	"testing"

	"github.com/vanderheijden86/peektree/pkg/model"
	"github.com/vanderheijden86/peektree/pkg/testutil"
	"github.com/vanderheijden86/peektree/pkg/tree"

	"github.com/mattn/go-runewidth"
)

func TestLayoutSlots(t *testing.T) {
	tests := []struct {
		name              string
		width, pct        int
		wantL, wantA, wan int
	}{
		{"default split", 100, 0, 20, 60, 20},
		{"explicit percent", 100, 50, 25, 50, 25},
		{"odd remainder goes right", 101, 60, 20, 60, 21},
		{"out of range falls back", 100, 150, 20, 60, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, a, r := layoutSlots(tt.width, 20, tt.pct)
			if l.Width != tt.wantL || a.Width != tt.wantA || r.Width != tt.wan {
				t.Errorf("widths = %d/%d/%d, want %d/%d/%d", l.Width, a.Width, r.Width, tt.wantL, tt.wantA, tt.wan)
			}
			if l.Width+a.Width+r.Width != tt.width {
				t.Errorf("slots do not cover the width: %d", l.Width+a.Width+r.Width)
			}
			if a.X != l.Width || r.X != l.Width+a.Width {
				t.Errorf("unexpected offsets %d, %d", a.X, r.X)
			}
			if a.Rows != 20-slotChromeRows {
				t.Errorf("expected %d rows, got %d", 20-slotChromeRows, a.Rows)
			}
		})
	}

	_, a, _ := layoutSlots(80, 1, 60)
	if a.Rows != 0 {
		t.Errorf("tiny height should give 0 rows, got %d", a.Rows)
	}
}

func TestScrollOffset(t *testing.T) {
	tests := []struct {
		cursor, n, rows, want int
	}{
		{0, 5, 10, 0},   // everything fits
		{3, 20, 10, 0},  // near the top
		{10, 20, 10, 5}, // centred
		{19, 20, 10, 10},
		{-1, 20, 10, 0}, // no cursor
		{5, 20, 0, 0},
	}
	for _, tt := range tests {
		if got := scrollOffset(tt.cursor, tt.n, tt.rows); got != tt.want {
			t.Errorf("scrollOffset(%d, %d, %d) = %d, want %d", tt.cursor, tt.n, tt.rows, got, tt.want)
		}
	}
}

func TestFit(t *testing.T) {
	if got := fit("abc", 6); got != "abc   " {
		t.Errorf("expected padding, got %q", got)
	}
	got := fit("Verschlüsselung", 8)
	if runewidth.StringWidth(got) != 8 || !strings.HasSuffix(got, "…") {
		t.Errorf("expected truncation to 8 cells, got %q", got)
	}
	if w := runewidth.StringWidth(fit("日本語テキスト", 7)); w != 7 {
		t.Errorf("wide runes should fill exactly 7 cells, got %d", w)
	}
	if fit("abc", 0) != "" {
		t.Error("zero width should render nothing")
	}
}

func TestRenderSlot(t *testing.T) {
	th := TestTheme()
	tm := tree.MustBuild(testutil.FeatureTree())
	lvl, _ := tm.Level(0)

	out := renderSlot(th, tm, slotView{Role: model.SlotActive, Level: lvl, Present: true, Cursor: 0, Preview: "save-time"}, 40, 10)
	for _, want := range []string{"Nutzen", "Zeit sparen", "Sicher bleiben", "Über uns", glyphLeaf, glyphBranch, "›"} {
		if !strings.Contains(out, want) {
			t.Errorf("slot missing %q:\n%s", want, out)
		}
	}

	empty := renderSlot(th, tm, slotView{Role: model.SlotPeekRight}, 40, 10)
	if strings.Contains(empty, "Nutzen") {
		t.Error("absent slot should render an empty frame")
	}
	if renderSlot(th, tm, slotView{Present: true, Level: lvl}, 2, 2) != "" {
		t.Error("slot without inner space should render nothing")
	}
}

func TestRenderSlot_DeadEndGlyph(t *testing.T) {
	doc := model.Document{Levels: []model.LevelSpec{
		{Nodes: []model.NodeSpec{{ID: "lonely", Label: "Lonely"}}},
	}}
	tm := tree.MustBuild(doc)
	lvl, _ := tm.Level(0)

	out := renderSlot(TestTheme(), tm, slotView{Role: model.SlotActive, Level: lvl, Present: true, Cursor: -1}, 30, 6)
	if !strings.Contains(out, glyphDeadEnd+" Lonely") {
		t.Errorf("branch without child level should use the dead-end glyph:\n%s", out)
	}
}

func crumbs(labels ...string) []model.Crumb {
	out := []model.Crumb{{Depth: model.RootCrumbDepth, Label: "Root", Active: len(labels) == 0}}
	for i, l := range labels {
		out = append(out, model.Crumb{Depth: i, Label: l, NodeID: l, Active: i == len(labels)-1})
	}
	return out
}

func TestLayoutCrumbs(t *testing.T) {
	spans := layoutCrumbs(crumbs("Alpha", "Beta"))
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	// " 0 Root › 1 Alpha › 2 Beta"
	if spans[0].Start != 1 || spans[0].End != 7 {
		t.Errorf("root span = %+v", spans[0])
	}
	if spans[1].Start != 10 || spans[1].Depth != 0 {
		t.Errorf("first crumb span = %+v", spans[1])
	}
	if spans[2].Depth != 1 {
		t.Errorf("second crumb depth = %d", spans[2].Depth)
	}
}

func TestCrumbAt(t *testing.T) {
	c := crumbs("Alpha", "Beta")
	if d, ok := crumbAt(c, 3, 80); !ok || d != model.RootCrumbDepth {
		t.Errorf("expected root crumb, got %d %v", d, ok)
	}
	if d, ok := crumbAt(c, 12, 80); !ok || d != 0 {
		t.Errorf("expected depth 0, got %d %v", d, ok)
	}
	if _, ok := crumbAt(c, 8, 80); ok {
		t.Error("separator should not hit a crumb")
	}
	if _, ok := crumbAt(c, 12, 10); ok {
		t.Error("collapsed bar should not be hit-tested")
	}
}

func TestRenderBreadcrumbs_Collapse(t *testing.T) {
	th := TestTheme()
	c := crumbs("First level", "Second level", "Third level", "Fourth level")

	full := renderBreadcrumbs(th, c, 200)
	if strings.Contains(full, "…") {
		t.Errorf("wide bar should not collapse: %s", full)
	}

	narrow := renderBreadcrumbs(th, c, 40)
	for _, want := range []string{"0 Root", "…", "4 Fourth level"} {
		if !strings.Contains(narrow, want) {
			t.Errorf("collapsed bar missing %q: %s", want, narrow)
		}
	}
	if strings.Contains(narrow, "First level") {
		t.Errorf("oldest crumb should be collapsed: %s", narrow)
	}
}
