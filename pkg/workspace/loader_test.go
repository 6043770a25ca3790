package workspace

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/peektree/pkg/config"
	"github.com/vanderheijden86/peektree/pkg/tree"
)

const goodTree = `levels:
  - nodes:
      - {id: a, label: A}
      - {id: b, label: B, leaf: true}
  - parent: a
    nodes:
      - {id: c, label: C, leaf: true}
`

// Level 1 hangs off a node that does not exist.
const badTree = `levels:
  - nodes:
      - {id: a, label: A}
  - parent: missing
    nodes:
      - {id: c, label: C}
`

func writeHierarchy(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadAll_MixedResults(t *testing.T) {
	dir := t.TempDir()
	hierarchies := []config.Hierarchy{
		{Name: "good", Path: writeHierarchy(t, dir, "good.tree.yaml", goodTree)},
		{Name: "bad", Path: writeHierarchy(t, dir, "bad.tree.yaml", badTree)},
		{Name: "missing", Path: filepath.Join(dir, "nope.tree.yaml")},
	}

	results, err := LoadAll(context.Background(), hierarchies)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	// Results keep input order.
	for i, h := range hierarchies {
		if results[i].Name != h.Name {
			t.Errorf("result %d: expected %s, got %s", i, h.Name, results[i].Name)
		}
	}

	good := results[0]
	if !good.OK() || good.Tree == nil {
		t.Fatalf("expected good hierarchy to load: %v", good.Error)
	}
	if good.Stats.Levels != 2 || good.Stats.Nodes != 3 {
		t.Errorf("unexpected stats %+v", good.Stats)
	}

	bad := results[1]
	if bad.OK() {
		t.Fatal("expected bad hierarchy to fail")
	}
	var cerr *tree.ConfigError
	if !errors.As(bad.Error, &cerr) || !cerr.Has(tree.ReasonDanglingParent) {
		t.Errorf("expected dangling parent error, got %v", bad.Error)
	}
	if bad.Message == "" {
		t.Error("expected error message for JSON output")
	}

	if results[2].OK() {
		t.Error("expected missing file to fail")
	}

	summary := Summarize(results)
	if summary.Total != 3 || summary.Loaded != 1 || summary.Failed != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.TotalNodes != 3 {
		t.Errorf("expected 3 nodes, got %d", summary.TotalNodes)
	}
	if strings.Join(summary.FailedNames, ",") != "bad,missing" {
		t.Errorf("unexpected failed names %v", summary.FailedNames)
	}
}

func TestLoadAll_Empty(t *testing.T) {
	if _, err := LoadAll(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestLoadAll_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := LoadAll(ctx, []config.Hierarchy{
		{Name: "good", Path: writeHierarchy(t, dir, "good.tree.yaml", goodTree)},
	})
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if !errors.Is(results[0].Error, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", results[0].Error)
	}
}

func TestLoader_LogsFailures(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l := NewLoader()
	l.SetLogger(log.New(&buf, "", 0))

	_, err := l.LoadAll(context.Background(), []config.Hierarchy{
		{Name: "bad", Path: writeHierarchy(t, dir, "bad.tree.yaml", badTree)},
	})
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Failed to load hierarchy bad") {
		t.Errorf("expected failure to be logged, got %q", buf.String())
	}
}
