package testutil

import (
	"testing"

	"github.com/vanderheijden86/peektree/pkg/model"
)

// AssertLevel verifies the active level of a snapshot.
func AssertLevel(t *testing.T, s model.Snapshot, want int) {
	t.Helper()
	if s.CurrentLevelIndex != want {
		t.Errorf("expected current level %d, got %d", want, s.CurrentLevelIndex)
	}
	if s.Visible.Active != s.CurrentLevelIndex {
		t.Errorf("visible.active (%d) out of sync with current level (%d)", s.Visible.Active, s.CurrentLevelIndex)
	}
}

// AssertHistoryNodes verifies the node ids recorded in history, oldest first.
func AssertHistoryNodes(t *testing.T, s model.Snapshot, want ...string) {
	t.Helper()
	if len(s.History) != len(want) {
		t.Errorf("expected history length %d, got %d (%+v)", len(want), len(s.History), s.History)
		return
	}
	for i, id := range want {
		if s.History[i].NodeID != id {
			t.Errorf("history[%d]: expected node %q, got %q", i, id, s.History[i].NodeID)
		}
	}
}

// AssertNoPreview verifies that no peek-right preview is pending.
func AssertNoPreview(t *testing.T, s model.Snapshot) {
	t.Helper()
	if s.PreviewChildIndex != nil {
		t.Errorf("expected no preview, got %d", *s.PreviewChildIndex)
	}
	if s.Visible.PeekRight != nil {
		t.Errorf("expected no peek-right, got %d", *s.Visible.PeekRight)
	}
}

// AssertPreview verifies the pending preview index.
func AssertPreview(t *testing.T, s model.Snapshot, want int) {
	t.Helper()
	if s.PreviewChildIndex == nil {
		t.Errorf("expected preview %d, got none", want)
		return
	}
	if *s.PreviewChildIndex != want {
		t.Errorf("expected preview %d, got %d", want, *s.PreviewChildIndex)
	}
}

// AssertSameSnapshot verifies two snapshots describe the same state.
func AssertSameSnapshot(t *testing.T, got, want model.Snapshot) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("snapshots differ:\n got: %+v\nwant: %+v", got, want)
	}
}
