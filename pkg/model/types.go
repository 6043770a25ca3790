package model

import (
	"fmt"
	"strings"
)

// Node is one entry on a level: a branch (owns a child level) or a leaf.
type Node struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Leaf        bool   `json:"leaf,omitempty"`
}

// Level is one rank of the hierarchy. Index is its position in the flat
// level sequence and doubles as its presentation slot.
type Level struct {
	Index        int    `json:"index"`
	ID           string `json:"id"`
	ParentNodeID string `json:"parent_node_id,omitempty"` // empty for the root level
	Label        string `json:"label,omitempty"`
	Nodes        []Node `json:"nodes"`
}

// IsRoot returns true if the level has no parent node.
func (l Level) IsRoot() bool {
	return l.ParentNodeID == ""
}

// HistoryEntry records the level that was active before a descend and the
// node that was drilled into.
type HistoryEntry struct {
	LevelIndex int    `json:"level_index"`
	NodeID     string `json:"node_id"`
	Label      string `json:"label"`
}

// VisibleLevels is the presentation-facing triple derived from navigation
// state. Every level index not named here is hidden.
type VisibleLevels struct {
	Active    int  `json:"active"`
	PeekLeft  *int `json:"peek_left,omitempty"`
	PeekRight *int `json:"peek_right,omitempty"`
}

// Role returns how the level at index should be presented.
// Active wins over peek-left, which wins over peek-right.
func (v VisibleLevels) Role(index int) SlotRole {
	switch {
	case index == v.Active:
		return SlotActive
	case v.PeekLeft != nil && *v.PeekLeft == index:
		return SlotPeekLeft
	case v.PeekRight != nil && *v.PeekRight == index:
		return SlotPeekRight
	default:
		return SlotHidden
	}
}

// SlotRole is the presentation role of a level slot.
type SlotRole string

const (
	SlotActive    SlotRole = "active"
	SlotPeekLeft  SlotRole = "peek-left"
	SlotPeekRight SlotRole = "peek-right"
	SlotHidden    SlotRole = "hidden"
)

// Snapshot is an immutable copy of navigation state handed to renderers.
type Snapshot struct {
	CurrentLevelIndex int            `json:"current_level_index"`
	Visible           VisibleLevels  `json:"visible_levels"`
	History           []HistoryEntry `json:"history"`
	SelectedNodeID    string         `json:"selected_node_id,omitempty"`
	PreviewChildIndex *int           `json:"preview_child_index,omitempty"`
}

// Depth returns the breadcrumb depth (root crumb included).
func (s Snapshot) Depth() int {
	return len(s.History) + 1
}

// Clone creates a deep copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	clone := s
	if s.History != nil {
		clone.History = make([]HistoryEntry, len(s.History))
		copy(clone.History, s.History)
	}
	clone.PreviewChildIndex = cloneInt(s.PreviewChildIndex)
	clone.Visible.PeekLeft = cloneInt(s.Visible.PeekLeft)
	clone.Visible.PeekRight = cloneInt(s.Visible.PeekRight)
	return clone
}

// Equal reports whether two snapshots describe the same navigation state.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.CurrentLevelIndex != o.CurrentLevelIndex || s.SelectedNodeID != o.SelectedNodeID {
		return false
	}
	if !equalInt(s.PreviewChildIndex, o.PreviewChildIndex) ||
		!equalInt(s.Visible.PeekLeft, o.Visible.PeekLeft) ||
		!equalInt(s.Visible.PeekRight, o.Visible.PeekRight) ||
		s.Visible.Active != o.Visible.Active {
		return false
	}
	if len(s.History) != len(o.History) {
		return false
	}
	for i := range s.History {
		if s.History[i] != o.History[i] {
			return false
		}
	}
	return true
}

// Crumb is one rendered breadcrumb. Depth -1 is the implicit root crumb;
// other depths index into the history.
type Crumb struct {
	Depth  int    `json:"depth"`
	Label  string `json:"label"`
	NodeID string `json:"node_id,omitempty"`
	Active bool   `json:"active,omitempty"`
}

// RootCrumbDepth is the depth value carried by the root breadcrumb.
const RootCrumbDepth = -1

// LeafSelection is the payload of the "leaf selected" notification.
type LeafSelection struct {
	NodeID     string   `json:"node_id"`
	Label      string   `json:"label"`
	LevelIndex int      `json:"level_index"`
	Path       []string `json:"path"` // labels from the first descend through the leaf
}

// PathSeparator joins path labels for display.
const PathSeparator = " → "

// String renders the path the way it is shown to users.
func (l LeafSelection) String() string {
	return strings.Join(l.Path, PathSeparator)
}

// Document is the flat hierarchy handed over by a hierarchy source.
type Document struct {
	Title     string      `json:"title,omitempty" yaml:"title,omitempty"`
	RootLabel string      `json:"root_label,omitempty" yaml:"root_label,omitempty"`
	Levels    []LevelSpec `json:"levels" yaml:"levels"`
}

// LevelSpec is one level as declared by a hierarchy source.
type LevelSpec struct {
	ID           string     `json:"id,omitempty" yaml:"id,omitempty"`
	ParentNodeID string     `json:"parent,omitempty" yaml:"parent,omitempty"`
	Label        string     `json:"label,omitempty" yaml:"label,omitempty"`
	Nodes        []NodeSpec `json:"nodes" yaml:"nodes"`
}

// NodeSpec is one node as declared by a hierarchy source.
type NodeSpec struct {
	ID          string `json:"id" yaml:"id"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Leaf        bool   `json:"leaf,omitempty" yaml:"leaf,omitempty"`
}

// Validate checks if the node data is logically valid
func (n *NodeSpec) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("node ID cannot be empty")
	}
	return nil
}

// DisplayLabel returns the label, falling back to the ID.
func (n NodeSpec) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// NodeCount returns the number of nodes across all levels.
func (d Document) NodeCount() int {
	total := 0
	for _, l := range d.Levels {
		total += len(l.Nodes)
	}
	return total
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// IntPtr returns a pointer to v. Handy for building snapshots in tests
// and adapters.
func IntPtr(v int) *int {
	return &v
}
