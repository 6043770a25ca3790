// Package nav implements the drill-down navigation state machine.
//
// An Engine owns exactly one navigation state over a shared, read-only
// tree.Model. Every operation is total: calls that do not apply to the
// current state (stale clicks, backing up at the root, out-of-range
// breadcrumbs) leave the state untouched and return the unchanged snapshot.
//
// Engines are not safe for concurrent use. Callers serialize access.
package nav

import (
	"github.com/vanderheijden86/peektree/pkg/debug"
	"github.com/vanderheijden86/peektree/pkg/model"
	"github.com/vanderheijden86/peektree/pkg/tree"
)

// LeafHandler receives the "leaf selected" notification.
type LeafHandler func(model.LeafSelection)

// Option configures an Engine.
type Option func(*Engine)

// WithLeafHandler registers the callback invoked by SelectLeaf.
func WithLeafHandler(h LeafHandler) Option {
	return func(e *Engine) {
		e.onLeaf = h
	}
}

// WithName tags the engine in debug output.
func WithName(name string) Option {
	return func(e *Engine) {
		e.name = name
	}
}

// Engine tracks where the user is in a hierarchy and how they got there.
type Engine struct {
	tree   *tree.Model
	name   string
	onLeaf LeafHandler

	current  int
	history  []model.HistoryEntry
	preview  *int
	selected string
}

// New creates an engine positioned at the root level with empty history.
// It panics if t is nil: an engine cannot exist without a valid hierarchy.
func New(t *tree.Model, opts ...Option) *Engine {
	if t == nil {
		panic("nav: New called with nil tree")
	}
	e := &Engine{tree: t, name: "engine"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tree returns the hierarchy the engine navigates.
func (e *Engine) Tree() *tree.Model {
	return e.tree
}

// Descend commits navigation into the child level of nodeID. The node must
// sit on the active level and resolve to a child level.
func (e *Engine) Descend(nodeID string) model.Snapshot {
	node, child, ok := e.branchOnActive(nodeID)
	if !ok {
		debug.Log("nav[%s]: descend %q ignored on level %d", e.name, nodeID, e.current)
		return e.Snapshot()
	}
	e.history = append(e.history, model.HistoryEntry{
		LevelIndex: e.current,
		NodeID:     node.ID,
		Label:      node.Label,
	})
	debug.Log("nav[%s]: descend %q level %d -> %d", e.name, nodeID, e.current, child)
	e.selected = node.ID
	e.preview = nil
	e.current = child
	return e.Snapshot()
}

// SelectLeaf emits the leaf notification for a leaf on the active level.
// Navigation state never changes. The bool reports whether the
// notification fired.
func (e *Engine) SelectLeaf(nodeID string) (model.Snapshot, bool) {
	if !e.tree.OnLevel(nodeID, e.current) {
		return e.Snapshot(), false
	}
	node, _ := e.tree.Node(nodeID)
	if !node.Leaf {
		return e.Snapshot(), false
	}

	sel := model.LeafSelection{
		NodeID:     node.ID,
		Label:      node.Label,
		LevelIndex: e.current,
		Path:       append(e.Path(), node.Label),
	}
	debug.Log("nav[%s]: leaf selected %s", e.name, sel)
	if e.onLeaf != nil {
		e.onLeaf(sel)
	}
	return e.Snapshot(), true
}

// Ascend undoes the most recent descend. At the root it does nothing.
func (e *Engine) Ascend() model.Snapshot {
	n := len(e.history)
	if n == 0 {
		return e.Snapshot()
	}
	top := e.history[n-1]
	e.history = e.history[:n-1]
	debug.Log("nav[%s]: ascend level %d -> %d", e.name, e.current, top.LevelIndex)
	e.current = top.LevelIndex
	e.preview = nil
	e.selected = ""
	return e.Snapshot()
}

// JumpToBreadcrumb truncates history to its first depth+1 entries and moves
// to the level entered through the last remaining entry. Only
// 0 <= depth < len(history)-1 is accepted; anything else, including the
// current depth, is a no-op.
func (e *Engine) JumpToBreadcrumb(depth int) model.Snapshot {
	if depth < 0 || depth >= len(e.history)-1 {
		return e.Snapshot()
	}
	e.history = e.history[:depth+1]
	last := e.history[depth]
	target, ok := e.tree.ChildLevelIndex(last.NodeID)
	if !ok {
		target = 0
	}
	debug.Log("nav[%s]: jump to crumb %d level %d -> %d", e.name, depth, e.current, target)
	e.current = target
	e.preview = nil
	e.selected = ""
	return e.Snapshot()
}

// ResetToRoot clears history and returns to level 0. It is a no-op when
// history is already empty.
func (e *Engine) ResetToRoot() model.Snapshot {
	if len(e.history) == 0 {
		return e.Snapshot()
	}
	debug.Log("nav[%s]: reset from level %d (depth %d)", e.name, e.current, len(e.history))
	e.history = nil
	e.current = 0
	e.preview = nil
	e.selected = ""
	return e.Snapshot()
}

// BeginPreview marks the child level of a hovered branch for peeking.
// Leaves, nodes off the active level and branches without a child level
// leave the preview unchanged.
func (e *Engine) BeginPreview(nodeID string) model.Snapshot {
	if _, child, ok := e.branchOnActive(nodeID); ok {
		if e.preview == nil || *e.preview != child {
			e.preview = model.IntPtr(child)
		}
	}
	return e.Snapshot()
}

// EndPreview clears any preview.
func (e *Engine) EndPreview() model.Snapshot {
	e.preview = nil
	return e.Snapshot()
}

// Activate mirrors a click on a node: leaves are selected, branches descended.
func (e *Engine) Activate(nodeID string) model.Snapshot {
	if node, ok := e.tree.Node(nodeID); ok && node.Leaf {
		snap, _ := e.SelectLeaf(nodeID)
		return snap
	}
	return e.Descend(nodeID)
}

// Snapshot returns an independent copy of the current state.
func (e *Engine) Snapshot() model.Snapshot {
	s := model.Snapshot{
		CurrentLevelIndex: e.current,
		Visible:           e.VisibleLevels(),
		History:           make([]model.HistoryEntry, len(e.history)),
		SelectedNodeID:    e.selected,
	}
	copy(s.History, e.history)
	if e.preview != nil {
		s.PreviewChildIndex = model.IntPtr(*e.preview)
	}
	return s
}

// VisibleLevels derives the active, peek-left and peek-right slots.
func (e *Engine) VisibleLevels() model.VisibleLevels {
	v := model.VisibleLevels{Active: e.current}
	if n := len(e.history); n > 0 {
		v.PeekLeft = model.IntPtr(e.history[n-1].LevelIndex)
	}
	if e.preview != nil {
		v.PeekRight = model.IntPtr(*e.preview)
	}
	return v
}

// Breadcrumbs returns the root crumb followed by one crumb per history
// entry. The crumb for the active level is marked Active.
func (e *Engine) Breadcrumbs() []model.Crumb {
	crumbs := make([]model.Crumb, 0, len(e.history)+1)
	crumbs = append(crumbs, model.Crumb{
		Depth:  model.RootCrumbDepth,
		Label:  e.tree.RootLabel(),
		Active: len(e.history) == 0,
	})
	for i, h := range e.history {
		crumbs = append(crumbs, model.Crumb{
			Depth:  i,
			Label:  h.Label,
			NodeID: h.NodeID,
			Active: i == len(e.history)-1,
		})
	}
	return crumbs
}

// Path returns the labels of every node drilled into, oldest first.
func (e *Engine) Path() []string {
	path := make([]string, len(e.history))
	for i, h := range e.history {
		path[i] = h.Label
	}
	return path
}

// ActiveLevel returns the level currently shown in the active slot.
func (e *Engine) ActiveLevel() model.Level {
	lvl, _ := e.tree.Level(e.current)
	return lvl
}

// CanAscend reports whether Ascend would change state.
func (e *Engine) CanAscend() bool {
	return len(e.history) > 0
}

// branchOnActive resolves nodeID to a branch on the active level and the
// index of its child level.
func (e *Engine) branchOnActive(nodeID string) (model.Node, int, bool) {
	if !e.tree.OnLevel(nodeID, e.current) {
		return model.Node{}, 0, false
	}
	node, _ := e.tree.Node(nodeID)
	if node.Leaf {
		return model.Node{}, 0, false
	}
	child, ok := e.tree.ChildLevelIndex(nodeID)
	if !ok {
		return model.Node{}, 0, false
	}
	return node, child, true
}
