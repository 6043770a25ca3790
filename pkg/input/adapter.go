// Package input translates raw pointer, touch and keyboard gestures into
// navigation engine calls. The gesture policy lives here; the engine only
// exposes operations.
package input

import (
	"math"
	"strings"

	"github.com/vanderheijden86/peektree/pkg/debug"
	"github.com/vanderheijden86/peektree/pkg/model"
	"github.com/vanderheijden86/peektree/pkg/nav"
)

// Event is a gesture reported by a presentation layer.
type Event interface {
	event()
}

// Click is a pointer click or tap on a node.
type Click struct{ NodeID string }

// HoverEnter is the pointer entering a node.
type HoverEnter struct{ NodeID string }

// HoverLeave is the pointer leaving the hovered node.
type HoverLeave struct{}

// Swipe is a completed touch gesture, measured end minus start.
type Swipe struct{ DX, DY float64 }

// Key is a key press. Name uses Bubble Tea spelling ("esc", "backspace", "left").
type Key struct{ Name string }

// CrumbClick is a click on a breadcrumb. Depth -1 is the root crumb.
type CrumbClick struct{ Depth int }

// PeekLeftClick is a click on the dimmed previous level.
type PeekLeftClick struct{}

func (Click) event()         {}
func (HoverEnter) event()    {}
func (HoverLeave) event()    {}
func (Swipe) event()         {}
func (Key) event()           {}
func (CrumbClick) event()    {}
func (PeekLeftClick) event() {}

// Effect names the engine operation that changed state in response to an
// event. EffectNone means the state is unchanged.
type Effect string

const (
	EffectNone       Effect = "none"
	EffectDescend    Effect = "descend"
	EffectSelectLeaf Effect = "select-leaf"
	EffectAscend     Effect = "ascend"
	EffectJump       Effect = "jump"
	EffectReset      Effect = "reset"
	EffectPreview    Effect = "preview"
	EffectEndPreview Effect = "end-preview"
)

// Policy holds the gesture thresholds and key bindings.
type Policy struct {
	SwipeThreshold   float64  // minimum horizontal travel for a swipe
	MaxVerticalDrift float64  // swipes drifting further vertically are scrolls
	BackKeys         []string // keys that ascend
}

// DefaultPolicy mirrors the original widget: a rightward swipe of more than
// 50 units with less than 100 units of vertical drift goes back, as do
// Escape, Backspace and the left arrow.
func DefaultPolicy() Policy {
	return Policy{
		SwipeThreshold:   50,
		MaxVerticalDrift: 100,
		BackKeys:         []string{"esc", "backspace", "left"},
	}
}

// IsBackSwipe reports whether a swipe should ascend.
func (p Policy) IsBackSwipe(s Swipe) bool {
	return math.Abs(s.DX) > p.SwipeThreshold &&
		math.Abs(s.DY) < p.MaxVerticalDrift &&
		s.DX > 0
}

// IsBackKey reports whether name is bound to ascend.
func (p Policy) IsBackKey(name string) bool {
	for _, k := range p.BackKeys {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// Adapter routes events to an engine. The engine may also be driven
// directly; hover dedup compares against the engine's live state.
type Adapter struct {
	engine *nav.Engine
	policy Policy

	hovered   string
	hoverSnap model.Snapshot // engine state right after the last hover
}

// NewAdapter creates an adapter for e.
func NewAdapter(e *nav.Engine, p Policy) *Adapter {
	return &Adapter{engine: e, policy: p}
}

// Engine returns the engine the adapter drives.
func (a *Adapter) Engine() *nav.Engine {
	return a.engine
}

// Handle applies ev and returns the resulting snapshot and its effect.
// Leaf selection reports EffectSelectLeaf even though state is unchanged.
func (a *Adapter) Handle(ev Event) (model.Snapshot, Effect) {
	switch ev := ev.(type) {
	case Click:
		a.hovered = ""
		if node, ok := a.engine.Tree().Node(ev.NodeID); ok && node.Leaf {
			snap, fired := a.engine.SelectLeaf(ev.NodeID)
			if !fired {
				return snap, EffectNone
			}
			return snap, EffectSelectLeaf
		}
		return a.commit(EffectDescend, func() model.Snapshot { return a.engine.Descend(ev.NodeID) })

	case HoverEnter:
		if cur := a.engine.Snapshot(); ev.NodeID == a.hovered && cur.Equal(a.hoverSnap) {
			return cur, EffectNone
		}
		snap, eff := a.apply(EffectPreview, func() model.Snapshot { return a.engine.BeginPreview(ev.NodeID) })
		a.hovered, a.hoverSnap = ev.NodeID, snap
		return snap, eff

	case HoverLeave:
		a.hovered = ""
		return a.apply(EffectEndPreview, a.engine.EndPreview)

	case Swipe:
		if !a.policy.IsBackSwipe(ev) {
			return a.engine.Snapshot(), EffectNone
		}
		return a.commit(EffectAscend, a.engine.Ascend)

	case Key:
		if !a.policy.IsBackKey(ev.Name) {
			return a.engine.Snapshot(), EffectNone
		}
		return a.commit(EffectAscend, a.engine.Ascend)

	case CrumbClick:
		if ev.Depth == model.RootCrumbDepth {
			return a.commit(EffectReset, a.engine.ResetToRoot)
		}
		return a.commit(EffectJump, func() model.Snapshot { return a.engine.JumpToBreadcrumb(ev.Depth) })

	case PeekLeftClick:
		return a.commit(EffectAscend, a.engine.Ascend)
	}

	debug.Log("input: unhandled event %T", ev)
	return a.engine.Snapshot(), EffectNone
}

// commit runs a committing operation. Any hover is forgotten since the
// engine drops the preview.
func (a *Adapter) commit(effect Effect, op func() model.Snapshot) (model.Snapshot, Effect) {
	a.hovered = ""
	return a.apply(effect, op)
}

// apply runs op and reports EffectNone when the engine treated it as a no-op.
func (a *Adapter) apply(effect Effect, op func() model.Snapshot) (model.Snapshot, Effect) {
	before := a.engine.Snapshot()
	after := op()
	if after.Equal(before) {
		return after, EffectNone
	}
	debug.Log("input: %s -> level %d", effect, after.CurrentLevelIndex)
	return after, effect
}
