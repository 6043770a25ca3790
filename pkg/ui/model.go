// Package ui provides the terminal renderer for peektree.
//
// The screen shows three level slots side by side: the level the user came
// from (peek-left, dimmed), the active level with a cursor, and the child
// level of the node under the cursor (peek-right). Moving the cursor is a
// hover; opening a node commits a navigation step.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/vanderheijden86/peektree/pkg/debug"
	"github.com/vanderheijden86/peektree/pkg/input"
	"github.com/vanderheijden86/peektree/pkg/model"
	"github.com/vanderheijden86/peektree/pkg/nav"
	"github.com/vanderheijden86/peektree/pkg/tree"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Approximate pixel size of a terminal cell, used to map mouse drags onto
// the swipe thresholds.
const (
	cellPixelsX = 8
	cellPixelsY = 16
)

// toastDuration is how long a status message stays in the footer.
const toastDuration = 4 * time.Second

// Options configures the terminal renderer.
type Options struct {
	Title            string
	SlotWidthPercent int
	ShowDescriptions bool
	CopyLeafPath     bool
	Policy           input.Policy
	Clipboard        func(string) error // defaults to the system clipboard
}

// TreeReloadedMsg swaps in a rebuilt hierarchy.
type TreeReloadedMsg struct {
	Tree *tree.Model
}

// TreeErrorMsg reports a failed reload. The current tree stays in place.
type TreeErrorMsg struct {
	Err error
}

type clearStatusMsg struct {
	seq int
}

// leafSink receives leaf notifications from the engine. It is shared by
// every copy of the Model value.
type leafSink struct {
	last *model.LeafSelection
}

// Model is the Bubble Tea model.
type Model struct {
	tree    *tree.Model
	adapter *input.Adapter
	sink    *leafSink
	snap    model.Snapshot
	cursors map[int]int // cursor row per level index

	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer
	theme    Theme
	opts     Options
	swipe    *input.SwipeTracker

	// State
	ready            bool
	width            int
	height           int
	showHelp         bool
	showDescriptions bool

	// Footer
	statusMsg     string
	statusIsError bool
	statusSeq     int
	lastLeaf      *model.LeafSelection
}

// NewModel creates the renderer over t.
func NewModel(t *tree.Model, opts Options) Model {
	if opts.Policy.SwipeThreshold == 0 && len(opts.Policy.BackKeys) == 0 {
		opts.Policy = input.DefaultPolicy()
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.Title == "" {
		opts.Title = t.Title()
	}

	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	m := Model{
		keys:             DefaultKeyMap(),
		help:             help.New(),
		renderer:         r,
		theme:            DefaultTheme(lipgloss.DefaultRenderer()),
		opts:             opts,
		swipe:            &input.SwipeTracker{},
		showDescriptions: opts.ShowDescriptions,
	}
	m.setTree(t)
	return m
}

// setTree starts fresh navigation over t.
func (m *Model) setTree(t *tree.Model) {
	sink := &leafSink{}
	e := nav.New(t,
		nav.WithName("tui"),
		nav.WithLeafHandler(func(sel model.LeafSelection) {
			sink.last = &sel
		}),
	)
	m.tree = t
	m.sink = sink
	m.adapter = input.NewAdapter(e, m.opts.Policy)
	m.cursors = make(map[int]int)
	m.lastLeaf = nil
	m.snap = e.Snapshot()
	m.hoverCursor()
	m.updateViewportContent()
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case TreeReloadedMsg:
		if msg.Tree != nil {
			m.setTree(msg.Tree)
			cmds = append(cmds, m.setStatus(fmt.Sprintf("Reloaded: %d levels", msg.Tree.LevelCount()), false))
		}

	case TreeErrorMsg:
		cmds = append(cmds, m.setStatus(fmt.Sprintf("Reload failed: %v", msg.Err), true))

	case clearStatusMsg:
		if msg.seq == m.statusSeq {
			m.statusMsg = ""
			m.statusIsError = false
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()

	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case tea.MouseMsg:
		if cmd := m.handleMouse(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.showHelp {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return tea.Quit
		case key.Matches(msg, m.keys.Help), msg.String() == "esc":
			m.showHelp = false
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(m.cursor() - 1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(m.cursor() + 1)
	case key.Matches(msg, m.keys.Top):
		m.moveCursor(0)
	case key.Matches(msg, m.keys.Bottom):
		m.moveCursor(len(m.activeLevel().Nodes) - 1)
	case key.Matches(msg, m.keys.Activate):
		return m.activate(m.cursor())
	case key.Matches(msg, m.keys.Back):
		name := msg.String()
		if name == "h" {
			name = "left"
		}
		return m.handle(input.Key{Name: name})
	case key.Matches(msg, m.keys.Crumb):
		idx := int(msg.String()[0] - '0')
		crumbs := m.adapter.Engine().Breadcrumbs()
		if idx < len(crumbs) {
			return m.handle(input.CrumbClick{Depth: crumbs[idx].Depth})
		}
	case key.Matches(msg, m.keys.Reset):
		return m.handle(input.CrumbClick{Depth: model.RootCrumbDepth})
	case key.Matches(msg, m.keys.Descriptions):
		m.showDescriptions = !m.showDescriptions
		m.resize()
	case key.Matches(msg, m.keys.Copy):
		if m.lastLeaf == nil {
			return m.setStatus("No leaf selected yet", true)
		}
		return m.copyPath(*m.lastLeaf)
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.showHelp || !m.ready {
		return nil
	}

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.moveCursor(m.cursor() - 1)
		return nil
	case msg.Button == tea.MouseButtonWheelDown:
		m.moveCursor(m.cursor() + 1)
		return nil
	}

	switch msg.Action {
	case tea.MouseActionMotion:
		if msg.Button != tea.MouseButtonNone {
			return nil
		}
		if role, idx, ok := m.nodeAt(msg.X, msg.Y); ok && role == model.SlotActive {
			m.moveCursor(idx)
		}
		return nil

	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft {
			m.swipe.Start(float64(msg.X*cellPixelsX), float64(msg.Y*cellPixelsY))
		}
		return nil

	case tea.MouseActionRelease:
		sw, ok := m.swipe.End(float64(msg.X*cellPixelsX), float64(msg.Y*cellPixelsY))
		if !ok {
			return nil
		}
		if sw.DX != 0 || sw.DY != 0 {
			return m.handle(sw)
		}
		return m.click(msg.X, msg.Y)
	}
	return nil
}

// click routes a pointer click at screen cell (x, y).
func (m *Model) click(x, y int) tea.Cmd {
	if y == 0 {
		if depth, ok := crumbAt(m.adapter.Engine().Breadcrumbs(), x, m.width); ok {
			return m.handle(input.CrumbClick{Depth: depth})
		}
		return nil
	}

	left, active, _ := layoutSlots(m.width, m.slotHeight(), m.opts.SlotWidthPercent)
	if x >= left.X && x < left.X+left.Width {
		return m.handle(input.PeekLeftClick{})
	}
	if x >= active.X && x < active.X+active.Width {
		if role, idx, ok := m.nodeAt(x, y); ok && role == model.SlotActive {
			return m.activate(idx)
		}
	}
	return nil
}

// nodeAt hit-tests the node listing under screen cell (x, y).
func (m Model) nodeAt(x, y int) (model.SlotRole, int, bool) {
	left, active, right := layoutSlots(m.width, m.slotHeight(), m.opts.SlotWidthPercent)
	row := y - nodeRowOffset
	if row < 0 {
		return "", 0, false
	}

	var (
		role model.SlotRole
		lvl  model.Level
		geo  slotGeometry
		cur  = -1
		ok   bool
	)
	switch {
	case x >= active.X && x < active.X+active.Width:
		role, geo, cur = model.SlotActive, active, m.cursor()
		lvl, ok = m.tree.Level(m.snap.Visible.Active)
	case x >= left.X && x < left.X+left.Width && m.snap.Visible.PeekLeft != nil:
		role, geo = model.SlotPeekLeft, left
		lvl, ok = m.tree.Level(*m.snap.Visible.PeekLeft)
	case x >= right.X && x < right.X+right.Width && m.snap.Visible.PeekRight != nil:
		role, geo = model.SlotPeekRight, right
		lvl, ok = m.tree.Level(*m.snap.Visible.PeekRight)
	}
	if !ok || row >= geo.Rows {
		return "", 0, false
	}
	idx := scrollOffset(cur, len(lvl.Nodes), geo.Rows) + row
	if idx >= len(lvl.Nodes) {
		return "", 0, false
	}
	return role, idx, true
}

// handle feeds ev through the input adapter and updates local state.
func (m *Model) handle(ev input.Event) tea.Cmd {
	from := m.snap.CurrentLevelIndex
	m.cursors[from] = m.cursor()

	snap, effect := m.adapter.Handle(ev)
	m.snap = snap

	switch effect {
	case input.EffectDescend:
		m.cursors[snap.CurrentLevelIndex] = 0
		fallthrough
	case input.EffectAscend, input.EffectJump, input.EffectReset:
		debug.Log("ui: %s level %d -> %d", effect, from, snap.CurrentLevelIndex)
		m.lastLeaf = nil
		m.hoverCursor()
		m.updateViewportContent()

	case input.EffectSelectLeaf:
		if m.sink.last == nil {
			return nil
		}
		sel := *m.sink.last
		m.sink.last = nil
		m.lastLeaf = &sel
		if m.opts.CopyLeafPath {
			return m.copyPath(sel)
		}
		return m.setStatus("Selected: "+sel.String(), false)
	}
	return nil
}

func (m *Model) activate(idx int) tea.Cmd {
	nodes := m.activeLevel().Nodes
	if idx < 0 || idx >= len(nodes) {
		return nil
	}
	m.setCursor(idx)
	return m.handle(input.Click{NodeID: nodes[idx].ID})
}

// moveCursor moves the active-level cursor and peeks at the new node.
func (m *Model) moveCursor(idx int) {
	n := len(m.activeLevel().Nodes)
	if n == 0 {
		return
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	if idx == m.cursor() {
		return
	}
	m.setCursor(idx)
	m.snap, _ = m.adapter.Handle(input.HoverLeave{})
	m.hoverCursor()
	m.updateViewportContent()
}

// hoverCursor reports the node under the cursor as hovered.
func (m *Model) hoverCursor() {
	nodes := m.activeLevel().Nodes
	if c := m.cursor(); c < len(nodes) {
		m.snap, _ = m.adapter.Handle(input.HoverEnter{NodeID: nodes[c].ID})
	}
}

func (m Model) cursor() int {
	c := m.cursors[m.snap.CurrentLevelIndex]
	if n := len(m.activeLevel().Nodes); c >= n {
		c = n - 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

func (m *Model) setCursor(idx int) {
	m.cursors[m.snap.CurrentLevelIndex] = idx
}

func (m Model) activeLevel() model.Level {
	lvl, _ := m.tree.Level(m.snap.CurrentLevelIndex)
	return lvl
}

func (m Model) cursorNode() (model.Node, bool) {
	nodes := m.activeLevel().Nodes
	c := m.cursor()
	if c >= len(nodes) {
		return model.Node{}, false
	}
	return nodes[c], true
}

func (m *Model) copyPath(sel model.LeafSelection) tea.Cmd {
	if err := m.opts.Clipboard(sel.String()); err != nil {
		debug.Log("ui: clipboard: %v", err)
		return m.setStatus("Selected: "+sel.String()+" (clipboard unavailable)", true)
	}
	return m.setStatus("Copied: "+sel.String(), false)
}

func (m *Model) setStatus(msg string, isErr bool) tea.Cmd {
	m.statusSeq++
	m.statusMsg = msg
	m.statusIsError = isErr
	seq := m.statusSeq
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

// descriptionHeight is the number of rows given to the description pane.
func (m Model) descriptionHeight() int {
	if !m.showDescriptions {
		return 0
	}
	h := m.height / 4
	if h < 4 {
		h = 4
	}
	if h > 12 {
		h = 12
	}
	return h
}

// slotHeight is the outer height of a slot frame.
func (m Model) slotHeight() int {
	h := m.height - 2 - m.descriptionHeight() // breadcrumb bar and footer
	if h < 0 {
		h = 0
	}
	return h
}

func (m *Model) resize() {
	if !m.ready {
		return
	}
	dh := m.descriptionHeight()
	if dh > 0 {
		dh-- // separator line
	}
	m.viewport = viewport.New(m.width, dh)
	m.renderer, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.width-4),
	)
	m.updateViewportContent()
}

func (m *Model) updateViewportContent() {
	if !m.showDescriptions || m.renderer == nil {
		return
	}
	n, ok := m.cursorNode()
	if !ok {
		m.viewport.SetContent("")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n", n.Label))
	if n.Description != "" {
		sb.WriteString(n.Description + "\n")
	} else {
		sb.WriteString("_No description._\n")
	}

	rendered, err := m.renderer.Render(sb.String())
	if err != nil {
		m.viewport.SetContent(fmt.Sprintf("Error rendering markdown: %v", err))
		return
	}
	m.viewport.SetContent(rendered)
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.showHelp {
		return RenderContextHelp(m.CurrentContext(), m.theme, m.keys, m.width, m.height)
	}

	crumbs := renderBreadcrumbs(m.theme, m.adapter.Engine().Breadcrumbs(), m.width)

	h := m.slotHeight()
	left, active, right := layoutSlots(m.width, h, m.opts.SlotWidthPercent)
	body := joinSlots(
		renderSlot(m.theme, m.tree, m.slotView(model.SlotPeekLeft), left.Width, h),
		renderSlot(m.theme, m.tree, m.slotView(model.SlotActive), active.Width, h),
		renderSlot(m.theme, m.tree, m.slotView(model.SlotPeekRight), right.Width, h),
	)

	parts := []string{crumbs, body}
	if m.showDescriptions {
		sep := m.theme.MutedText.Render(strings.Repeat("─", m.width))
		parts = append(parts, sep, m.viewport.View())
	}
	parts = append(parts, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// slotView collects what the slot with role shows.
func (m Model) slotView(role model.SlotRole) slotView {
	v := m.snap.Visible
	sv := slotView{Role: role, Cursor: -1}

	var idx *int
	switch role {
	case model.SlotActive:
		idx = &v.Active
		sv.Cursor = m.cursor()
		if m.snap.PreviewChildIndex != nil {
			if n, ok := m.cursorNode(); ok {
				sv.Preview = n.ID
			}
		}
	case model.SlotPeekLeft:
		idx = v.PeekLeft
		if n := len(m.snap.History); n > 0 {
			sv.Trail = m.snap.History[n-1].NodeID
		}
	case model.SlotPeekRight:
		idx = v.PeekRight
	}
	if idx != nil {
		sv.Level, sv.Present = m.tree.Level(*idx)
	}
	return sv
}

func (m Model) renderFooter() string {
	helpStyle := m.theme.MutedText
	levelStyle := m.theme.Header

	lvl := m.activeLevel()
	label := lvl.Label
	if label == "" {
		label = lvl.ID
	}
	levelTxt := fmt.Sprintf("%s · %d/%d", label, m.snap.CurrentLevelIndex+1, m.tree.LevelCount())
	levelSection := levelStyle.Render(levelTxt)

	var statusSection string
	switch {
	case m.statusMsg != "" && m.statusIsError:
		statusSection = m.theme.ErrorText.Padding(0, 1).Render(m.statusMsg)
	case m.statusMsg != "":
		statusSection = m.theme.Toast.Render(m.statusMsg)
	case m.opts.Title != "":
		statusSection = helpStyle.Padding(0, 1).Render(m.opts.Title)
	}

	keysSection := helpStyle.Padding(0, 1).Render(m.help.ShortHelpView(m.keys.ShortHelp()))

	leftWidth := lipgloss.Width(levelSection) + lipgloss.Width(statusSection)
	remaining := m.width - leftWidth - lipgloss.Width(keysSection)
	if remaining < 0 {
		keysSection = ""
		remaining = m.width - leftWidth
		if remaining < 0 {
			remaining = 0
		}
	}
	filler := lipgloss.NewStyle().Width(remaining).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, levelSection, statusSection, filler, keysSection)
}

// Snapshot returns the current navigation state (exposed for testing).
func (m Model) Snapshot() model.Snapshot {
	return m.snap.Clone()
}

// Cursor returns the cursor row on the active level (exposed for testing).
func (m Model) Cursor() int {
	return m.cursor()
}

// LastLeaf returns the most recent leaf selection, if any.
func (m Model) LastLeaf() *model.LeafSelection {
	return m.lastLeaf
}

// StatusMessage returns the footer message and whether it is an error.
func (m Model) StatusMessage() (string, bool) {
	return m.statusMsg, m.statusIsError
}

// DescriptionsShown reports whether the description pane is visible.
func (m Model) DescriptionsShown() bool {
	return m.showDescriptions
}
