package ui

import (
	"strings"

	"github.com/vanderheijden86/peektree/pkg/model"
	"github.com/vanderheijden86/peektree/pkg/tree"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Node glyphs in slot listings.
const (
	glyphBranch  = "▸"
	glyphLeaf    = "•"
	glyphDeadEnd = "·"
)

// slotView is everything needed to draw one level slot.
type slotView struct {
	Role    model.SlotRole
	Level   model.Level
	Present bool   // false renders an empty placeholder frame
	Cursor  int    // highlighted row, -1 for none
	Trail   string // node on the navigation path, marked in peek-left
	Preview string // node whose child level is peeked, marked in active
}

// slotGeometry describes where a slot sits on screen.
type slotGeometry struct {
	X, Width int
	Rows     int // node rows that fit inside the frame
}

// Frame overhead: border top and bottom plus the title row.
const slotChromeRows = 3

// nodeRowOffset is the first screen row of a node listing: breadcrumb
// bar, top border, title.
const nodeRowOffset = 3

// layoutSlots splits width into peek-left, active and peek-right columns.
// The active slot takes activePercent of the width.
func layoutSlots(width, height, activePercent int) (left, active, right slotGeometry) {
	if activePercent <= 0 || activePercent > 100 {
		activePercent = 60
	}
	aw := width * activePercent / 100
	lw := (width - aw) / 2
	rw := width - aw - lw

	rows := height - slotChromeRows
	if rows < 0 {
		rows = 0
	}
	left = slotGeometry{X: 0, Width: lw, Rows: rows}
	active = slotGeometry{X: lw, Width: aw, Rows: rows}
	right = slotGeometry{X: lw + aw, Width: rw, Rows: rows}
	return left, active, right
}

// scrollOffset keeps cursor roughly centred in a window of rows.
func scrollOffset(cursor, n, rows int) int {
	if rows <= 0 || n <= rows || cursor < 0 {
		return 0
	}
	off := cursor - rows/2
	if off < 0 {
		off = 0
	}
	if off > n-rows {
		off = n - rows
	}
	return off
}

// renderSlot draws one framed level listing of the given outer size.
func renderSlot(th Theme, t *tree.Model, s slotView, width, height int) string {
	innerW := width - 2
	innerH := height - 2
	if innerW < 1 || innerH < 1 {
		return ""
	}
	frame := th.SlotStyle(s.Role).Width(innerW).Height(innerH)
	if !s.Present {
		return frame.Render("")
	}

	var b strings.Builder
	title := s.Level.Label
	if title == "" {
		title = s.Level.ID
	}
	b.WriteString(th.SlotTitle.Render(fit(title, innerW)))

	rows := innerH - 1
	off := scrollOffset(s.Cursor, len(s.Level.Nodes), rows)
	for i := off; i < len(s.Level.Nodes) && i < off+rows; i++ {
		b.WriteString("\n")
		b.WriteString(renderNodeLine(th, t, s, i, innerW))
	}
	return frame.Render(b.String())
}

func renderNodeLine(th Theme, t *tree.Model, s slotView, i, width int) string {
	n := s.Level.Nodes[i]

	glyph, style := glyphBranch, th.BranchText
	switch {
	case n.Leaf:
		glyph, style = glyphLeaf, th.LeafText
	case !t.IsBranch(n.ID):
		glyph, style = glyphDeadEnd, th.MutedText
	}

	suffix := ""
	if n.ID == s.Preview && s.Role == model.SlotActive {
		suffix = " ›"
	}

	if i == s.Cursor {
		// Selected carries a left border and padding.
		text := fit(glyph+" "+n.Label+suffix, width-2)
		return th.Selected.Render(text)
	}

	text := fit(glyph+" "+n.Label+suffix, width)
	if n.ID == s.Trail {
		return th.SlotTitle.Render(text)
	}
	return style.Render(text)
}

// fit truncates s to width display cells and pads it to exactly width.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

// joinSlots lays rendered slots side by side.
func joinSlots(slots ...string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, slots...)
}
