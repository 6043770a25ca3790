package ui

import (
	"os"

	"github.com/vanderheijden86/peektree/pkg/model"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the colors and pre-built styles of the terminal renderer.
type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Node kinds
	Branch lipgloss.AdaptiveColor
	Leaf   lipgloss.AdaptiveColor

	// UI Elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor

	// Styles
	Base     lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style

	// Slot frames, one per visible role
	ActiveSlot    lipgloss.Style
	PeekLeftSlot  lipgloss.Style
	PeekRightSlot lipgloss.Style

	SlotTitle  lipgloss.Style
	MutedText  lipgloss.Style
	BranchText lipgloss.Style
	LeafText   lipgloss.Style
	CrumbText  lipgloss.Style
	CrumbAct   lipgloss.Style
	Toast      lipgloss.Style
	ErrorText  lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}, // Purple
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}, // Gray
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"}, // Dim

		Branch: lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}, // Cyan
		Leaf:   lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}, // Green

		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Error:     lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(t.Primary).
		PaddingLeft(1).
		Bold(true)

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.ActiveSlot = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary)
	t.PeekLeftSlot = r.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(t.Border).
		Faint(true)
	t.PeekRightSlot = r.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(t.Secondary)

	t.SlotTitle = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.BranchText = r.NewStyle().Foreground(t.Branch)
	t.LeafText = r.NewStyle().Foreground(t.Leaf)
	t.CrumbText = r.NewStyle().Foreground(t.Subtext)
	t.CrumbAct = r.NewStyle().Foreground(t.Primary).Bold(true).Underline(true)
	t.Toast = r.NewStyle().
		Background(t.Leaf).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)
	t.ErrorText = r.NewStyle().Foreground(t.Error).Bold(true)

	return t
}

// SlotStyle returns the frame style for a slot role.
func (t Theme) SlotStyle(role model.SlotRole) lipgloss.Style {
	switch role {
	case model.SlotActive:
		return t.ActiveSlot
	case model.SlotPeekLeft:
		return t.PeekLeftSlot
	default:
		return t.PeekRightSlot
	}
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
