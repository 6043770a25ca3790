package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

// Context represents the current UI context for context-sensitive help.
type Context string

const (
	ContextHelp     Context = "help"
	ContextRoot     Context = "root"
	ContextDrilled  Context = "drilled"
	ContextLeafPath Context = "leaf"
)

// CurrentContext returns the current UI context identifier.
func (m Model) CurrentContext() Context {
	switch {
	case m.showHelp:
		return ContextHelp
	case m.lastLeaf != nil:
		return ContextLeafPath
	case len(m.snap.History) > 0:
		return ContextDrilled
	default:
		return ContextRoot
	}
}

// ContextHelpContent holds a short note per context, shown above the key
// reference.
var ContextHelpContent = map[Context]string{
	ContextRoot:     contextHelpRoot,
	ContextDrilled:  contextHelpDrilled,
	ContextLeafPath: contextHelpLeaf,
}

// GetContextHelp returns the note for ctx, falling back to the generic one.
func GetContextHelp(ctx Context) string {
	if content, ok := ContextHelpContent[ctx]; ok {
		return content
	}
	return contextHelpGeneric
}

// RenderContextHelp renders the help modal for ctx.
func RenderContextHelp(ctx Context, theme Theme, keys KeyMap, width, height int) string {
	r := theme.Renderer

	modalWidth := 64
	if modalWidth > width-4 {
		modalWidth = width - 4
	}
	if modalWidth < 20 {
		modalWidth = 20
	}

	titleStyle := r.NewStyle().
		Bold(true).
		Foreground(theme.Primary)

	contentStyle := r.NewStyle().
		Foreground(theme.Subtext)

	footerStyle := r.NewStyle().
		Foreground(theme.Muted).
		Italic(true)

	h := help.New()
	h.Width = modalWidth - 6
	h.ShowAll = true

	var b strings.Builder
	b.WriteString(titleStyle.Render("Quick Reference"))
	b.WriteString("\n")
	b.WriteString(r.NewStyle().Foreground(theme.Border).Render(strings.Repeat("─", modalWidth-6)))
	b.WriteString("\n\n")
	b.WriteString(contentStyle.Render(GetContextHelp(ctx)))
	b.WriteString("\n\n")
	b.WriteString(h.View(keys))
	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render("? or Esc to close"))

	modalStyle := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Secondary).
		Padding(1, 2).
		Width(modalWidth)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modalStyle.Render(b.String()))
}

const contextHelpRoot = `You are at the top of the hierarchy.
Move the cursor to peek into a branch on the right.
Open a branch to drill into it, or a leaf to select it.`

const contextHelpDrilled = `The dimmed slot on the left is where you came from.
The breadcrumb bar shows the full path; press its
number to jump back, or ~ to return to the top.`

const contextHelpLeaf = `A leaf was selected. Its path is shown in the footer
and, when enabled, copied to the clipboard. Press y
to copy it again.`

const contextHelpGeneric = `Navigate the hierarchy one level at a time.`
