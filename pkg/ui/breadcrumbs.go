package ui

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/peektree/pkg/model"

	"github.com/mattn/go-runewidth"
)

const crumbSeparator = " › "

// crumbSpan is the screen column range [Start, End) of one crumb.
type crumbSpan struct {
	Start, End int
	Depth      int
}

// crumbText is the plain label of the crumb at position i. Positions
// 0-9 carry the digit that jumps to them.
func crumbText(i int, c model.Crumb) string {
	if i < 10 {
		return fmt.Sprintf("%d %s", i, c.Label)
	}
	return c.Label
}

// layoutCrumbs returns the column span of every crumb on the bar.
func layoutCrumbs(crumbs []model.Crumb) []crumbSpan {
	spans := make([]crumbSpan, 0, len(crumbs))
	x := 1 // leading space
	for i, c := range crumbs {
		if i > 0 {
			x += runewidth.StringWidth(crumbSeparator)
		}
		w := runewidth.StringWidth(crumbText(i, c))
		spans = append(spans, crumbSpan{Start: x, End: x + w, Depth: c.Depth})
		x += w
	}
	return spans
}

// crumbsFit reports whether the full trail fits on a bar of width.
func crumbsFit(crumbs []model.Crumb, width int) bool {
	spans := layoutCrumbs(crumbs)
	return len(spans) == 0 || spans[len(spans)-1].End <= width
}

// crumbAt returns the depth of the crumb under column x. Collapsed bars
// are not hit-tested.
func crumbAt(crumbs []model.Crumb, x, width int) (int, bool) {
	if !crumbsFit(crumbs, width) && len(crumbs) > 2 {
		return 0, false
	}
	for _, s := range layoutCrumbs(crumbs) {
		if x >= s.Start && x < s.End {
			return s.Depth, true
		}
	}
	return 0, false
}

// renderBreadcrumbs draws the breadcrumb bar. When the trail is wider than
// width, the oldest crumbs after the root collapse into an ellipsis.
func renderBreadcrumbs(th Theme, crumbs []model.Crumb, width int) string {
	parts := make([]string, len(crumbs))
	plain := make([]string, len(crumbs))
	for i, c := range crumbs {
		plain[i] = crumbText(i, c)
		if c.Active {
			parts[i] = th.CrumbAct.Render(plain[i])
		} else {
			parts[i] = th.CrumbText.Render(plain[i])
		}
	}

	sep := th.MutedText.Render(crumbSeparator)
	if crumbsFit(crumbs, width) || len(crumbs) <= 2 {
		return " " + strings.Join(parts, sep)
	}

	// Keep the root and as many trailing crumbs as fit.
	keep := []string{parts[len(parts)-1]}
	used := runewidth.StringWidth(" "+plain[0]+crumbSeparator+"…"+crumbSeparator) + runewidth.StringWidth(plain[len(plain)-1])
	for i := len(parts) - 2; i > 0; i-- {
		w := runewidth.StringWidth(plain[i] + crumbSeparator)
		if used+w > width {
			break
		}
		used += w
		keep = append([]string{parts[i]}, keep...)
	}
	return " " + parts[0] + sep + th.MutedText.Render("…") + sep + strings.Join(keep, sep)
}
