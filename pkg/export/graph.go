package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/peektree/pkg/model"
	"github.com/vanderheijden86/peektree/pkg/tree"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font/basicfont"
)

// DiagramOptions controls slot diagram export.
type DiagramOptions struct {
	Path     string          // Output path; format inferred from extension when Format empty
	Format   string          // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title    string          // Optional title rendered in the header
	Snapshot *model.Snapshot // Optional navigation state; its visible levels are highlighted
}

// SaveDiagram renders one column per level slot with its nodes stacked
// inside, and an edge from every branch to the column of its child level.
func SaveDiagram(t *tree.Model, opts DiagramOptions) error {
	if t == nil {
		return fmt.Errorf("no hierarchy to export")
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".png":
			format = "png"
		default:
			format = "svg"
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path += ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	layout := buildDiagram(t, opts)
	if format == "png" {
		return renderDiagramPNG(opts.Path, layout)
	}
	f, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	return renderDiagramSVG(f, layout)
}

// --- layout ----------------------------------------------------------------

const (
	boxW     = 180.0
	boxH     = 44.0
	colGap   = 70.0
	rowGap   = 14.0
	padding  = 30.0
	headerH  = 80.0
	columnHd = 28.0
)

type diagramBox struct {
	ID    string
	Label string
	Leaf  bool
	X, Y  float64
}

type diagramColumn struct {
	Index int
	Label string
	Role  model.SlotRole
	X     float64
	Boxes []diagramBox
}

type diagramEdge struct {
	X1, Y1, X2, Y2 float64
}

type diagramLayout struct {
	Title   string
	Summary string
	Columns []diagramColumn
	Edges   []diagramEdge
	Width   int
	Height  int
}

func buildDiagram(t *tree.Model, opts DiagramOptions) diagramLayout {
	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = t.Title()
	}
	if title == "" {
		title = t.RootLabel()
	}

	st := t.Stats()
	layout := diagramLayout{
		Title:   title,
		Summary: fmt.Sprintf("%d levels · %d nodes · %d leaves · depth %d", st.Levels, st.Nodes, st.Leaves, st.MaxDepth),
	}

	var visible *model.VisibleLevels
	if opts.Snapshot != nil {
		visible = &opts.Snapshot.Visible
	}

	boxPos := make(map[string]diagramBox)
	maxRows := 0
	for _, lvl := range t.Levels() {
		col := diagramColumn{
			Index: lvl.Index,
			Label: columnLabel(lvl),
			Role:  model.SlotHidden,
			X:     padding + float64(lvl.Index)*(boxW+colGap),
		}
		if visible != nil {
			col.Role = visible.Role(lvl.Index)
		}
		for row, n := range lvl.Nodes {
			b := diagramBox{
				ID:    n.ID,
				Label: truncate(n.Label, 24),
				Leaf:  n.Leaf,
				X:     col.X,
				Y:     padding + headerH + columnHd + float64(row)*(boxH+rowGap),
			}
			col.Boxes = append(col.Boxes, b)
			boxPos[n.ID] = b
		}
		if len(lvl.Nodes) > maxRows {
			maxRows = len(lvl.Nodes)
		}
		layout.Columns = append(layout.Columns, col)
	}

	for _, lvl := range t.Levels() {
		if lvl.IsRoot() {
			continue
		}
		from, ok := boxPos[lvl.ParentNodeID]
		if !ok {
			continue
		}
		toX := padding + float64(lvl.Index)*(boxW+colGap)
		layout.Edges = append(layout.Edges, diagramEdge{
			X1: from.X + boxW,
			Y1: from.Y + boxH/2,
			X2: toX,
			Y2: padding + headerH + columnHd/2,
		})
	}

	layout.Width = int(padding*2 + float64(len(layout.Columns))*(boxW+colGap) - colGap)
	if layout.Width < 480 {
		layout.Width = 480
	}
	layout.Height = int(padding*2 + headerH + columnHd + float64(maxRows)*(boxH+rowGap))
	if layout.Height < 240 {
		layout.Height = 240
	}
	return layout
}

func columnLabel(lvl model.Level) string {
	label := lvl.Label
	if label == "" {
		label = lvl.ID
	}
	return fmt.Sprintf("%d · %s", lvl.Index, truncate(label, 20))
}

// truncate shortens s to at most width display cells.
func truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}

// --- rendering -------------------------------------------------------------

var (
	colorBackdrop  = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG  = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorBranch    = color.RGBA{0xe3, 0xf2, 0xfd, 0xff}
	colorLeaf      = color.RGBA{0xc8, 0xe6, 0xc9, 0xff}
	colorStroke    = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorEdge      = color.RGBA{0x6b, 0x80, 0xbf, 0xff}
	colorText      = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle    = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorActive    = color.RGBA{0xbd, 0x93, 0xf9, 0x55}
	colorPeekLeft  = color.RGBA{0xcf, 0xd8, 0xdc, 0x88}
	colorPeekRight = color.RGBA{0xff, 0xf3, 0xe0, 0xcc}
)

func roleColor(r model.SlotRole) (color.RGBA, bool) {
	switch r {
	case model.SlotActive:
		return colorActive, true
	case model.SlotPeekLeft:
		return colorPeekLeft, true
	case model.SlotPeekRight:
		return colorPeekRight, true
	default:
		return color.RGBA{}, false
	}
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func renderDiagramSVG(w io.Writer, l diagramLayout) error {
	canvas := svg.New(w)
	canvas.Start(l.Width, l.Height)
	canvas.Rect(0, 0, l.Width, l.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, l.Width-32, int(headerH-16), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(int(padding), 44, l.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(int(padding), 66, l.Summary, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))

	for _, col := range l.Columns {
		if c, ok := roleColor(col.Role); ok {
			canvas.Roundrect(int(col.X-8), int(padding+headerH-4), int(boxW+16), l.Height-int(padding+headerH), 8, 8,
				fmt.Sprintf("fill:%s;fill-opacity:%.2f", css(c), float64(c.A)/255))
		}
		canvas.Text(int(col.X), int(padding+headerH+18), col.Label,
			fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
	}

	for _, e := range l.Edges {
		canvas.Line(int(e.X1), int(e.Y1), int(e.X2), int(e.Y2), fmt.Sprintf("stroke:%s;stroke-width:2", css(colorEdge)))
		x2, y2 := int(e.X2), int(e.Y2)
		canvas.Polygon(
			[]int{x2, x2 - 8, x2 - 8},
			[]int{y2, y2 - 4, y2 + 4},
			fmt.Sprintf("fill:%s", css(colorEdge)),
		)
	}

	for _, col := range l.Columns {
		for _, b := range col.Boxes {
			fill := colorBranch
			if b.Leaf {
				fill = colorLeaf
			}
			canvas.Roundrect(int(b.X), int(b.Y), int(boxW), int(boxH), 6, 6,
				fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2", css(fill), css(colorStroke)))
			canvas.Text(int(b.X)+10, int(b.Y)+19, b.Label,
				fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
			canvas.Text(int(b.X)+10, int(b.Y)+36, truncate(b.ID, 26),
				fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
		}
	}

	canvas.End()
	return nil
}

func renderDiagramPNG(path string, l diagramLayout) error {
	dc := gg.NewContext(l.Width, l.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(l.Width)-32, headerH-16, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorText)
	dc.DrawString(l.Title, padding, 44)
	dc.SetColor(colorSubtle)
	dc.DrawString(l.Summary, padding, 66)

	for _, col := range l.Columns {
		if c, ok := roleColor(col.Role); ok {
			dc.SetColor(c)
			dc.DrawRoundedRectangle(col.X-8, padding+headerH-4, boxW+16, float64(l.Height)-padding-headerH, 8)
			dc.Fill()
		}
		dc.SetColor(colorSubtle)
		dc.DrawString(col.Label, col.X, padding+headerH+18)
	}

	dc.SetColor(colorEdge)
	dc.SetLineWidth(2)
	for _, e := range l.Edges {
		dc.DrawLine(e.X1, e.Y1, e.X2, e.Y2)
		dc.Stroke()
		dc.MoveTo(e.X2, e.Y2)
		dc.LineTo(e.X2-8, e.Y2-4)
		dc.LineTo(e.X2-8, e.Y2+4)
		dc.ClosePath()
		dc.Fill()
	}

	for _, col := range l.Columns {
		for _, b := range col.Boxes {
			fill := colorBranch
			if b.Leaf {
				fill = colorLeaf
			}
			dc.SetColor(fill)
			dc.DrawRoundedRectangle(b.X, b.Y, boxW, boxH, 6)
			dc.FillPreserve()
			dc.SetColor(colorStroke)
			dc.SetLineWidth(1.2)
			dc.Stroke()

			dc.SetColor(colorText)
			dc.DrawString(b.Label, b.X+10, b.Y+19)
			dc.SetColor(colorSubtle)
			dc.DrawString(truncate(b.ID, 26), b.X+10, b.Y+36)
		}
	}

	return dc.SavePNG(path)
}
