package loader

import (
	"fmt"
	"io"
	"strings"

	"github.com/vanderheijden86/peektree/pkg/model"

	"golang.org/x/net/html"
)

// levelLabels names levels that carry only a numeric data-level attribute.
var levelLabels = map[string]string{
	"1": "Nutzen",
	"2": "Funktionen",
	"3": "Details",
}

// HTMLParser reads the feature-tree widget markup:
//
//	<div class="tree-level" data-level="1">
//	  <div class="tree-node" data-id="a">
//	    <span class="node-headline">A</span>
//	    <p class="node-description">...</p>
//	  </div>
//	  <div class="tree-node leaf" data-id="b">...</div>
//	</div>
//	<div class="tree-level" data-level="2" data-parent="a">...</div>
//
// A level may override its label with data-label and its id with id. Nodes
// without data-id get one derived from their headline; such nodes cannot be
// named by a data-parent, which is fine for leaves.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (model.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return model.Document{}, fmt.Errorf("parse html: %w", err)
	}

	doc := model.Document{Title: titleFromFilename(filename)}
	if title := findTitle(root); title != "" {
		doc.Title = title
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "tree-level") {
			doc.Levels = append(doc.Levels, parseLevel(n, len(doc.Levels)))
			return // levels do not nest
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if len(doc.Levels) == 0 {
		return model.Document{}, fmt.Errorf("no .tree-level elements found")
	}
	doc.Levels = rootFirst(doc.Levels)
	fillMissingIDs(doc.Levels)
	if doc.Levels[0].Label != "" {
		doc.RootLabel = doc.Levels[0].Label
	}
	return doc, nil
}

func parseLevel(n *html.Node, pos int) model.LevelSpec {
	lvl := model.LevelSpec{
		ID:           attr(n, "id"),
		ParentNodeID: attr(n, "data-parent"),
		Label:        attr(n, "data-label"),
	}
	if lvl.Label == "" {
		lvl.Label = levelLabels[attr(n, "data-level")]
	}
	if lvl.ID == "" {
		if lvl.ParentNodeID != "" {
			lvl.ID = "level-" + lvl.ParentNodeID
		} else {
			lvl.ID = fmt.Sprintf("level-%d", pos)
		}
	}

	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode && hasClass(c, "tree-node") {
			lvl.Nodes = append(lvl.Nodes, parseNode(c))
			return
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return lvl
}

func parseNode(n *html.Node) model.NodeSpec {
	ns := model.NodeSpec{
		ID:   attr(n, "data-id"),
		Leaf: hasClass(n, "leaf"),
	}
	if h := findByClass(n, "node-headline"); h != nil {
		ns.Label = textContent(h)
	} else {
		ns.Label = textContent(n)
	}
	if d := findByClass(n, "node-description"); d != nil {
		ns.Description = textContent(d)
	}
	return ns
}

// fillMissingIDs gives every id-less node a slug of its label that does not
// clash with any explicit data-id in the document.
func fillMissingIDs(levels []model.LevelSpec) {
	taken := make(idSet)
	for _, l := range levels {
		for _, n := range l.Nodes {
			if n.ID != "" {
				taken[n.ID] = true
			}
		}
	}
	for i := range levels {
		for j := range levels[i].Nodes {
			if n := &levels[i].Nodes[j]; n.ID == "" {
				n.ID = taken.claim(slugify(n.Label))
			}
		}
	}
}

// rootFirst moves the first parentless level to the front, keeping the
// relative order of all others.
func rootFirst(levels []model.LevelSpec) []model.LevelSpec {
	for i, l := range levels {
		if l.ParentNodeID != "" {
			continue
		}
		if i == 0 {
			return levels
		}
		out := make([]model.LevelSpec, 0, len(levels))
		out = append(out, l)
		out = append(out, levels[:i]...)
		return append(out, levels[i+1:]...)
	}
	return levels
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findByClass(n *html.Node, class string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && hasClass(c, class) {
			return c
		}
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// textContent collects the visible text under n with whitespace collapsed.
// SVG icons and scripts are skipped.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode {
			switch c.Data {
			case "script", "style", "svg":
				return
			}
		}
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
			sb.WriteByte(' ')
		}
		for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
			walk(cc)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
