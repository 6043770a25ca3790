package loader

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/vanderheijden86/peektree/pkg/model"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser reads a nested bullet outline:
//
//	# Nutzen
//
//	- Save time
//	  Automate the boring parts.
//	  - Automation
//	    - Scheduler
//	  - Templates
//	- About
//
// The first H1 names the hierarchy and the root crumb. Each top-level item
// is a root node; an item with a nested list is a branch whose nested list
// becomes its child level, an item without one is a leaf. Text after the
// first line of an item is its description.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (model.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return model.Document{}, err
	}

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(src))

	b := &outlineBuilder{
		src: src,
		doc: model.Document{Title: titleFromFilename(filename)},
		ids: make(idSet),
	}
	b.doc.Levels = append(b.doc.Levels, model.LevelSpec{ID: "root"})

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 1 && b.doc.RootLabel == "" {
				b.doc.RootLabel = blockText(node, src)
				b.doc.Title = b.doc.RootLabel
				b.doc.Levels[0].Label = b.doc.RootLabel
			}
		case *ast.List:
			b.addItems(0, node)
		}
	}

	if len(b.doc.Levels[0].Nodes) == 0 {
		return model.Document{}, fmt.Errorf("no outline list found")
	}
	return b.doc, nil
}

type outlineBuilder struct {
	src []byte
	doc model.Document
	ids idSet
}

// addItems appends the items of list to the level at index lvl.
func (b *outlineBuilder) addItems(lvl int, list *ast.List) {
	for c := list.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}

		var (
			label string
			descr []string
			child *ast.List
		)
		for part := item.FirstChild(); part != nil; part = part.NextSibling() {
			switch part := part.(type) {
			case *ast.List:
				if child == nil {
					child = part
				}
			default:
				lines := blockLines(part, b.src)
				if label == "" && len(lines) > 0 {
					label, lines = lines[0], lines[1:]
				}
				if len(lines) > 0 {
					descr = append(descr, strings.Join(lines, "\n"))
				}
			}
		}
		if label == "" {
			continue
		}

		id := b.uniqueID(label)
		b.doc.Levels[lvl].Nodes = append(b.doc.Levels[lvl].Nodes, model.NodeSpec{
			ID:          id,
			Label:       label,
			Description: strings.Join(descr, "\n\n"),
			Leaf:        child == nil,
		})

		if child != nil {
			b.doc.Levels = append(b.doc.Levels, model.LevelSpec{
				ID:           "level-" + id,
				ParentNodeID: id,
			})
			b.addItems(len(b.doc.Levels)-1, child)
		}
	}
}

func (b *outlineBuilder) uniqueID(label string) string {
	return b.ids.claim(slugify(label))
}

func blockLines(n ast.Node, src []byte) []string {
	var out []string
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if l := strings.TrimSpace(string(seg.Value(src))); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return strings.TrimSpace(buf.String())
}

// slugify lowercases s and replaces every run of non-alphanumerics with "-".
func slugify(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

// idSet tracks the node ids already handed out within one document.
type idSet map[string]bool

// claim returns the first of base, base-2, base-3, ... that is not taken
// and marks it taken. An empty base becomes "node".
func (s idSet) claim(base string) string {
	if base == "" {
		base = "node"
	}
	id := base
	for n := 2; s[id]; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	s[id] = true
	return id
}
