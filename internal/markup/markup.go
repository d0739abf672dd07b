// Package markup converts document fragments to and from HTML using the
// ToDOM and ParseDOM rules declared on each node and mark type.
package markup

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/eykd/prosemark-elements/internal/model"
)

// ErrNoDOMSpec is returned when a node or mark type has no ToDOM rule.
var ErrNoDOMSpec = errors.New("markup: type has no DOM representation")

// ErrUnexpectedText is returned when text appears where the content
// expression admits none.
var ErrUnexpectedText = errors.New("markup: text not allowed here")

// ErrUnrepresentable is returned by Render for text that HTML parsing would
// not give back unchanged: NUL is dropped and CR is folded into LF.
var ErrUnrepresentable = errors.New("markup: text cannot be represented in HTML")

// unrepresentable lists the runes HTML parsing does not preserve in text.
const unrepresentable = "\x00\r"

// Render serializes frag to HTML.
func Render(frag *model.Fragment) (string, error) {
	var buf bytes.Buffer
	for _, n := range frag.Children() {
		hn, err := toHTML(n)
		if err != nil {
			return "", err
		}
		if err := html.Render(&buf, hn); err != nil {
			return "", fmt.Errorf("render %s: %w", n.Type.Name, err)
		}
	}
	return buf.String(), nil
}

// RenderNode serializes a single node to HTML.
func RenderNode(n *model.Node) (string, error) {
	return Render(model.NewFragment(n))
}

func toHTML(n *model.Node) (*html.Node, error) {
	if n.IsText() {
		if i := strings.IndexAny(n.Text, unrepresentable); i >= 0 {
			return nil, fmt.Errorf("%w: %q at offset %d", ErrUnrepresentable, n.Text[i], i)
		}
		cur := &html.Node{Type: html.TextNode, Data: n.Text}
		for i := len(n.Marks) - 1; i >= 0; i-- {
			m := n.Marks[i]
			if m.Type.Spec.ToDOM == nil {
				return nil, fmt.Errorf("%w: mark %s", ErrNoDOMSpec, m.Type.Name)
			}
			el := element(m.Type.Spec.ToDOM(m))
			el.AppendChild(cur)
			cur = el
		}
		return cur, nil
	}
	if n.Type.Spec.ToDOM == nil {
		return nil, fmt.Errorf("%w: node %s", ErrNoDOMSpec, n.Type.Name)
	}
	spec := n.Type.Spec.ToDOM(n)
	el := element(spec)
	if spec.Hole {
		for _, child := range n.Content.Children() {
			hc, err := toHTML(child)
			if err != nil {
				return nil, err
			}
			el.AppendChild(hc)
		}
	}
	return el, nil
}

func element(spec model.DOMSpec) *html.Node {
	el := &html.Node{Type: html.ElementNode, Data: spec.Tag, DataAtom: atom.Lookup([]byte(spec.Tag))}
	keys := make([]string, 0, len(spec.Attrs))
	for k := range spec.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		el.Attr = append(el.Attr, html.Attribute{Key: k, Val: spec.Attrs[k]})
	}
	return el
}

// Parse reads src as the content of a node of type parent.
func Parse(schema *model.Schema, parent *model.NodeType, src string) (*model.Fragment, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	roots, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	p := parser{schema: schema}
	nodes, err := p.children(roots, parent, nil)
	if err != nil {
		return nil, err
	}
	return model.NewFragment(nodes...), nil
}

// ParseDoc reads src as the content of the schema's top node and checks
// the result.
func ParseDoc(schema *model.Schema, src string) (*model.Node, error) {
	content, err := Parse(schema, schema.TopNode, src)
	if err != nil {
		return nil, err
	}
	doc, err := schema.TopNode.Create(nil, content, nil)
	if err != nil {
		return nil, err
	}
	if err := doc.Check(); err != nil {
		return nil, err
	}
	return doc, nil
}

type parser struct {
	schema *model.Schema
}

func (p parser) children(nodes []*html.Node, ctx *model.NodeType, marks []model.Mark) ([]*model.Node, error) {
	var out []*model.Node
	for _, hn := range nodes {
		switch hn.Type {
		case html.TextNode:
			if ctx.ContentExpr().CanContain(model.TextTypeName) {
				out = append(out, p.schema.Text(hn.Data, marks...))
			} else if strings.TrimSpace(hn.Data) != "" {
				return nil, fmt.Errorf("%w: %q in %s", ErrUnexpectedText, hn.Data, ctx.Name)
			}
		case html.ElementNode:
			parsed, err := p.element(hn, ctx, marks)
			if err != nil {
				return nil, err
			}
			out = append(out, parsed...)
		}
	}
	return out, nil
}

func (p parser) element(hn *html.Node, ctx *model.NodeType, marks []model.Mark) ([]*model.Node, error) {
	attrs := attrMap(hn)
	kids := childList(hn)
	for _, nt := range p.schema.NodeTypes() {
		a, ok := match(nt.Spec.ParseDOM, hn.Data, attrs)
		if !ok {
			continue
		}
		content, err := p.children(kids, nt, nil)
		if err != nil {
			return nil, err
		}
		n, err := nt.CreateChecked(a, model.NewFragment(content...), nil)
		if err != nil {
			return nil, err
		}
		return []*model.Node{n}, nil
	}
	for _, mt := range p.schema.MarkTypes() {
		a, ok := match(mt.Spec.ParseDOM, hn.Data, attrs)
		if !ok {
			continue
		}
		m, err := mt.Create(a)
		if err != nil {
			return nil, err
		}
		if !m.IsInSet(marks) {
			marks = append(append([]model.Mark(nil), marks...), m)
		}
		return p.children(kids, ctx, marks)
	}
	// Unknown elements are transparent.
	return p.children(kids, ctx, marks)
}

func match(rules []model.ParseRule, tag string, attrs map[string]string) (model.Attrs, bool) {
	for _, r := range rules {
		if r.Tag != tag {
			continue
		}
		if r.Attr != "" {
			if _, ok := attrs[r.Attr]; !ok {
				continue
			}
		}
		if r.GetAttrs == nil {
			return nil, true
		}
		if a, ok := r.GetAttrs(attrs); ok {
			return a, true
		}
	}
	return nil, false
}

func attrMap(hn *html.Node) map[string]string {
	out := make(map[string]string, len(hn.Attr))
	for _, a := range hn.Attr {
		out[a.Key] = a.Val
	}
	return out
}

func childList(hn *html.Node) []*html.Node {
	var out []*html.Node
	for c := hn.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}
