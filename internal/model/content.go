package model

import (
	"fmt"
	"sort"
	"strings"
)

// contentItem is one element of a content expression: a set of admissible
// node type names with a repetition range. max < 0 means unbounded.
type contentItem struct {
	expr  string
	names map[string]bool
	min   int
	max   int
}

// ContentExpr is a parsed content expression such as "paragraph+" or
// "image__caption image__alt". Items are matched in order, each greedily.
type ContentExpr struct {
	source string
	items  []contentItem
}

// parseContentExpr parses src against the known type names and groups.
// groups maps a group name to the node type names belonging to it.
func parseContentExpr(src string, types map[string]bool, groups map[string][]string) (*ContentExpr, error) {
	expr := &ContentExpr{source: src}
	for _, tok := range strings.Fields(src) {
		item := contentItem{expr: tok, min: 1, max: 1}
		name := tok
		switch {
		case strings.HasSuffix(tok, "*"):
			name, item.min, item.max = tok[:len(tok)-1], 0, -1
		case strings.HasSuffix(tok, "+"):
			name, item.min, item.max = tok[:len(tok)-1], 1, -1
		case strings.HasSuffix(tok, "?"):
			name, item.min, item.max = tok[:len(tok)-1], 0, 1
		}
		if name == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadContentExpr, src)
		}
		item.names = make(map[string]bool)
		if types[name] {
			item.names[name] = true
		} else if members, ok := groups[name]; ok {
			for _, m := range members {
				item.names[m] = true
			}
		} else {
			return nil, fmt.Errorf("%w: %q names unknown type or group %q", ErrBadContentExpr, src, name)
		}
		expr.items = append(expr.items, item)
	}
	return expr, nil
}

// IsEmpty reports whether the expression admits no content (leaf nodes).
func (c *ContentExpr) IsEmpty() bool {
	return c == nil || len(c.items) == 0
}

// String returns the source expression.
func (c *ContentExpr) String() string {
	if c == nil {
		return ""
	}
	return c.source
}

// Matches reports whether the fragment satisfies the expression.
func (c *ContentExpr) Matches(f *Fragment) bool {
	children := f.Children()
	if c.IsEmpty() {
		return len(children) == 0
	}
	i := 0
	for _, item := range c.items {
		count := 0
		for i < len(children) && item.names[children[i].Type.Name] && (item.max < 0 || count < item.max) {
			i++
			count++
		}
		if count < item.min {
			return false
		}
	}
	return i == len(children)
}

// CanContain reports whether any item of the expression admits the named type.
func (c *ContentExpr) CanContain(name string) bool {
	if c == nil {
		return false
	}
	for _, item := range c.items {
		if item.names[name] {
			return true
		}
	}
	return false
}

// Names returns every type name the expression admits, in item order.
func (c *ContentExpr) Names() []string {
	if c == nil {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, item := range c.items {
		names := make([]string, 0, len(item.names))
		for name := range item.names {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}
