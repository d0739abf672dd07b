package model

import (
	"encoding/json"
	"fmt"
)

type markJSON struct {
	Type  string `json:"type"`
	Attrs Attrs  `json:"attrs,omitempty"`
}

type nodeJSON struct {
	Type    string     `json:"type"`
	Attrs   Attrs      `json:"attrs,omitempty"`
	Content []nodeJSON `json:"content,omitempty"`
	Text    string     `json:"text,omitempty"`
	Marks   []markJSON `json:"marks,omitempty"`
}

// MarshalJSON encodes the node as {type, attrs, content, text, marks}.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.toJSON())
}

func (n *Node) toJSON() nodeJSON {
	out := nodeJSON{Type: n.Type.Name, Attrs: n.Attrs, Text: n.Text}
	for _, m := range n.Marks {
		out.Marks = append(out.Marks, markJSON{Type: m.Type.Name, Attrs: m.Attrs})
	}
	for _, c := range n.Content.Children() {
		out.Content = append(out.Content, c.toJSON())
	}
	return out
}

// NodeFromJSON decodes a node previously encoded with MarshalJSON and checks
// it against the schema.
func (s *Schema) NodeFromJSON(data []byte) (*Node, error) {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding node JSON: %w", err)
	}
	n, err := s.fromJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := n.Check(); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Schema) fromJSON(raw nodeJSON) (*Node, error) {
	var marks []Mark
	for _, rm := range raw.Marks {
		mt, err := s.MarkType(rm.Type)
		if err != nil {
			return nil, err
		}
		m, err := mt.Create(rm.Attrs)
		if err != nil {
			return nil, err
		}
		marks = append(marks, m)
	}
	if raw.Type == TextTypeName {
		if raw.Text == "" {
			return nil, fmt.Errorf("%w: empty text node", ErrInvalidContent)
		}
		return s.Text(raw.Text, marks...), nil
	}
	nt, err := s.NodeType(raw.Type)
	if err != nil {
		return nil, err
	}
	children := make([]*Node, 0, len(raw.Content))
	for _, rc := range raw.Content {
		c, err := s.fromJSON(rc)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return nt.Create(raw.Attrs, NewFragment(children...), marks)
}
