package field

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eykd/prosemark-elements/internal/markup"
	"github.com/eykd/prosemark-elements/internal/model"
)

// AttrFields is the node attribute that holds an attribute field's value.
const AttrFields = "fields"

// ParagraphNode is the block type rich text fields are made of.
const ParagraphNode = "paragraph"

// ErrNoCodec is returned for kinds whose nodes are built by the element
// layer rather than by a standalone codec.
var ErrNoCodec = errors.New("field: kind has no standalone codec")

// Codec converts between a field node and the field's value.
type Codec interface {
	ValueFromNode(n *model.Node) (any, error)
	NodeFromValue(nt *model.NodeType, value any) (*model.Node, error)
}

// CodecFor returns the codec for kind.
func CodecFor(kind Kind) (Codec, error) {
	switch kind {
	case KindText:
		return textCodec{}, nil
	case KindRichText:
		return richTextCodec{}, nil
	case KindCheckbox, KindDropdown, KindCustom:
		return attrCodec{kind: kind}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoCodec, kind)
}

// textCodec stores a plain string as the node's text content.
type textCodec struct{}

func (textCodec) ValueFromNode(n *model.Node) (any, error) {
	return n.TextContent(), nil
}

func (textCodec) NodeFromValue(nt *model.NodeType, value any) (*model.Node, error) {
	return nt.CreateChecked(nil, model.NewFragment(nt.Schema.Text(asString(value))), nil)
}

// richTextCodec stores HTML as paragraphs of marked text.
type richTextCodec struct{}

func (richTextCodec) ValueFromNode(n *model.Node) (any, error) {
	return markup.Render(n.Content)
}

func (richTextCodec) NodeFromValue(nt *model.NodeType, value any) (*model.Node, error) {
	content, err := markup.Parse(nt.Schema, nt, asString(value))
	if err != nil {
		return nil, err
	}
	if content.ChildCount() == 0 {
		p, err := nt.Schema.Node(ParagraphNode, nil)
		if err != nil {
			return nil, err
		}
		content = model.NewFragment(p)
	}
	return nt.CreateChecked(nil, content, nil)
}

// attrCodec stores the value in the node's fields attribute.
type attrCodec struct {
	kind Kind
}

func (c attrCodec) ValueFromNode(n *model.Node) (any, error) {
	return c.coerce(n.Attr(AttrFields)), nil
}

func (c attrCodec) NodeFromValue(nt *model.NodeType, value any) (*model.Node, error) {
	return nt.CreateChecked(model.Attrs{AttrFields: c.coerce(value)}, nil, nil)
}

func (c attrCodec) coerce(v any) any {
	switch c.kind {
	case KindCheckbox:
		switch b := v.(type) {
		case bool:
			return b
		case string:
			return strings.EqualFold(b, "true")
		}
		return false
	case KindDropdown:
		return asString(v)
	}
	return v
}
