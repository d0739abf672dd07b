// Package embed wires element nodes into an outer editing surface: a
// plugin that keeps a document-wide validation summary, a host that mounts
// one element view per element node, and the commands a host UI offers on
// an element.
package embed

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eykd/prosemark-elements/internal/element"
	"github.com/eykd/prosemark-elements/internal/model"
	"github.com/eykd/prosemark-elements/internal/state"
)

// ErrNoRegistry is returned by New when Config carries no registry.
var ErrNoRegistry = errors.New("embed: config has no element registry")

// Config is everything the embed layer needs. It is built once by the
// integrating application and passed down; nothing here is global.
type Config struct {
	// Registry holds the element specs. Required.
	Registry *element.Registry
	// Schema must contain the registry's node specs. Nil builds one with
	// element.NewSchema.
	Schema *model.Schema
	// NewID generates repeater child ids. Nil uses element.NewUUID.
	NewID element.IDFunc
	// Now stamps inserted elements. Nil uses time.Now.
	Now func() time.Time
	// Logger receives lifecycle diagnostics. Nil discards.
	Logger *slog.Logger
}

// Embed is a configured embed layer.
type Embed struct {
	schema  *model.Schema
	reg     *element.Registry
	builder *element.Builder
	agg     *element.Aggregator
	now     func() time.Time
	log     *slog.Logger
	key     *state.PluginKey
	reach   map[string]bool
}

// New validates cfg and fills in its defaults.
func New(cfg Config) (*Embed, error) {
	if cfg.Registry == nil {
		return nil, ErrNoRegistry
	}
	schema := cfg.Schema
	if schema == nil {
		var err error
		if schema, err = element.NewSchema(cfg.Registry); err != nil {
			return nil, fmt.Errorf("build schema: %w", err)
		}
	}
	for _, s := range cfg.Registry.Specs() {
		if _, ok := schema.Nodes[s.Name]; !ok {
			return nil, fmt.Errorf("%w: schema lacks element %q", model.ErrUnknownType, s.Name)
		}
	}
	e := &Embed{
		schema:  schema,
		reg:     cfg.Registry,
		builder: element.NewBuilder(schema, cfg.Registry, cfg.NewID),
		agg:     element.NewAggregator(cfg.Registry),
		now:     cfg.Now,
		log:     cfg.Logger,
		key:     state.NewPluginKey("embed"),
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = slog.New(slog.DiscardHandler)
	}
	e.reach = reachable(schema, cfg.Registry)
	return e, nil
}

// Schema returns the schema.
func (e *Embed) Schema() *model.Schema { return e.schema }

// Registry returns the element registry.
func (e *Embed) Registry() *element.Registry { return e.reg }

// Builder returns the node builder.
func (e *Embed) Builder() *element.Builder { return e.builder }

// Aggregator returns the field aggregator.
func (e *Embed) Aggregator() *element.Aggregator { return e.agg }

// reachable returns the node types whose content can, directly or
// through other types, contain an element node.
func reachable(schema *model.Schema, reg *element.Registry) map[string]bool {
	reach := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for _, nt := range schema.NodeTypes() {
			if reach[nt.Name] || reg.IsElement(nt.Name) {
				continue
			}
			for _, name := range nt.ContentExpr().Names() {
				if reg.IsElement(name) || reach[name] {
					reach[nt.Name] = true
					changed = true
					break
				}
			}
		}
	}
	return reach
}

// located is an element node and the position before it.
type located struct {
	pos  int
	node *model.Node
}

// elements lists the element nodes of doc in document order, descending
// only into nodes that can contain elements.
func (e *Embed) elements(doc *model.Node) []located {
	var out []located
	doc.Descendants(func(n *model.Node, pos int, _ *model.Node, _ int) bool {
		if e.reg.IsElement(n.Type.Name) {
			out = append(out, located{pos: pos, node: n})
			return false
		}
		return e.reach[n.Type.Name]
	})
	return out
}

// InsertElement returns a transaction inserting a new element at pos,
// filled from values and defaults and stamped with the current time.
func (e *Embed) InsertElement(st *state.EditorState, pos int, name string, values map[string]any) (*state.Transaction, error) {
	addedAt := e.now().UTC().Truncate(time.Second).Format(time.RFC3339)
	n, err := e.builder.Element(name, values, model.Attrs{element.AttrAddedAt: addedAt}, element.UsedIDs(st.Doc))
	if err != nil {
		return nil, err
	}
	tr := st.Tr()
	if err := tr.Insert(pos, n); err != nil {
		return nil, fmt.Errorf("insert %s at %d: %w", name, pos, err)
	}
	return tr, nil
}

// CreateState builds an outer state for doc with the embed plugin, followed
// by plugins, and brings every element's hasErrors flag in line with its
// fields.
func (e *Embed) CreateState(doc *model.Node, plugins ...*state.Plugin) (*state.EditorState, error) {
	if err := doc.Check(); err != nil {
		return nil, err
	}
	st := state.Create(state.Config{Doc: doc, Plugins: append([]*state.Plugin{e.Plugin()}, plugins...)})
	if tr := e.syncFlags(st); tr != nil {
		return st.Apply(tr)
	}
	return st, nil
}
