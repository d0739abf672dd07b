package state

import (
	"errors"

	"github.com/eykd/prosemark-elements/internal/model"
)

// ErrMismatchedTransaction is returned when a transaction is applied to a
// state other than the one it was created from.
var ErrMismatchedTransaction = errors.New("state: transaction does not start from this state's document")

// Config configures a new EditorState.
type Config struct {
	Doc         *model.Node
	Selection   *Selection // nil selects the start of Doc
	StoredMarks []model.Mark
	Plugins     []*Plugin
}

// EditorState is an immutable snapshot of one surface.
type EditorState struct {
	Doc         *model.Node
	Selection   Selection
	StoredMarks []model.Mark

	plugins []*Plugin
	fields  map[*PluginKey]any
}

// Create builds the initial state for cfg.
func Create(cfg Config) *EditorState {
	st := &EditorState{
		Doc:         cfg.Doc,
		StoredMarks: cfg.StoredMarks,
		plugins:     cfg.Plugins,
		fields:      make(map[*PluginKey]any, len(cfg.Plugins)),
	}
	if cfg.Selection != nil {
		st.Selection = *cfg.Selection
	} else {
		st.Selection = AtStart(cfg.Doc)
	}
	for _, p := range cfg.Plugins {
		if p.Init != nil {
			st.fields[p.Key] = p.Init(st)
		}
	}
	return st
}

// Plugins returns the plugins active in the state.
func (st *EditorState) Plugins() []*Plugin { return append([]*Plugin(nil), st.plugins...) }

// Tr starts a transaction from this state.
func (st *EditorState) Tr() *Transaction { return newTransaction(st) }

// Apply applies tr and any transactions plugins append in response,
// returning the final state.
func (st *EditorState) Apply(tr *Transaction) (*EditorState, error) {
	next, _, err := st.ApplyTransaction(tr)
	return next, err
}

// ApplyTransaction applies tr and then lets every plugin append follow-up
// transactions until none do. It returns the final state and every
// transaction applied, root first.
func (st *EditorState) ApplyTransaction(root *Transaction) (*EditorState, []*Transaction, error) {
	next, err := st.applyInner(root)
	if err != nil {
		return nil, nil, err
	}
	trs := []*Transaction{root}

	type seenState struct {
		state *EditorState
		n     int
	}
	var seen []seenState
	for {
		haveNew := false
		for i, p := range st.plugins {
			if p.AppendTransaction == nil {
				continue
			}
			n, old := 0, st
			if seen != nil {
				n, old = seen[i].n, seen[i].state
			}
			if n < len(trs) {
				if tr := p.AppendTransaction(trs[n:], old, next); tr != nil {
					tr.SetMeta(MetaAppendedTransaction, root)
					if seen == nil {
						seen = make([]seenState, len(st.plugins))
						for j := range seen {
							seen[j] = seenState{state: st, n: 0}
						}
					}
					trs = append(trs, tr)
					next, err = next.applyInner(tr)
					if err != nil {
						return nil, nil, err
					}
					haveNew = true
				}
			}
			if seen != nil {
				seen[i] = seenState{state: next, n: len(trs)}
			}
		}
		if !haveNew {
			return next, trs, nil
		}
	}
}

func (st *EditorState) applyInner(tr *Transaction) (*EditorState, error) {
	if tr.Before != st.Doc {
		return nil, ErrMismatchedTransaction
	}
	next := &EditorState{
		Doc:       tr.Doc,
		Selection: tr.Selection(),
		plugins:   st.plugins,
		fields:    make(map[*PluginKey]any, len(st.plugins)),
	}
	switch {
	case tr.StoredMarksSet():
		next.StoredMarks = tr.StoredMarks()
	case tr.DocChanged() || tr.SelectionSet():
		next.StoredMarks = nil
	default:
		next.StoredMarks = st.StoredMarks
	}
	for _, p := range st.plugins {
		value := st.fields[p.Key]
		if p.Apply != nil {
			value = p.Apply(tr, value, st, next)
		}
		next.fields[p.Key] = value
	}
	return next, nil
}
