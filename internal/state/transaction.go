package state

import (
	"github.com/eykd/prosemark-elements/internal/model"
	"github.com/eykd/prosemark-elements/internal/transform"
)

// Well-known transaction metadata keys.
const (
	// MetaFromOutside marks an inner transaction produced by a structural
	// update from the parent surface. Such transactions are never projected
	// back outward.
	MetaFromOutside = "fromOutside"

	// MetaAppendedTransaction holds the root transaction that caused a
	// plugin to append this one.
	MetaAppendedTransaction = "appendedTransaction"

	// MetaAddToHistory set to false keeps a transaction out of undo history.
	MetaAddToHistory = "addToHistory"
)

// Transaction is a Transform created from an EditorState, extended with
// selection, stored marks and metadata.
type Transaction struct {
	*transform.Transform

	startSel       Selection
	selection      Selection
	selectionSet   bool
	storedMarks    []model.Mark
	storedMarksSet bool
	meta           map[string]any
}

func newTransaction(st *EditorState) *Transaction {
	return &Transaction{
		Transform:   transform.New(st.Doc),
		startSel:    st.Selection,
		storedMarks: st.StoredMarks,
		meta:        make(map[string]any),
	}
}

// Selection returns the transaction's selection: the explicitly set one, or
// the starting selection mapped through the steps so far.
func (tr *Transaction) Selection() Selection {
	if tr.selectionSet {
		return tr.selection
	}
	return tr.startSel.Map(tr.Doc, tr.Mapping)
}

// SetSelection sets the selection the new state will have.
func (tr *Transaction) SetSelection(sel Selection) *Transaction {
	tr.selection = sel
	tr.selectionSet = true
	tr.storedMarksSet = false
	return tr
}

// SelectionSet reports whether SetSelection was called.
func (tr *Transaction) SelectionSet() bool { return tr.selectionSet }

// StoredMarks returns the marks the next typed text will carry.
func (tr *Transaction) StoredMarks() []model.Mark { return tr.storedMarks }

// SetStoredMarks replaces the stored marks.
func (tr *Transaction) SetStoredMarks(marks []model.Mark) *Transaction {
	tr.storedMarks = marks
	tr.storedMarksSet = true
	return tr
}

// StoredMarksSet reports whether SetStoredMarks was called.
func (tr *Transaction) StoredMarksSet() bool { return tr.storedMarksSet }

// SetMeta stores a metadata value.
func (tr *Transaction) SetMeta(key string, value any) *Transaction {
	tr.meta[key] = value
	return tr
}

// Meta returns a metadata value, or nil.
func (tr *Transaction) Meta(key string) any { return tr.meta[key] }

// IsFromOutside reports whether the transaction carries MetaFromOutside.
func (tr *Transaction) IsFromOutside() bool {
	v, _ := tr.meta[MetaFromOutside].(bool)
	return v
}
