// Package surface implements live editing sessions and the protocol that
// keeps a nested surface consistent with the node anchoring it in a parent
// surface.
package surface

import (
	"errors"
	"log/slog"

	"github.com/eykd/prosemark-elements/internal/state"
)

// ErrClosed is returned by operations on a destroyed Surface or Synchronizer.
var ErrClosed = errors.New("surface: closed")

// Surface is a live editing session over one document. It is not safe for
// concurrent use; every mutation happens inside a dispatch call.
type Surface struct {
	state       *state.EditorState
	dispatch    func(tr *state.Transaction) error
	decorations DecorationSet
	listeners   []listener
	nextID      int
	destroyed   bool
	log         *slog.Logger
}

type listener struct {
	id int
	fn func(st *state.EditorState, applied []*state.Transaction)
}

// New starts a surface on st.
func New(st *state.EditorState, opts ...Option) *Surface {
	c := newConfig(opts)
	s := &Surface{state: st, log: c.logger}
	s.dispatch = c.dispatch
	if s.dispatch == nil {
		s.dispatch = func(tr *state.Transaction) error {
			_, err := s.Apply(tr)
			return err
		}
	}
	return s
}

// State returns the current state.
func (s *Surface) State() *state.EditorState { return s.state }

// Decorations returns the decorations currently shown on the surface.
func (s *Surface) Decorations() DecorationSet { return s.decorations }

// SetDecorations replaces the surface's decorations.
func (s *Surface) SetDecorations(d DecorationSet) { s.decorations = d }

// Destroyed reports whether Destroy was called.
func (s *Surface) Destroyed() bool { return s.destroyed }

// Dispatch routes tr through the surface's dispatch function.
func (s *Surface) Dispatch(tr *state.Transaction) error {
	if s.destroyed {
		s.log.Warn("dispatch on destroyed surface")
		return ErrClosed
	}
	return s.dispatch(tr)
}

// Apply applies tr, and whatever plugins append to it, to the surface's own
// state and notifies subscribers. It returns every transaction applied.
func (s *Surface) Apply(tr *state.Transaction) ([]*state.Transaction, error) {
	if s.destroyed {
		s.log.Warn("apply on destroyed surface")
		return nil, ErrClosed
	}
	next, applied, err := s.state.ApplyTransaction(tr)
	if err != nil {
		return nil, err
	}
	s.state = next
	s.notify(applied)
	return applied, nil
}

// Subscribe registers fn to run after every state change. The returned
// function removes the subscription; calling it again logs a warning and
// does nothing else.
func (s *Surface) Subscribe(fn func(st *state.EditorState, applied []*state.Transaction)) (unsubscribe func()) {
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
		s.log.Warn("unsubscribe of unknown subscription", "id", id)
	}
}

func (s *Surface) notify(applied []*state.Transaction) {
	for _, l := range append([]listener(nil), s.listeners...) {
		l.fn(s.state, applied)
	}
}

// Destroy releases the surface. It is idempotent.
func (s *Surface) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.listeners = nil
}
