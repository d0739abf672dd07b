package field

import (
	"errors"
	"log/slog"
)

// ErrNotSubscribed is returned when removing a subscription that is not
// registered, which means the caller's lifecycle is out of step.
var ErrNotSubscribed = errors.New("field: subscription not found")

// Observer receives a field's new value.
type Observer func(value any)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes the subscription. A second call reports
// ErrNotSubscribed.
func (s *Subscription) Unsubscribe() error {
	if s == nil || s.notifier == nil {
		return ErrNotSubscribed
	}
	return s.notifier.Unsubscribe(s)
}

// Notifier is a synchronous publish/subscribe channel for one field value.
type Notifier struct {
	observers map[uint64]Observer
	order     []uint64
	nextID    uint64
	log       *slog.Logger
}

// NewNotifier returns an empty notifier. A nil logger discards.
func NewNotifier(log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Notifier{observers: make(map[uint64]Observer), log: log}
}

// Subscribe registers fn.
func (n *Notifier) Subscribe(fn Observer) *Subscription {
	n.nextID++
	n.observers[n.nextID] = fn
	n.order = append(n.order, n.nextID)
	return &Subscription{id: n.nextID, notifier: n}
}

// Unsubscribe removes sub, or reports ErrNotSubscribed when sub is not
// registered with n.
func (n *Notifier) Unsubscribe(sub *Subscription) error {
	if sub == nil || sub.notifier != n {
		n.log.Warn("unsubscribe of foreign subscription")
		return ErrNotSubscribed
	}
	if _, ok := n.observers[sub.id]; !ok {
		n.log.Warn("unsubscribe of unknown subscription", "id", sub.id)
		return ErrNotSubscribed
	}
	delete(n.observers, sub.id)
	for i, id := range n.order {
		if id == sub.id {
			n.order = append(n.order[:i:i], n.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of active subscriptions.
func (n *Notifier) Len() int { return len(n.observers) }

// Notify calls every observer in subscription order.
func (n *Notifier) Notify(value any) {
	for _, id := range append([]uint64(nil), n.order...) {
		if fn, ok := n.observers[id]; ok {
			fn(value)
		}
	}
}

// Close drops every subscription.
func (n *Notifier) Close() {
	n.observers = make(map[uint64]Observer)
	n.order = nil
}
