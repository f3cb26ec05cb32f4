// Package notify defines the messaging boundary between the session layer
// and the runtime process. Messages form a closed tagged union keyed by
// channel name; the transport behind the Notifier interface is pluggable.
package notify

import "sync"

// Notifier is a bidirectional named-channel messaging endpoint.
type Notifier interface {
	// Send delivers a message to the peer. It returns an error if the
	// underlying transport has failed; delivery is otherwise fire-and-forget.
	Send(m Message) error
	// Subscribe registers fn to be called for every incoming message on the
	// given channel. Handlers on the same endpoint are invoked sequentially.
	Subscribe(c Channel, fn func(Message)) Subscription
}

// Subscription detaches a handler registered with Subscribe.
type Subscription interface {
	Close()
}

// Dispatcher implements the subscription half of a Notifier. Transports
// embed one and feed incoming messages to Dispatch.
type Dispatcher struct {
	mu     sync.Mutex
	nextID int
	subs   map[Channel]map[int]func(Message)
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{subs: make(map[Channel]map[int]func(Message))}
}

// Subscribe registers fn for messages on channel c.
func (d *Dispatcher) Subscribe(c Channel, fn func(Message)) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	if d.subs[c] == nil {
		d.subs[c] = make(map[int]func(Message))
	}
	d.subs[c][id] = fn
	return &subscription{d, c, id}
}

// Dispatch invokes all handlers subscribed to m's channel on the caller's
// goroutine. Invocation order between handlers is unspecified.
func (d *Dispatcher) Dispatch(m Message) {
	d.mu.Lock()
	fns := make([]func(Message), 0, len(d.subs[m.Channel()]))
	for _, fn := range d.subs[m.Channel()] {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(m)
	}
}

type subscription struct {
	d  *Dispatcher
	c  Channel
	id int
}

func (s *subscription) Close() {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	delete(s.d.subs[s.c], s.id)
}
