package notify

// Pair returns two Notifiers connected back to back: messages sent on one
// are dispatched synchronously to the other's subscribers. It is intended
// for tests and in-process wiring.
func Pair() (Notifier, Notifier) {
	a := &pairEnd{Dispatcher: NewDispatcher()}
	b := &pairEnd{Dispatcher: NewDispatcher()}
	a.peer, b.peer = b, a
	return a, b
}

type pairEnd struct {
	*Dispatcher
	peer *pairEnd
}

func (e *pairEnd) Send(m Message) error {
	e.peer.Dispatch(m)
	return nil
}
