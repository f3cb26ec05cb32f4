package session

import "github.com/replkit/replkit/pkg/notify"

// Event is the sum of events a session fans out to listeners.
type Event interface{ event() }

// Output is a fragment of runtime output.
type Output struct {
	Text   string
	Stream notify.Stream
}

// Cleared instructs listeners to clear their display.
type Cleared struct{}

// Prompt reports a prompt-state transition.
type Prompt struct {
	State  notify.PromptState
	IsIdle bool
}

// StateChanged reports a connection state transition.
type StateChanged struct {
	Old, New State
	Release  string
}

// DebugMode reports entering or leaving a debug-stopped state.
type DebugMode struct {
	Debugging bool
}

func (Output) event()       {}
func (Cleared) event()      {}
func (Prompt) event()       {}
func (StateChanged) event() {}
func (DebugMode) event()    {}

// Watch registers fn to receive session events. Events are delivered on the
// notification-handling goroutine; fn must not block.
func (s *Session) Watch(fn func(Event)) notify.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextWatcher++
	id := s.nextWatcher
	s.watchers[id] = fn
	return watcherSub{s, id}
}

func (s *Session) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, e := range events {
		for _, fn := range fns {
			fn(e)
		}
	}
}

type watcherSub struct {
	s  *Session
	id int
}

func (w watcherSub) Close() {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()
	delete(w.s.watchers, w.id)
}
