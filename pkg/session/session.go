// Package session tracks the logical connection to the evaluation runtime.
// It correlates eval/feval/breakpoint requests with their responses by
// generated request IDs, defers sends until the runtime is ready, derives
// the busy state from outstanding user evals, and fans runtime notifications
// out to listeners as typed events.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/replkit/replkit/pkg/future"
	"github.com/replkit/replkit/pkg/notify"
)

// State is the connection state visible to the UI.
type State int

const (
	Disconnected State = iota
	Ready
	Busy
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Ready:
		return "ready"
	case Busy:
		return "busy"
	}
	return "unknown"
}

// ErrDisconnected rejects every outstanding future when the runtime
// disconnects. Callers must treat it as "session became unavailable", not as
// a user-facing error.
var ErrDisconnected = errors.New("session: runtime disconnected")

// EvalSpec describes an evaluation request.
type EvalSpec struct {
	Command string
	// System marks the eval as system-initiated; system evals never make the
	// session appear busy.
	System bool
	// RemoveCapabilities temporarily disables interactive runtime features
	// for this one evaluation.
	RemoveCapabilities []string
}

type pending struct {
	isUserEval bool
	resolve    func(notify.Message)
	reject     func(error)
}

// Session is the remote evaluation session.
type Session struct {
	notifier notify.Notifier
	logger   *zap.Logger

	mu               sync.Mutex
	connected        bool
	release          string
	pendingUserEvals int
	requests         map[string]*pending
	ready            *future.Value[struct{}]
	watchers         map[int]func(Event)
	nextWatcher      int

	subs []notify.Subscription
}

// New returns a Session listening on n. The session starts Disconnected; the
// runtime announces itself with a state-change notification.
func New(n notify.Notifier, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		notifier: n,
		logger:   logger,
		requests: make(map[string]*pending),
		ready:    future.New[struct{}](),
		watchers: make(map[int]func(Event)),
	}
	s.subs = []notify.Subscription{
		n.Subscribe(notify.EvalResponseChan, s.onEvalResponse),
		n.Subscribe(notify.FevalResponseChan, s.onFevalResponse),
		n.Subscribe(notify.SetBreakpointRespChan, s.onBreakpointResponse),
		n.Subscribe(notify.ClearBreakpointRespChan, s.onBreakpointResponse),
		n.Subscribe(notify.TextChan, s.onText),
		n.Subscribe(notify.ClearChan, s.onClear),
		n.Subscribe(notify.PromptChangeChan, s.onPromptChange),
		n.Subscribe(notify.StateChangeChan, s.onStateChange),
		n.Subscribe(notify.DebugStateChangeChan, s.onDebugStateChange),
	}
	return s
}

// Close detaches the session from the notifier and rejects all outstanding
// requests.
func (s *Session) Close() {
	for _, sub := range s.subs {
		sub.Close()
	}
	s.subs = nil
	events := s.disconnectLocked("")
	s.emit(events...)
}

// State returns Disconnected verbatim; otherwise Busy iff there are
// outstanding user evals, else Ready.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	if !s.connected {
		return Disconnected
	}
	if s.pendingUserEvals > 0 {
		return Busy
	}
	return Ready
}

// Release returns the runtime release string from the last state change.
func (s *Session) Release() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.release
}

// Eval submits a user-initiated evaluation of command. The returned future
// resolves when the matching response arrives and is rejected with
// ErrDisconnected if the session disconnects first.
func (s *Session) Eval(command string) *future.Value[struct{}] {
	return s.EvalWith(EvalSpec{Command: command})
}

// EvalWith submits an evaluation described by spec.
func (s *Session) EvalWith(spec EvalSpec) *future.Value[struct{}] {
	f := future.New[struct{}]()
	id := uuid.NewString()

	s.mu.Lock()
	s.requests[id] = &pending{
		isUserEval: !spec.System,
		resolve:    func(notify.Message) { f.Resolve(struct{}{}) },
		reject:     f.Reject,
	}
	ready := s.ready
	s.mu.Unlock()

	s.sendWhenReady(ready, id, notify.EvalRequest{
		RequestID:            id,
		Command:              spec.Command,
		IsUserEval:           !spec.System,
		CapabilitiesToRemove: spec.RemoveCapabilities,
	})
	return f
}

// Feval calls a named runtime function. Feval calls are not user evals and
// never make the session appear busy. The result may be error-shaped; it is
// returned, not thrown.
func (s *Session) Feval(name string, nargout int, args ...any) *future.Value[notify.FevalResult] {
	return s.FevalWith(name, nargout, args, nil)
}

// FevalWith is Feval with capability removal.
func (s *Session) FevalWith(name string, nargout int, args []any, removeCaps []string) *future.Value[notify.FevalResult] {
	f := future.New[notify.FevalResult]()
	id := uuid.NewString()
	if args == nil {
		args = []any{}
	}

	s.mu.Lock()
	s.requests[id] = &pending{
		resolve: func(m notify.Message) {
			if resp, ok := m.(notify.FevalResponse); ok {
				f.Resolve(resp.Result)
			}
		},
		reject: f.Reject,
	}
	ready := s.ready
	s.mu.Unlock()

	s.sendWhenReady(ready, id, notify.FevalRequest{
		RequestID:            id,
		FunctionName:         name,
		Nargout:              nargout,
		Args:                 args,
		CapabilitiesToRemove: removeCaps,
	})
	return f
}

// SetBreakpoint installs a breakpoint. condition and anonymousIndex may be
// zero-valued.
func (s *Session) SetBreakpoint(fileName string, line int, condition string, anonymousIndex int) *future.Value[struct{}] {
	return s.breakpointRequest(func(id string) notify.Message {
		return notify.SetBreakpointRequest{
			RequestID: id, FileName: fileName, LineNumber: line,
			Condition: condition, AnonymousIndex: anonymousIndex,
		}
	})
}

// ClearBreakpoint removes a breakpoint.
func (s *Session) ClearBreakpoint(fileName string, line int, anonymousIndex int) *future.Value[struct{}] {
	return s.breakpointRequest(func(id string) notify.Message {
		return notify.ClearBreakpointRequest{
			RequestID: id, FileName: fileName, LineNumber: line,
			AnonymousIndex: anonymousIndex,
		}
	})
}

func (s *Session) breakpointRequest(build func(id string) notify.Message) *future.Value[struct{}] {
	f := future.New[struct{}]()
	id := uuid.NewString()

	s.mu.Lock()
	s.requests[id] = &pending{
		resolve: func(notify.Message) { f.Resolve(struct{}{}) },
		reject:  f.Reject,
	}
	ready := s.ready
	s.mu.Unlock()

	s.sendWhenReady(ready, id, build(id))
	return f
}

// Interrupt cooperatively interrupts the running evaluation. It is
// fire-and-forget and is sent immediately, bypassing the ready gate.
func (s *Session) Interrupt() {
	s.send(notify.InterruptRequest{})
}

// Unpause resumes the runtime from a paused state.
func (s *Session) Unpause() {
	s.send(notify.UnpauseRequest{})
}

// SendDimensions pushes the terminal size to the runtime.
func (s *Session) SendDimensions(rows, columns int) {
	s.send(notify.Dimensions{Rows: rows, Columns: columns})
}

// RequestCompletions asks the runtime to complete code at offset. The
// response is delivered on the notifier's completion-response channel;
// correlation and invalidation are the caller's concern.
func (s *Session) RequestCompletions(id, code string, offset int) {
	s.send(notify.CompletionRequest{RequestID: id, Code: code, Offset: offset})
}

// Notifier exposes the underlying notifier for collaborators that own their
// own channels (completion, debug adaptor).
func (s *Session) Notifier() notify.Notifier { return s.notifier }

// sendWhenReady defers the send via a continuation on the ready future that
// was current when the request was registered. If that future is rejected by
// a disconnect, the send never fires; the request entry was already rejected
// and removed by the disconnect cleanup. A user eval counts toward the busy
// state from the moment it is actually sent, not when it is queued, so the
// counter always equals sent minus responded.
func (s *Session) sendWhenReady(ready *future.Value[struct{}], id string, m notify.Message) {
	go func() {
		if _, err := ready.Get(context.Background()); err != nil {
			return
		}
		s.mu.Lock()
		p, live := s.requests[id]
		if live && p.isUserEval {
			s.pendingUserEvals++
		}
		s.mu.Unlock()
		if !live {
			return
		}
		s.send(m)
	}()
}

func (s *Session) send(m notify.Message) {
	if err := s.notifier.Send(m); err != nil {
		s.logger.Warn("send failed", zap.String("channel", string(m.Channel())), zap.Error(err))
	}
}

// Notification handlers.

func (s *Session) onEvalResponse(m notify.Message) {
	resp, ok := m.(notify.EvalResponse)
	if !ok {
		return
	}
	s.settle(resp.RequestID, m)
}

func (s *Session) onFevalResponse(m notify.Message) {
	resp, ok := m.(notify.FevalResponse)
	if !ok {
		return
	}
	s.settle(resp.RequestID, m)
}

func (s *Session) onBreakpointResponse(m notify.Message) {
	switch resp := m.(type) {
	case notify.SetBreakpointResponse:
		s.settle(resp.RequestID, m)
	case notify.ClearBreakpointResponse:
		s.settle(resp.RequestID, m)
	}
}

// settle resolves the pending request with the given ID. Responses with no
// live entry are dropped; this covers duplicate delivery and stale
// responses arriving after a disconnect.
func (s *Session) settle(id string, m notify.Message) {
	s.mu.Lock()
	p, ok := s.requests[id]
	if ok {
		delete(s.requests, id)
		if p.isUserEval && s.pendingUserEvals > 0 {
			s.pendingUserEvals--
		}
	}
	s.mu.Unlock()
	if ok {
		p.resolve(m)
	}
}

func (s *Session) onText(m notify.Message) {
	if t, ok := m.(notify.Text); ok {
		s.emit(Output{Text: t.Text, Stream: t.Stream})
	}
}

func (s *Session) onClear(m notify.Message) {
	s.emit(Cleared{})
}

func (s *Session) onPromptChange(m notify.Message) {
	if p, ok := m.(notify.PromptChange); ok {
		s.emit(Prompt{State: p.State, IsIdle: p.IsIdle})
	}
}

func (s *Session) onDebugStateChange(m notify.Message) {
	if d, ok := m.(notify.DebugStateChange); ok {
		s.emit(DebugMode{Debugging: d.Debugging})
	}
}

// onStateChange performs disconnection cleanup before emitting the state
// event, so listeners observe a consistent empty request table.
func (s *Session) onStateChange(m notify.Message) {
	sc, ok := m.(notify.StateChange)
	if !ok {
		return
	}
	var events []Event
	if sc.State == notify.StateDisconnected {
		events = s.disconnectLocked(sc.Release)
	} else {
		s.mu.Lock()
		old := s.stateLocked()
		s.connected = true
		s.release = sc.Release
		ready := s.ready
		now := s.stateLocked()
		s.mu.Unlock()
		ready.Resolve(struct{}{})
		if old != now {
			events = append(events, StateChanged{Old: old, New: now, Release: sc.Release})
		}
	}
	s.emit(events...)
}

// disconnectLocked rejects the ready future, rejects and clears every
// pending request in one pass, resets the busy counter and installs a fresh
// pending ready future. It returns the state event to emit afterwards.
func (s *Session) disconnectLocked(release string) []Event {
	s.mu.Lock()
	old := s.stateLocked()
	s.connected = false
	if release != "" {
		s.release = release
	}
	s.ready.Reject(ErrDisconnected)
	s.ready = future.New[struct{}]()
	rejected := make([]*pending, 0, len(s.requests))
	for id, p := range s.requests {
		rejected = append(rejected, p)
		delete(s.requests, id)
	}
	s.pendingUserEvals = 0
	s.mu.Unlock()

	for _, p := range rejected {
		p.reject(ErrDisconnected)
	}
	if old != Disconnected {
		return []Event{StateChanged{Old: old, New: Disconnected, Release: s.release}}
	}
	return nil
}

// PendingUserEvals reports the number of user evals awaiting responses.
func (s *Session) PendingUserEvals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingUserEvals
}

// PendingRequests reports the number of live request-table entries.
func (s *Session) PendingRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
