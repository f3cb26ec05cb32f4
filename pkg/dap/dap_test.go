package dap

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/replkit/replkit/pkg/notify"
	"github.com/replkit/replkit/pkg/session"
)

type fakeSink struct {
	mu        sync.Mutex
	adapter   *Adapter
	responses []string
	events    []string
}

func (s *fakeSink) HandleResponse(p json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, string(p))
}

func (s *fakeSink) HandleEvent(p json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, string(p))
}

func (s *fakeSink) counts() (responses, events int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses), len(s.events)
}

type fixture struct {
	bridge   *Bridge
	remote   notify.Notifier
	requests chan notify.DebugAdaptorRequest

	mu    sync.Mutex
	sinks []*fakeSink
}

func newFixture(t *testing.T, autoStart bool) *fixture {
	t.Helper()
	local, remote := notify.Pair()
	sess := session.New(local, nil)
	f := &fixture{remote: remote, requests: make(chan notify.DebugAdaptorRequest, 16)}
	remote.Subscribe(notify.DebugAdaptorReqChan, func(m notify.Message) {
		f.requests <- m.(notify.DebugAdaptorRequest)
	})
	f.bridge = NewBridge(Spec{
		Session:   sess,
		AutoStart: autoStart,
		NewSink: func(a *Adapter) Sink {
			s := &fakeSink{adapter: a}
			f.mu.Lock()
			f.sinks = append(f.sinks, s)
			f.mu.Unlock()
			return s
		},
	})
	t.Cleanup(func() { f.bridge.Close(); sess.Close() })
	remote.Send(notify.StateChange{State: notify.StateConnected, Release: "R2024b"})
	return f
}

func (f *fixture) sink(i int) *fakeSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.sinks) {
		return nil
	}
	return f.sinks[i]
}

func (f *fixture) recvRequest(t *testing.T) notify.DebugAdaptorRequest {
	t.Helper()
	select {
	case r := <-f.requests:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no adaptor request arrived")
		return notify.DebugAdaptorRequest{}
	}
}

func TestBaseAutoStartsOnConnect(t *testing.T) {
	f := newFixture(t, true)
	if n := f.bridge.Adapters(); n != 1 {
		t.Fatalf("adapters = %d, want the auto-started base", n)
	}
	base := f.bridge.Base()
	if base.Nested() {
		t.Error("base adapter reports nested")
	}
}

func TestNoAutoStartWithoutFlag(t *testing.T) {
	f := newFixture(t, false)
	if n := f.bridge.Adapters(); n != 0 {
		t.Fatalf("adapters = %d, want none before explicit start", n)
	}
	f.bridge.Base() // explicit start
	if n := f.bridge.Adapters(); n != 1 {
		t.Errorf("adapters = %d after explicit start", n)
	}
}

func TestSendCarriesAdapterTag(t *testing.T) {
	f := newFixture(t, true)
	base := f.bridge.Base()
	if err := base.Send(json.RawMessage(`{"command":"threads"}`)); err != nil {
		t.Fatal(err)
	}
	req := f.recvRequest(t)
	if req.Tag != base.Tag() {
		t.Errorf("request tag = %d, want %d", req.Tag, base.Tag())
	}
}

func TestDebugStopSpawnsAndDropsNested(t *testing.T) {
	f := newFixture(t, true)
	f.remote.Send(notify.DebugStateChange{Debugging: true})
	if n := f.bridge.Adapters(); n != 2 {
		t.Fatalf("adapters = %d, want base plus nested", n)
	}
	nested := f.sink(1).adapter
	if !nested.Nested() {
		t.Error("second adapter is not nested")
	}
	if nested.Tag() == f.bridge.Base().Tag() {
		t.Error("nested adapter shares the base tag")
	}

	f.remote.Send(notify.DebugStateChange{Debugging: false})
	if n := f.bridge.Adapters(); n != 1 {
		t.Errorf("adapters = %d after debug stop ended, want 1", n)
	}
}

func TestResponsesMatchedByTag(t *testing.T) {
	f := newFixture(t, true)
	f.remote.Send(notify.DebugStateChange{Debugging: true})
	base, nested := f.sink(0), f.sink(1)

	f.remote.Send(notify.DebugAdaptorResponse{
		Tag: nested.adapter.Tag(), Payload: json.RawMessage(`{"seq":1}`),
	})
	if r, _ := base.counts(); r != 0 {
		t.Error("base received the nested adapter's response")
	}
	if r, _ := nested.counts(); r != 1 {
		t.Error("nested adapter did not receive its response")
	}

	// A tag matching no live adapter is discarded.
	f.remote.Send(notify.DebugAdaptorResponse{
		Tag: 99, Payload: json.RawMessage(`{"seq":2}`),
	})
	rb, _ := base.counts()
	rn, _ := nested.counts()
	if rb != 0 || rn != 1 {
		t.Errorf("mismatched-tag response delivered (base %d, nested %d)", rb, rn)
	}
}

func TestBaseRelaysLifecycleUnconditionally(t *testing.T) {
	f := newFixture(t, true)
	f.remote.Send(notify.DebugStateChange{Debugging: true})
	base, nested := f.sink(0), f.sink(1)

	f.remote.Send(notify.DebugAdaptorEvent{Payload: json.RawMessage(`{"event":"initialized"}`)})
	if _, e := base.counts(); e != 1 {
		t.Error("base withheld a lifecycle event")
	}
	if _, e := nested.counts(); e != 0 {
		t.Error("unstarted nested adapter received an event")
	}

	// Non-lifecycle events are withheld from everyone until they start.
	f.remote.Send(notify.DebugAdaptorEvent{Payload: json.RawMessage(`{"event":"stopped"}`)})
	if _, e := base.counts(); e != 1 {
		t.Error("unstarted base relayed a non-lifecycle event")
	}
}

func TestNestedRelaysOnlyAfterInitialize(t *testing.T) {
	f := newFixture(t, true)
	f.remote.Send(notify.DebugStateChange{Debugging: true})
	nested := f.sink(1)

	f.remote.Send(notify.DebugAdaptorEvent{Payload: json.RawMessage(`{"event":"stopped"}`)})
	if _, e := nested.counts(); e != 0 {
		t.Fatal("nested adapter relayed before initialize")
	}

	if err := nested.adapter.Send(json.RawMessage(`{"command":"initialize"}`)); err != nil {
		t.Fatal(err)
	}
	f.recvRequest(t)
	if !nested.adapter.Started() {
		t.Fatal("initialize did not mark the adapter started")
	}

	f.remote.Send(notify.DebugAdaptorEvent{Payload: json.RawMessage(`{"event":"stopped"}`)})
	if _, e := nested.counts(); e != 1 {
		t.Error("started nested adapter withheld an event")
	}
}

func TestDisconnectDropsAllAdapters(t *testing.T) {
	f := newFixture(t, true)
	f.remote.Send(notify.DebugStateChange{Debugging: true})
	nestedTag := f.sink(1).adapter.Tag()

	f.remote.Send(notify.StateChange{State: notify.StateDisconnected})
	if n := f.bridge.Adapters(); n != 0 {
		t.Fatalf("adapters = %d after disconnect, want 0", n)
	}

	// A stale response for a dropped adapter is discarded.
	f.remote.Send(notify.DebugAdaptorResponse{
		Tag: nestedTag, Payload: json.RawMessage(`{"seq":9}`),
	})
	if r, _ := f.sink(1).counts(); r != 0 {
		t.Error("stale response delivered to a dropped adapter")
	}

	// Reconnection auto-starts a fresh base.
	f.remote.Send(notify.StateChange{State: notify.StateConnected, Release: "R2024b"})
	if n := f.bridge.Adapters(); n != 1 {
		t.Errorf("adapters = %d after reconnect, want a fresh base", n)
	}
}
